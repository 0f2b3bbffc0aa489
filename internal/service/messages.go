package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tally/internal/models"
)

// Group service messages.

type CreateGroupRequest struct {
	Name string `json:"name"`
}

type JoinGroupRequest struct {
	GroupID string      `json:"groupId"`
	Role    models.Role `json:"role"`
}

type LeaveGroupRequest struct {
	GroupID string `json:"groupId"`
}

type KickMemberRequest struct {
	GroupID  string `json:"groupId"`
	MemberID string `json:"memberId"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"groupId"`
}

// GroupResponse is returned by every group call.
type GroupResponse struct {
	GroupID string `json:"groupId"`
}

// Ledger service messages.

// Interval is the readable form of a recurrence interval.
type Interval struct {
	Unit      string `json:"unit"`
	Magnitude uint32 `json:"magnitude"`
}

// ExpenseRequest adds or replaces an expense. ExpenseID is ignored by
// AddExpense. UserID defaults to the caller.
type ExpenseRequest struct {
	GroupID   string          `json:"groupId"`
	ExpenseID string          `json:"expenseId,omitempty"`
	Name      string          `json:"name"`
	Date      time.Time       `json:"date"`
	Cost      decimal.Decimal `json:"cost"`
	UserID    string          `json:"userId,omitempty"`
	Recurring bool            `json:"recurring"`
	Interval  *Interval       `json:"interval,omitempty"`
}

type ExpenseResponse struct {
	GroupID   string `json:"groupId"`
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseRequest struct {
	GroupID   string `json:"groupId"`
	ExpenseID string `json:"expenseId"`
}

// PaymentRequest records or replaces a payment. PaymentID is ignored by
// AddPayment. UserID defaults to the caller.
type PaymentRequest struct {
	GroupID   string          `json:"groupId"`
	PaymentID string          `json:"paymentId,omitempty"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	UserID    string          `json:"userId,omitempty"`
}

type PaymentResponse struct {
	GroupID   string `json:"groupId"`
	PaymentID string `json:"paymentId"`
}

type DeletePaymentRequest struct {
	GroupID   string `json:"groupId"`
	PaymentID string `json:"paymentId"`
}

type GetProfileRequest struct{}

// ProfileResponse is the caller's derived data. Groups is keyed by group id.
type ProfileResponse struct {
	UserID  string                      `json:"userId"`
	User    models.User                 `json:"user"`
	Groups  map[string]models.UserGroup `json:"groups"`
	Balance decimal.Decimal             `json:"balance"`
}

// Auth service messages.

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by Register and Login.
type SessionResponse struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Token       string `json:"token"`
}

type DeleteAccountRequest struct{}

type DeleteAccountResponse struct{}
