package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is the root record of a user's derived data.
//
// The record is created on registration or lazily by the first write that
// touches the user, always with zeroed counters.
type User struct {
	// ID is the identity provider's user id.
	ID string `json:"-"`

	// DisplayName is copied from the identity provider on registration.
	DisplayName string `json:"displayName,omitempty"`

	// TotalExpenses and TotalPayments sum the user's mirrored records across
	// all groups.
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	TotalPayments decimal.Decimal `json:"totalPayments"`

	// NumGroups counts the user's UserGroup mirrors.
	NumGroups int `json:"numGroups"`

	AchievementProgress AchievementProgress `json:"achievementProgress"`
}

// AchievementProgress holds gamification counters.
//
// ExpensesCount and PaymentsCount count first-time creations and never
// decrease. MaxNegativeBalance is the lowest balance ever observed by the
// balance scan and never increases.
type AchievementProgress struct {
	ExpensesCount      int             `json:"expensesCount"`
	PaymentsCount      int             `json:"paymentsCount"`
	MaxNegativeBalance decimal.Decimal `json:"maxNegativeBalance"`
}

// NewUser returns a user record with all counters zeroed.
func NewUser(id, displayName string) *User {
	return &User{ID: id, DisplayName: displayName}
}

// Account is a registered login held by the identity provider.
type Account struct {
	// ID is the unique identifier for the account (UUID format).
	ID string

	// Email is the login address (unique).
	Email string

	DisplayName  string
	PasswordHash string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// NewAccount returns an account with a fresh id and timestamps.
func NewAccount(email, displayName, passwordHash string) *Account {
	now := time.Now().Unix()
	return &Account{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
