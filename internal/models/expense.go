package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a cost recorded in a group by one user.
//
// The same shape is used for the copy under the owning user's document, where
// GroupID and GroupName are filled in.
type Expense struct {
	ID     string          `json:"-"`
	Name   string          `json:"name"`
	Date   time.Time       `json:"date"`
	Cost   decimal.Decimal `json:"cost"`
	UserID string          `json:"userId"`

	// Recurring marks an expense that renews itself after RecurringInterval.
	Recurring bool `json:"recurring"`

	// RecurringInterval is the packed interval, see recurrence.Decode.
	// It is kept as a wide integer so malformed values can be rejected
	// instead of silently truncated.
	RecurringInterval int64 `json:"recurringInterval"`

	// AlreadyRecurred is set once the successor for the current cycle has
	// been created, or when the group is abandoned.
	AlreadyRecurred bool `json:"alreadyRecurred"`

	GroupID   string `json:"groupId,omitempty"`
	GroupName string `json:"groupName,omitempty"`
}

// Payment is money paid into a group by one user.
type Payment struct {
	ID      string          `json:"-"`
	Date    time.Time       `json:"date"`
	Payment decimal.Decimal `json:"payment"`
	UserID  string          `json:"userId"`

	GroupID   string `json:"groupId,omitempty"`
	GroupName string `json:"groupName,omitempty"`
}
