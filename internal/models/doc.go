// Package models defines the documents stored by Tally.
//
// # Collections
//
// Group-side records are the source of truth:
//   - Group: a shared-expense unit with running totals
//   - Member: a user's participation in a group
//   - Expense and Payment: leaf records written by clients
//
// User-side records are derived mirrors kept in sync by the aggregate rules:
//   - User: per-user totals and achievement progress
//   - UserGroup: the user's standing in one group
//   - Expense and Payment copies carrying GroupID and GroupName
//
// # Encoding
//
// Documents are stored as JSON objects. Field names follow the JSON tags below
// and the Field* constants name the ones written by partial updates.
// Money amounts are decimal.Decimal values encoded as JSON numbers.
package models

import "github.com/shopspring/decimal"

func init() {
	// Counters are stored as plain JSON numbers so integer and decimal
	// fields share one representation.
	decimal.MarshalJSONWithoutQuotes = true
}

// Field names used by partial updates.
const (
	FieldName               = "name"
	FieldTotalExpenses      = "totalExpenses"
	FieldTotalPayments      = "totalPayments"
	FieldNumMembers         = "numMembers"
	FieldNumGroups          = "numGroups"
	FieldLatestUpdate       = "latestUpdate"
	FieldAlreadyRecurred    = "alreadyRecurred"
	FieldPersonalExpenses   = "personalExpenses"
	FieldPersonalPayments   = "personalPayments"
	FieldExpensesCount      = "achievementProgress.expensesCount"
	FieldPaymentsCount      = "achievementProgress.paymentsCount"
	FieldMaxNegativeBalance = "achievementProgress.maxNegativeBalance"
)
