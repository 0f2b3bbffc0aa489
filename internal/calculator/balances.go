// Package calculator computes member balances from the denormalized totals.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/tally/internal/models"
)

// GroupStanding is the minimal information needed for one group's balance.
type GroupStanding struct {
	PersonalPayments decimal.Decimal
	TotalExpenses    decimal.Decimal
	NumMembers       int
}

// StandingOf extracts the balance inputs from a UserGroup mirror.
func StandingOf(ug models.UserGroup) GroupStanding {
	return GroupStanding{
		PersonalPayments: ug.PersonalPayments,
		TotalExpenses:    ug.TotalExpenses,
		NumMembers:       ug.NumMembers,
	}
}

// PersonalBalance is what a member paid minus an equal share of the group's
// expenses. Positive = owed money, negative = owes money.
//
// A standing with no members has no defined share and contributes zero.
func PersonalBalance(s GroupStanding) decimal.Decimal {
	if s.NumMembers <= 0 {
		return decimal.Zero
	}
	share := s.TotalExpenses.Div(decimal.NewFromInt(int64(s.NumMembers)))
	return s.PersonalPayments.Sub(share)
}

// UserBalance sums PersonalBalance across all of a user's groups.
func UserBalance(standings []GroupStanding) decimal.Decimal {
	total := decimal.Zero
	for _, s := range standings {
		total = total.Add(PersonalBalance(s))
	}
	return total
}

// Ratchet returns the new worst-ever balance given the stored one and a
// newly observed balance, and whether it changed. The result never rises.
func Ratchet(stored, observed decimal.Decimal) (decimal.Decimal, bool) {
	if observed.LessThan(stored) {
		return observed, true
	}
	return stored, false
}
