package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Group is a shared-expense unit.
//
// TotalExpenses and TotalPayments always equal the sum of the group's current
// expense costs and payment amounts, NumMembers the number of member records.
// The totals are maintained by the aggregate rules, never by clients.
type Group struct {
	// ID is the document id (UUID format). It is not stored in the body.
	ID string `json:"-"`

	// Name is the display name of the group (e.g., "Roommates").
	Name string `json:"name"`

	// CreatedAt is when the group was created.
	CreatedAt time.Time `json:"createdAt"`

	// LatestUpdate is stamped whenever an expense or payment changes.
	LatestUpdate time.Time `json:"latestUpdate"`

	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	TotalPayments decimal.Decimal `json:"totalPayments"`
	NumMembers    int             `json:"numMembers"`
}

// Role is a member's role within a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Member is a user's participation record within a group, keyed by user id.
// TotalExpenses and TotalPayments are that user's share of the group's
// activity.
type Member struct {
	UserID        string          `json:"-"`
	UserName      string          `json:"userName"`
	Role          Role            `json:"role"`
	JoinDate      time.Time       `json:"joinDate"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	TotalPayments decimal.Decimal `json:"totalPayments"`
}

// UserGroup mirrors a user's standing in one group under the user's document.
// It is derived from the Member and Group records.
type UserGroup struct {
	GroupID          string          `json:"-"`
	Name             string          `json:"name"`
	PersonalExpenses decimal.Decimal `json:"personalExpenses"`
	PersonalPayments decimal.Decimal `json:"personalPayments"`
	TotalExpenses    decimal.Decimal `json:"totalExpenses"`
	TotalPayments    decimal.Decimal `json:"totalPayments"`
	NumMembers       int             `json:"numMembers"`
	LatestUpdate     time.Time       `json:"latestUpdate"`
}
