// Package aggregate keeps the denormalized totals, counters and mirror
// records consistent with the group-side source records.
//
// Each rule is a pure function from the before/after state of one record to
// the writes that bring its dependents up to date. Counter changes are
// expressed as deltas applied by the store inside the commit, so concurrent
// writes to sibling records cannot lose updates.
package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

var one = decimal.NewFromInt(1)

// ensureUser creates the user's root record with zeroed counters if missing.
func ensureUser(userID string) storage.Write {
	return storage.Ensure(models.UserPath(userID), models.NewUser(userID, ""))
}

// entry is the part of an expense or payment the totals depend on.
type entry struct {
	userID string
	amount decimal.Decimal
	mirror any
}

func (e *entry) value() decimal.Decimal {
	if e == nil {
		return decimal.Zero
	}
	return e.amount
}

// ledger describes how one kind of leaf record feeds the totals.
type ledger struct {
	totalField string
	countField string
	mirrorPath func(userID, id string) string
}

var (
	expenseLedger = ledger{
		totalField: models.FieldTotalExpenses,
		countField: models.FieldExpensesCount,
		mirrorPath: models.UserExpensePath,
	}
	paymentLedger = ledger{
		totalField: models.FieldTotalPayments,
		countField: models.FieldPaymentsCount,
		mirrorPath: models.UserPaymentPath,
	}
)

// ExpenseWrites returns the writes caused by a change to a group expense:
// the owner's mirror, the owner's member total and the group total.
// before is nil for a creation and after is nil for a deletion.
func ExpenseWrites(groupID, expenseID string, group models.Group, before, after *models.Expense, now time.Time) []storage.Write {
	toEntry := func(e *models.Expense) *entry {
		if e == nil {
			return nil
		}
		mirror := *e
		mirror.GroupID = groupID
		mirror.GroupName = group.Name
		return &entry{userID: e.UserID, amount: e.Cost, mirror: mirror}
	}
	return expenseLedger.writes(groupID, expenseID, toEntry(before), toEntry(after), now)
}

// PaymentWrites is ExpenseWrites for payments.
func PaymentWrites(groupID, paymentID string, group models.Group, before, after *models.Payment, now time.Time) []storage.Write {
	toEntry := func(p *models.Payment) *entry {
		if p == nil {
			return nil
		}
		mirror := *p
		mirror.GroupID = groupID
		mirror.GroupName = group.Name
		return &entry{userID: p.UserID, amount: p.Payment, mirror: mirror}
	}
	return paymentLedger.writes(groupID, paymentID, toEntry(before), toEntry(after), now)
}

func (l ledger) writes(groupID, id string, before, after *entry, now time.Time) []storage.Write {
	var writes []storage.Write

	// A record moved to another user leaves the old owner's mirror.
	if before != nil && (after == nil || before.userID != after.userID) {
		writes = append(writes, storage.Delete(l.mirrorPath(before.userID, id)))
	}
	if after != nil {
		writes = append(writes,
			ensureUser(after.userID),
			storage.Set(l.mirrorPath(after.userID, id), after.mirror),
		)
	}

	// Member totals, per owner.
	if before != nil && after != nil && before.userID == after.userID {
		if d := after.amount.Sub(before.amount); !d.IsZero() {
			writes = append(writes, l.memberDelta(groupID, after.userID, d))
		}
	} else {
		if before != nil && !before.amount.IsZero() {
			writes = append(writes, l.memberDelta(groupID, before.userID, before.amount.Neg()))
		}
		if after != nil && !after.amount.IsZero() {
			writes = append(writes, l.memberDelta(groupID, after.userID, after.amount))
		}
	}

	var deltas map[string]decimal.Decimal
	if d := after.value().Sub(before.value()); !d.IsZero() {
		deltas = map[string]decimal.Decimal{l.totalField: d}
	}
	writes = append(writes, storage.Update(models.GroupPath(groupID), deltas, map[string]any{
		models.FieldLatestUpdate: now,
	}))

	return writes
}

func (l ledger) memberDelta(groupID, userID string, d decimal.Decimal) storage.Write {
	return storage.Update(models.MemberPath(groupID, userID), map[string]decimal.Decimal{l.totalField: d}, nil)
}

// UserExpenseWrites returns the writes caused by a change to a user's expense
// mirror: the user total moves by the cost delta, and a creation counts
// towards the expenses achievement. Counts never go down.
func UserExpenseWrites(userID string, before, after *models.Expense) []storage.Write {
	amount := func(e *models.Expense) *decimal.Decimal {
		if e == nil {
			return nil
		}
		return &e.Cost
	}
	return expenseLedger.userWrites(userID, amount(before), amount(after))
}

// UserPaymentWrites is UserExpenseWrites for payments.
func UserPaymentWrites(userID string, before, after *models.Payment) []storage.Write {
	amount := func(p *models.Payment) *decimal.Decimal {
		if p == nil {
			return nil
		}
		return &p.Payment
	}
	return paymentLedger.userWrites(userID, amount(before), amount(after))
}

func (l ledger) userWrites(userID string, before, after *decimal.Decimal) []storage.Write {
	deltas := make(map[string]decimal.Decimal)
	if d := orZero(after).Sub(orZero(before)); !d.IsZero() {
		deltas[l.totalField] = d
	}
	if before == nil && after != nil {
		deltas[l.countField] = one
	}
	if len(deltas) == 0 {
		return nil
	}
	return []storage.Write{
		ensureUser(userID),
		storage.Update(models.UserPath(userID), deltas, nil),
	}
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// MemberWrites returns the writes caused by a change to a member record.
//
// A new member gets a UserGroup mirror and bumps the group's member count; an
// update refreshes the mirror's personal totals; a removal deletes the mirror
// and lowers the count. Creations and updates need the group; when it is
// absent nothing is written.
func MemberWrites(groupID, userID string, group models.Option[models.Group], before, after *models.Member) []storage.Write {
	mirrorPath := models.UserGroupPath(userID, groupID)

	if after == nil {
		return []storage.Write{
			storage.Delete(mirrorPath),
			storage.Update(models.GroupPath(groupID), map[string]decimal.Decimal{models.FieldNumMembers: one.Neg()}, nil),
		}
	}

	g, ok := group.Get()
	if !ok {
		return nil
	}

	personal := map[string]any{
		models.FieldName:             g.Name,
		models.FieldPersonalExpenses: after.TotalExpenses,
		models.FieldPersonalPayments: after.TotalPayments,
	}
	if before != nil {
		return []storage.Write{storage.Merge(mirrorPath, personal)}
	}

	personal[models.FieldTotalExpenses] = g.TotalExpenses
	personal[models.FieldTotalPayments] = g.TotalPayments
	personal[models.FieldNumMembers] = g.NumMembers + 1
	personal[models.FieldLatestUpdate] = g.LatestUpdate
	return []storage.Write{
		ensureUser(userID),
		storage.Merge(mirrorPath, personal),
		storage.Update(models.GroupPath(groupID), map[string]decimal.Decimal{models.FieldNumMembers: one}, nil),
	}
}

// UserGroupWrites keeps the user's group count in step with the creation and
// deletion of UserGroup mirrors.
func UserGroupWrites(userID string, created, deleted bool) []storage.Write {
	switch {
	case created:
		return []storage.Write{
			ensureUser(userID),
			storage.Update(models.UserPath(userID), map[string]decimal.Decimal{models.FieldNumGroups: one}, nil),
		}
	case deleted:
		return []storage.Write{
			storage.Update(models.UserPath(userID), map[string]decimal.Decimal{models.FieldNumGroups: one.Neg()}, nil),
		}
	default:
		return nil
	}
}

// GroupFanoutWrites copies the group's shared figures into every member's
// UserGroup mirror. Mirrors that no longer exist are not recreated.
// It returns nil when none of the mirrored figures changed.
func GroupFanoutWrites(groupID string, before, after models.Group, memberIDs []string) []storage.Write {
	if sameShared(before, after) {
		return nil
	}
	shared := map[string]any{
		models.FieldName:          after.Name,
		models.FieldTotalExpenses: after.TotalExpenses,
		models.FieldTotalPayments: after.TotalPayments,
		models.FieldNumMembers:    after.NumMembers,
		models.FieldLatestUpdate:  after.LatestUpdate,
	}
	writes := make([]storage.Write, len(memberIDs))
	for i, id := range memberIDs {
		writes[i] = storage.Update(models.UserGroupPath(id, groupID), nil, shared)
	}
	return writes
}

func sameShared(a, b models.Group) bool {
	return a.Name == b.Name &&
		a.TotalExpenses.Equal(b.TotalExpenses) &&
		a.TotalPayments.Equal(b.TotalPayments) &&
		a.NumMembers == b.NumMembers &&
		a.LatestUpdate.Equal(b.LatestUpdate)
}

// GroupDeleteWrites removes every member record of a deleted group. Expenses
// and payments are left in place.
func GroupDeleteWrites(groupID string, memberIDs []string) []storage.Write {
	writes := make([]storage.Write, len(memberIDs))
	for i, id := range memberIDs {
		writes[i] = storage.Delete(models.MemberPath(groupID, id))
	}
	return writes
}
