package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
	"github.com/mmynk/tally/internal/trigger"
)

// Propagator runs the aggregate rules in response to document changes.
type Propagator struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Propagator that reads and writes through store.
func New(store storage.Store, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{store: store, logger: logger, now: time.Now}
}

// Register subscribes every rule to its document pattern.
func (p *Propagator) Register(d *trigger.Dispatcher) {
	d.Handle("group_expense", models.GroupExpensePattern, p.OnGroupExpense)
	d.Handle("group_payment", models.GroupPaymentPattern, p.OnGroupPayment)
	d.Handle("member", models.MemberPattern, p.OnMember)
	d.Handle("user_expense", models.UserExpensePattern, p.OnUserExpense)
	d.Handle("user_payment", models.UserPaymentPattern, p.OnUserPayment)
	d.Handle("user_group", models.UserGroupPattern, p.OnUserGroup)
	d.Handle("group", models.GroupPattern, p.OnGroup)
}

// OnGroupExpense mirrors the expense to its owner and moves the member and
// group totals. A deleted group makes the event moot.
func (p *Propagator) OnGroupExpense(ctx context.Context, e trigger.Event) error {
	before, after, err := decodePair[models.Expense](e)
	if err != nil {
		return err
	}
	groupID, expenseID := e.Params["groupId"], e.Params["expenseId"]

	group, err := p.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	return p.store.Commit(ctx, ExpenseWrites(groupID, expenseID, group, before, after, p.now())...)
}

// OnGroupPayment is OnGroupExpense for payments.
func (p *Propagator) OnGroupPayment(ctx context.Context, e trigger.Event) error {
	before, after, err := decodePair[models.Payment](e)
	if err != nil {
		return err
	}
	groupID, paymentID := e.Params["groupId"], e.Params["paymentId"]

	group, err := p.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	return p.store.Commit(ctx, PaymentWrites(groupID, paymentID, group, before, after, p.now())...)
}

// OnMember maintains the member's UserGroup mirror and the group's member
// count. Removals proceed even when the group itself is gone so that a group
// deletion still clears its members' mirrors.
func (p *Propagator) OnMember(ctx context.Context, e trigger.Event) error {
	before, after, err := decodePair[models.Member](e)
	if err != nil {
		return err
	}
	groupID, userID := e.Params["groupId"], e.Params["userId"]

	group, err := storage.Lookup[models.Group](ctx, p.store, models.GroupPath(groupID))
	if err != nil {
		return err
	}
	if after != nil && !group.IsSome() {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return p.store.Commit(ctx, MemberWrites(groupID, userID, group, before, after)...)
}

func (p *Propagator) OnUserExpense(ctx context.Context, e trigger.Event) error {
	before, after, err := decodePair[models.Expense](e)
	if err != nil {
		return err
	}
	return p.store.Commit(ctx, UserExpenseWrites(e.Params["userId"], before, after)...)
}

func (p *Propagator) OnUserPayment(ctx context.Context, e trigger.Event) error {
	before, after, err := decodePair[models.Payment](e)
	if err != nil {
		return err
	}
	return p.store.Commit(ctx, UserPaymentWrites(e.Params["userId"], before, after)...)
}

func (p *Propagator) OnUserGroup(ctx context.Context, e trigger.Event) error {
	kind := e.Kind()
	return p.store.Commit(ctx, UserGroupWrites(e.Params["userId"], kind == trigger.Created, kind == trigger.Deleted)...)
}

// OnGroup fans group updates out to the members' mirrors and cascades group
// deletion to the member records.
func (p *Propagator) OnGroup(ctx context.Context, e trigger.Event) error {
	groupID := e.Params["groupId"]

	switch e.Kind() {
	case trigger.Created:
		return nil

	case trigger.Deleted:
		memberIDs, err := p.memberIDs(ctx, groupID)
		if err != nil {
			return err
		}
		p.logger.Info("Group deleted, removing members", "group_id", groupID, "members", len(memberIDs))
		return p.store.Commit(ctx, GroupDeleteWrites(groupID, memberIDs)...)
	}

	before, after, err := decodePair[models.Group](e)
	if err != nil {
		return err
	}
	memberIDs, err := p.memberIDs(ctx, groupID)
	if err != nil {
		return err
	}
	writes := GroupFanoutWrites(groupID, *before, *after, memberIDs)
	if len(writes) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range writes {
		g.Go(func() error {
			return p.store.Commit(gctx, w)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to update member mirrors of %s: %w", groupID, err)
	}
	return nil
}

func (p *Propagator) loadGroup(ctx context.Context, groupID string) (models.Group, error) {
	group, err := storage.Lookup[models.Group](ctx, p.store, models.GroupPath(groupID))
	if err != nil {
		return models.Group{}, err
	}
	g, ok := group.Get()
	if !ok {
		return models.Group{}, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	g.ID = groupID
	return g, nil
}

func (p *Propagator) memberIDs(ctx context.Context, groupID string) ([]string, error) {
	docs, err := p.store.List(ctx, models.MembersPath(groupID))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID()
	}
	return ids, nil
}

// decodePair decodes the before and after snapshots of an event; absent
// snapshots decode to nil.
func decodePair[T any](e trigger.Event) (before, after *T, err error) {
	if before, err = decode[T](e.Before); err != nil {
		return nil, nil, err
	}
	if after, err = decode[T](e.After); err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

func decode[T any](doc *storage.Document) (*T, error) {
	if doc == nil {
		return nil, nil
	}
	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, err
	}
	return &v, nil
}
