package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tally/internal/metrics"
	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

// State is the renewal state of an expense at a point in time.
type State int

const (
	NonRecurring State = iota
	Pending
	Due
	Frozen
)

func (s State) String() string {
	switch s {
	case NonRecurring:
		return "non-recurring"
	case Pending:
		return "pending"
	case Due:
		return "due"
	case Frozen:
		return "frozen"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateOf classifies exp at now. An expense is due once its date is less than
// one day ahead of now.
func StateOf(exp models.Expense, now time.Time) State {
	switch {
	case !exp.Recurring:
		return NonRecurring
	case exp.AlreadyRecurred:
		return Frozen
	case DayOffset(exp.Date, now) >= 1:
		return Pending
	default:
		return Due
	}
}

// SuccessorID derives the id of the occurrence that follows the expense at
// sourcePath. The id is stable so a repeated run cannot create a second
// successor for the same cycle.
func SuccessorID(sourcePath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourcePath)).String()
}

// Successor builds the next occurrence of exp.
func Successor(exp models.Expense) (models.Expense, error) {
	iv, err := Decode(exp.RecurringInterval)
	if err != nil {
		return models.Expense{}, err
	}
	next, err := Next(exp.Date, iv)
	if err != nil {
		return models.Expense{}, err
	}
	return models.Expense{
		Name:              exp.Name,
		Date:              next,
		Cost:              exp.Cost,
		UserID:            exp.UserID,
		Recurring:         true,
		RecurringInterval: exp.RecurringInterval,
		AlreadyRecurred:   false,
	}, nil
}

// Result summarizes one expander run.
type Result struct {
	Groups  int
	Scanned int
	Renewed int
	Failed  int
}

// Expander creates the next occurrence of every due recurring expense.
type Expander struct {
	store  storage.Store
	logger *slog.Logger
}

// NewExpander creates an Expander over store.
func NewExpander(store storage.Store, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{store: store, logger: logger}
}

// Run scans every group once. Each due expense gets exactly one successor
// per run; a backlog of missed cycles is worked off one cycle per run.
//
// A failure on one expense is logged and counted without stopping the run.
// Only a failure to list the groups fails the run itself.
func (e *Expander) Run(ctx context.Context, now time.Time) (Result, error) {
	groups, err := e.store.List(ctx, models.GroupsCollection)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list groups: %w", err)
	}

	var res Result
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Groups++

		docs, err := e.store.List(ctx, models.GroupExpensesPath(group.ID()))
		if err != nil {
			e.logger.Error("Failed to list expenses", "group_id", group.ID(), "error", err)
			res.Failed++
			continue
		}

		var renewed, failed atomic.Int64
		var wg sync.WaitGroup
		for _, doc := range docs {
			res.Scanned++

			var exp models.Expense
			if err := doc.DataTo(&exp); err != nil {
				e.logger.Error("Skipping unreadable expense", "path", doc.Path, "error", err)
				failed.Add(1)
				continue
			}
			exp.ID = doc.ID()
			if StateOf(exp, now) != Due {
				continue
			}

			wg.Add(1)
			go func(groupID string, exp models.Expense) {
				defer wg.Done()
				if err := e.renew(ctx, groupID, exp); err != nil {
					failed.Add(1)
					metrics.RecurrenceRenewals.WithLabelValues("failed").Inc()
					e.logger.Error("Failed to renew expense",
						"group_id", groupID,
						"expense_id", exp.ID,
						"error", err,
					)
					return
				}
				renewed.Add(1)
				metrics.RecurrenceRenewals.WithLabelValues("renewed").Inc()
			}(group.ID(), exp)
		}
		wg.Wait()

		res.Renewed += int(renewed.Load())
		res.Failed += int(failed.Load())
	}

	return res, nil
}

// renew creates the successor and freezes the source in one batch.
func (e *Expander) renew(ctx context.Context, groupID string, exp models.Expense) error {
	next, err := Successor(exp)
	if err != nil {
		return err
	}

	sourcePath := models.GroupExpensePath(groupID, exp.ID)
	successorPath := models.GroupExpensePath(groupID, SuccessorID(sourcePath))
	freeze := storage.Update(sourcePath, nil, map[string]any{models.FieldAlreadyRecurred: true})

	err = e.store.Commit(ctx, storage.Create(successorPath, next), freeze)
	if errors.Is(err, storage.ErrAlreadyExists) {
		// The successor was created by an earlier run; only the freeze is missing.
		e.logger.Warn("Successor already exists", "path", successorPath)
		err = e.store.Commit(ctx, freeze)
	}
	if err != nil {
		return fmt.Errorf("failed to renew %s: %w", sourcePath, err)
	}

	e.logger.Info("Expense renewed",
		"group_id", groupID,
		"expense_id", exp.ID,
		"successor", successorPath,
		"date", next.Date,
	)
	return nil
}
