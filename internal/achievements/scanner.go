// Package achievements maintains the worst-ever balance achievement.
package achievements

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mmynk/tally/internal/calculator"
	"github.com/mmynk/tally/internal/metrics"
	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

// Result summarizes one scan.
type Result struct {
	Users   int
	Lowered int
	Failed  int
}

// Scanner recomputes every user's balance and lowers their
// maxNegativeBalance when the balance is worse than any seen before.
type Scanner struct {
	store  storage.Store
	logger *slog.Logger
}

// NewScanner creates a Scanner over store.
func NewScanner(store storage.Store, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{store: store, logger: logger}
}

// Run scans all users. Users are processed concurrently; one user's failure
// is logged and counted without stopping the scan.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	users, err := s.store.List(ctx, models.UsersCollection)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list users: %w", err)
	}

	var lowered, failed atomic.Int64
	var wg sync.WaitGroup
	for _, doc := range users {
		var user models.User
		if err := doc.DataTo(&user); err != nil {
			s.logger.Error("Skipping unreadable user", "path", doc.Path, "error", err)
			failed.Add(1)
			continue
		}
		user.ID = doc.ID()

		wg.Add(1)
		go func(user models.User) {
			defer wg.Done()
			changed, err := s.scanUser(ctx, user)
			if err != nil {
				failed.Add(1)
				s.logger.Error("Balance scan failed", "user_id", user.ID, "error", err)
				return
			}
			if changed {
				lowered.Add(1)
				metrics.BalanceRatchets.Inc()
			}
		}(user)
	}
	wg.Wait()

	return Result{
		Users:   len(users),
		Lowered: int(lowered.Load()),
		Failed:  int(failed.Load()),
	}, nil
}

func (s *Scanner) scanUser(ctx context.Context, user models.User) (bool, error) {
	groups, err := storage.ListAs[models.UserGroup](ctx, s.store, models.UserGroupsPath(user.ID), nil)
	if err != nil {
		return false, err
	}

	standings := make([]calculator.GroupStanding, len(groups))
	for i, ug := range groups {
		standings[i] = calculator.StandingOf(ug)
	}
	balance := calculator.UserBalance(standings)

	worst, changed := calculator.Ratchet(user.AchievementProgress.MaxNegativeBalance, balance)
	if !changed {
		return false, nil
	}

	err = s.store.Commit(ctx, storage.Update(models.UserPath(user.ID), nil, map[string]any{
		models.FieldMaxNegativeBalance: worst,
	}))
	if err != nil {
		return false, fmt.Errorf("failed to store max negative balance: %w", err)
	}

	s.logger.Info("Max negative balance lowered",
		"user_id", user.ID,
		"previous", user.AchievementProgress.MaxNegativeBalance,
		"balance", worst,
	)
	return true, nil
}
