package achievements

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
	"github.com/mmynk/tally/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func worst(t *testing.T, store storage.Store, userID string) decimal.Decimal {
	t.Helper()
	user, err := storage.Lookup[models.User](context.Background(), store, models.UserPath(userID))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	return user.OrZero().AchievementProgress.MaxNegativeBalance
}

func standing(payments, total string, members int) models.UserGroup {
	return models.UserGroup{
		PersonalPayments: decimal.RequireFromString(payments),
		TotalExpenses:    decimal.RequireFromString(total),
		NumMembers:       members,
	}
}

func TestScannerRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Commit(ctx,
		storage.Create(models.UserPath("alice"), models.NewUser("alice", "Alice")),
		storage.Create(models.UserPath("bob"), models.NewUser("bob", "Bob")),
		// Alice paid her share in g1 and nothing in g2: -30 overall.
		storage.Set(models.UserGroupPath("alice", "g1"), standing("100", "200", 2)),
		storage.Set(models.UserGroupPath("alice", "g2"), standing("0", "90", 3)),
		// Bob paid more than his share.
		storage.Set(models.UserGroupPath("bob", "g1"), standing("150", "200", 2)),
	)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	scanner := NewScanner(store, nil)
	res, err := scanner.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Users != 2 || res.Lowered != 1 || res.Failed != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if got := worst(t, store, "alice"); !got.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("alice: expected -30, got %s", got)
	}
	if got := worst(t, store, "bob"); !got.IsZero() {
		t.Errorf("bob: expected 0, got %s", got)
	}

	t.Run("improving balance does not raise the record", func(t *testing.T) {
		if err := store.Commit(ctx, storage.Set(models.UserGroupPath("alice", "g2"), standing("90", "90", 3))); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		res, err := scanner.Run(ctx)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if res.Lowered != 0 {
			t.Errorf("expected no changes, got %d", res.Lowered)
		}
		if got := worst(t, store, "alice"); !got.Equal(decimal.NewFromInt(-30)) {
			t.Errorf("alice: expected -30 to be kept, got %s", got)
		}
	})

	t.Run("worse balance lowers the record", func(t *testing.T) {
		if err := store.Commit(ctx, storage.Set(models.UserGroupPath("alice", "g1"), standing("0", "200", 2))); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		if _, err := scanner.Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		// g1: 0 - 100, g2: 90 - 30.
		if got := worst(t, store, "alice"); !got.Equal(decimal.NewFromInt(-40)) {
			t.Errorf("alice: expected -40, got %s", got)
		}
	})

	t.Run("repeated scans are monotonic", func(t *testing.T) {
		prev := worst(t, store, "alice")
		for i := 0; i < 3; i++ {
			if _, err := scanner.Run(ctx); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			got := worst(t, store, "alice")
			if got.GreaterThan(prev) {
				t.Fatalf("scan %d raised the record from %s to %s", i, prev, got)
			}
			prev = got
		}
	})
}
