package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "tally-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// recorder collects changes delivered to a listener.
type recorder struct {
	mu      sync.Mutex
	changes []storage.Change
}

func (r *recorder) listen(c storage.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) take() []storage.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.changes
	r.changes = nil
	return out
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	rec := &recorder{}
	store.Subscribe(rec.listen)
	ctx := context.Background()

	t.Run("Create and Get round trip", func(t *testing.T) {
		group := models.Group{Name: "Roommates", TotalExpenses: decimal.RequireFromString("12.34"), NumMembers: 2}
		if err := store.Commit(ctx, storage.Create(models.GroupPath("g1"), group)); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}

		got, err := storage.Lookup[models.Group](ctx, store, models.GroupPath("g1"))
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		g, ok := got.Get()
		if !ok {
			t.Fatal("expected group to exist")
		}
		if g.Name != "Roommates" {
			t.Errorf("Name mismatch: got %s, want Roommates", g.Name)
		}
		if !g.TotalExpenses.Equal(decimal.RequireFromString("12.34")) {
			t.Errorf("TotalExpenses mismatch: got %s, want 12.34", g.TotalExpenses)
		}
		if g.NumMembers != 2 {
			t.Errorf("NumMembers mismatch: got %d, want 2", g.NumMembers)
		}

		changes := rec.take()
		if len(changes) != 1 || changes[0].Before != nil || changes[0].After == nil {
			t.Errorf("expected one creation change, got %+v", changes)
		}
	})

	t.Run("Create on existing document fails", func(t *testing.T) {
		err := store.Commit(ctx, storage.Create(models.GroupPath("g1"), models.Group{Name: "Other"}))
		if !errors.Is(err, storage.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
		if len(rec.take()) != 0 {
			t.Error("expected no change notifications for a failed commit")
		}
	})

	t.Run("Get returns ErrNotFound for missing document", func(t *testing.T) {
		_, err := store.Get(ctx, models.GroupPath("missing"))
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		opt, err := storage.Lookup[models.Group](ctx, store, models.GroupPath("missing"))
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if opt.IsSome() {
			t.Error("expected empty option")
		}
	})

	t.Run("Batch is atomic", func(t *testing.T) {
		err := store.Commit(ctx,
			storage.Update(models.GroupPath("g1"), map[string]decimal.Decimal{models.FieldNumMembers: decimal.NewFromInt(1)}, nil),
			storage.Create(models.GroupPath("g1"), models.Group{}),
		)
		if err == nil {
			t.Fatal("expected commit to fail")
		}

		g, _ := storage.Lookup[models.Group](ctx, store, models.GroupPath("g1"))
		if g.OrZero().NumMembers != 2 {
			t.Errorf("expected rolled back NumMembers 2, got %d", g.OrZero().NumMembers)
		}
	})

	t.Run("Update reports before and after", func(t *testing.T) {
		err := store.Commit(ctx, storage.Update(models.GroupPath("g1"),
			map[string]decimal.Decimal{models.FieldTotalExpenses: decimal.NewFromInt(10)}, nil))
		if err != nil {
			t.Fatalf("Commit failed: %v", err)
		}

		changes := rec.take()
		if len(changes) != 1 {
			t.Fatalf("expected 1 change, got %d", len(changes))
		}
		var before, after models.Group
		changes[0].Before.DataTo(&before)
		changes[0].After.DataTo(&after)
		if !after.TotalExpenses.Sub(before.TotalExpenses).Equal(decimal.NewFromInt(10)) {
			t.Errorf("expected delta 10, got %s -> %s", before.TotalExpenses, after.TotalExpenses)
		}
	})

	t.Run("Unchanged writes are not reported", func(t *testing.T) {
		err := store.Commit(ctx, storage.Ensure(models.GroupPath("g1"), models.Group{}))
		if err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		if n := len(rec.take()); n != 0 {
			t.Errorf("expected no changes, got %d", n)
		}
	})

	t.Run("List returns collection members only", func(t *testing.T) {
		err := store.Commit(ctx,
			storage.Set(models.MemberPath("g1", "bob"), models.Member{UserName: "Bob", Role: models.RoleMember}),
			storage.Set(models.MemberPath("g1", "alice"), models.Member{UserName: "Alice", Role: models.RoleAdmin}),
			storage.Set(models.MemberPath("g2", "carol"), models.Member{UserName: "Carol"}),
		)
		if err != nil {
			t.Fatalf("Commit failed: %v", err)
		}

		members, err := storage.ListAs(ctx, store, models.MembersPath("g1"), func(m *models.Member, id string) { m.UserID = id })
		if err != nil {
			t.Fatalf("ListAs failed: %v", err)
		}
		if len(members) != 2 {
			t.Fatalf("expected 2 members, got %d", len(members))
		}
		if members[0].UserID != "alice" || members[1].UserID != "bob" {
			t.Errorf("unexpected order: %s, %s", members[0].UserID, members[1].UserID)
		}
		rec.take()
	})

	t.Run("Delete removes document", func(t *testing.T) {
		if err := store.Commit(ctx, storage.Delete(models.MemberPath("g1", "bob"))); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		_, err := store.Get(ctx, models.MemberPath("g1", "bob"))
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		changes := rec.take()
		if len(changes) != 1 || changes[0].After != nil {
			t.Errorf("expected one deletion change, got %+v", changes)
		}
	})

	t.Run("Invalid path is rejected", func(t *testing.T) {
		if err := store.Commit(ctx, storage.Delete("groups")); err == nil {
			t.Error("expected error for collection path")
		}
	})
}

func TestAccounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := models.NewAccount("alice@example.com", "Alice", "hash")
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	byEmail, err := store.GetAccountByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetAccountByEmail failed: %v", err)
	}
	if byEmail.ID != account.ID {
		t.Errorf("ID mismatch: got %s, want %s", byEmail.ID, account.ID)
	}

	name, err := store.DisplayName(ctx, account.ID)
	if err != nil {
		t.Fatalf("DisplayName failed: %v", err)
	}
	if name != "Alice" {
		t.Errorf("DisplayName: got %s, want Alice", name)
	}

	if err := store.CreateAccount(ctx, models.NewAccount("alice@example.com", "Other", "hash")); err == nil {
		t.Error("expected duplicate email to fail")
	}

	if err := store.DeleteAccount(ctx, account.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if _, err := store.GetAccountByID(ctx, account.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
