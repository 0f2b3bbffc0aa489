package storage

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestApply(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	existing := &Document{
		Path: "groups/g1",
		Fields: map[string]any{
			"name":          "Roommates",
			"totalExpenses": json.Number("10.5"),
			"numMembers":    json.Number("2"),
		},
		CreateTime: now.Add(-time.Hour),
	}

	t.Run("Create fails on existing document", func(t *testing.T) {
		_, err := Apply(existing, Create("groups/g1", map[string]any{"name": "x"}), now)
		if !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("Ensure keeps existing document", func(t *testing.T) {
		got, err := Apply(existing, Ensure("groups/g1", map[string]any{"name": "other"}), now)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if got.Fields["name"] != "Roommates" {
			t.Errorf("name: expected Roommates, got %v", got.Fields["name"])
		}
	})

	t.Run("Update adds deltas", func(t *testing.T) {
		got, err := Apply(existing, Update("groups/g1",
			map[string]decimal.Decimal{
				"totalExpenses": decimal.RequireFromString("4.5"),
				"numMembers":    decimal.NewFromInt(-1),
			},
			map[string]any{"latestUpdate": now},
		), now)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if got.Fields["totalExpenses"] != json.Number("15") {
			t.Errorf("totalExpenses: expected 15, got %v", got.Fields["totalExpenses"])
		}
		if got.Fields["numMembers"] != json.Number("1") {
			t.Errorf("numMembers: expected 1, got %v", got.Fields["numMembers"])
		}
		if got.Fields["latestUpdate"] != now.Format(time.RFC3339Nano) {
			t.Errorf("latestUpdate not normalized: %v", got.Fields["latestUpdate"])
		}
		if got.CreateTime != existing.CreateTime {
			t.Error("expected CreateTime to be preserved")
		}
		if existing.Fields["totalExpenses"] != json.Number("10.5") {
			t.Error("Apply modified its input")
		}
	})

	t.Run("Update of missing document is a no-op", func(t *testing.T) {
		got, err := Apply(nil, Update("groups/g2", map[string]decimal.Decimal{"numMembers": decimal.NewFromInt(1)}, nil), now)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil document, got %+v", got)
		}
	})

	t.Run("Update creates nested counters", func(t *testing.T) {
		user := &Document{Path: "users/u1", Fields: map[string]any{}}
		got, err := Apply(user, Update("users/u1",
			map[string]decimal.Decimal{"achievementProgress.expensesCount": decimal.NewFromInt(1)}, nil), now)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		v, ok := getField(got.Fields, "achievementProgress.expensesCount")
		if !ok || v != json.Number("1") {
			t.Errorf("expensesCount: expected 1, got %v", v)
		}
	})

	t.Run("Update rejects non-numeric field", func(t *testing.T) {
		_, err := Apply(existing, Update("groups/g1", map[string]decimal.Decimal{"name": decimal.NewFromInt(1)}, nil), now)
		if err == nil {
			t.Error("expected error for non-numeric field")
		}
	})

	t.Run("Merge upserts", func(t *testing.T) {
		got, err := Apply(nil, Merge("users/u1/groups/g1", map[string]any{"name": "Trip"}), now)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if got == nil || got.Fields["name"] != "Trip" {
			t.Errorf("expected merged document, got %+v", got)
		}
	})

	t.Run("Delete yields nil", func(t *testing.T) {
		got, err := Apply(existing, Delete("groups/g1"), now)
		if err != nil || got != nil {
			t.Errorf("expected nil, nil; got %v, %v", got, err)
		}
	})
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"groups/g1", false},
		{"groups/g1/expenses/e1", false},
		{"groups", true},
		{"groups/g1/expenses", true},
		{"groups//x/y", true},
		{"groups/g1/members/..", true},
		{"groups/../users/u1", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
