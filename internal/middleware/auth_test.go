package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tally/internal/auth"
	"github.com/mmynk/tally/internal/models"
)

type ping struct{}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	account := models.NewAccount("alice@example.com", "Alice", "hash")
	token, err := jwtManager.Generate(account)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var seen string
	next := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		seen = GetUserID(ctx)
		return connect.NewResponse(&ping{}), nil
	}
	required := RequireAuth(jwtManager)(next)
	optional := OptionalAuth(jwtManager)(next)

	tests := []struct {
		name         string
		header       string
		wantRequired bool
		wantUser     string
	}{
		{"valid token", "Bearer " + token, true, account.ID},
		{"missing header", "", false, ""},
		{"wrong scheme", "Basic " + token, false, ""},
		{"bad token", "Bearer nope", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := connect.NewRequest(&ping{})
			if tt.header != "" {
				req.Header().Set("Authorization", tt.header)
			}

			seen = ""
			_, err := required(context.Background(), req)
			if tt.wantRequired {
				if err != nil {
					t.Fatalf("RequireAuth: unexpected error %v", err)
				}
				if seen != tt.wantUser {
					t.Errorf("RequireAuth user: got %q, want %q", seen, tt.wantUser)
				}
			} else {
				var connectErr *connect.Error
				if !errors.As(err, &connectErr) || connectErr.Code() != connect.CodeUnauthenticated {
					t.Errorf("RequireAuth: expected Unauthenticated, got %v", err)
				}
			}

			seen = ""
			if _, err := optional(context.Background(), req); err != nil {
				t.Fatalf("OptionalAuth: unexpected error %v", err)
			}
			if seen != tt.wantUser {
				t.Errorf("OptionalAuth user: got %q, want %q", seen, tt.wantUser)
			}
		})
	}
}
