package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tally/internal/aggregate"
	"github.com/mmynk/tally/internal/auth"
	"github.com/mmynk/tally/internal/middleware"
	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
	"github.com/mmynk/tally/internal/storage/sqlite"
	"github.com/mmynk/tally/internal/trigger"
)

// testServer runs every service behind the real interceptors, with the
// aggregate triggers attached to the store.
type testServer struct {
	store      *sqlite.SQLiteStore
	dispatcher *trigger.Dispatcher
	jwt        *auth.JWTManager

	groupSvc  *GroupService
	ledgerSvc *LedgerService

	groups *GroupServiceClient
	ledger *LedgerServiceClient
	auth   *AuthServiceClient
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := trigger.New(ctx, nil)
	aggregate.New(store, nil).Register(d)
	store.Subscribe(d.Publish)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	groupSvc := NewGroupService(store, store, nil)
	ledgerSvc := NewLedgerService(store, nil)
	authSvc := NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, store, nil)

	required := connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor(nil))
	optional := connect.WithInterceptors(middleware.OptionalAuth(jwtManager), middleware.LoggingInterceptor(nil))

	mux := http.NewServeMux()
	mux.Handle(NewGroupServiceHandler(groupSvc, required))
	mux.Handle(NewLedgerServiceHandler(ledgerSvc, required))
	mux.Handle(NewAuthServiceHandler(authSvc, optional))
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		d.Wait()
		cancel()
		store.Close()
		os.Remove(tmpFile.Name())
	})

	return &testServer{
		store:      store,
		dispatcher: d,
		jwt:        jwtManager,
		groupSvc:   groupSvc,
		ledgerSvc:  ledgerSvc,
		groups:     NewGroupServiceClient(http.DefaultClient, server.URL),
		ledger:     NewLedgerServiceClient(http.DefaultClient, server.URL),
		auth:       NewAuthServiceClient(http.DefaultClient, server.URL),
	}
}

// user creates an account directly in the store and returns a session for it.
func (ts *testServer) user(t *testing.T, displayName string) session {
	t.Helper()
	account := models.NewAccount(displayName+"@example.com", displayName, "unused")
	if err := ts.store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	token, err := ts.jwt.Generate(account)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return session{id: account.ID, token: token}
}

type session struct {
	id    string
	token string
}

// authed wraps msg in a request carrying s's bearer token.
func authed[T any](s session, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+s.token)
	return req
}

func (ts *testServer) createGroup(t *testing.T, s session, name string) string {
	t.Helper()
	resp, err := ts.groups.CreateGroup(context.Background(), authed(s, &CreateGroupRequest{Name: name}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	ts.dispatcher.Wait()
	return resp.Msg.GroupID
}

func (ts *testServer) join(t *testing.T, s session, groupID string, role models.Role) {
	t.Helper()
	if _, err := ts.groups.JoinGroup(context.Background(), authed(s, &JoinGroupRequest{GroupID: groupID, Role: role})); err != nil {
		t.Fatalf("JoinGroup failed: %v", err)
	}
	ts.dispatcher.Wait()
}

func (ts *testServer) profile(t *testing.T, s session) *ProfileResponse {
	t.Helper()
	ts.dispatcher.Wait()
	resp, err := ts.ledger.GetProfile(context.Background(), authed(s, &GetProfileRequest{}))
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	return resp.Msg
}

func lookup[T any](t *testing.T, store storage.Store, path string) models.Option[T] {
	t.Helper()
	v, err := storage.Lookup[T](context.Background(), store, path)
	if err != nil {
		t.Fatalf("Lookup %s failed: %v", path, err)
	}
	return v
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Errorf("code: got %v, want %v (%v)", got, want, err)
	}
}
