package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tally/internal/auth"
	"github.com/mmynk/tally/internal/middleware"
	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

// AccountRemover deletes login accounts.
type AccountRemover interface {
	DeleteAccount(ctx context.Context, id string) error
}

// AuthService implements registration, login and account deletion.
// Registration and deletion create and remove the user's root record.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	accounts      AccountRemover
	store         storage.Store
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, accounts AccountRemover, store storage.Store, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		accounts:      accounts,
		store:         store,
		logger:        logger,
	}
}

// Register creates a new account and its root user record.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[SessionResponse], error) {
	s.logger.Info("Register request", "email", req.Msg.Email)

	displayName := strings.TrimSpace(req.Msg.DisplayName)
	if displayName == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, ErrEmptyName)
	}

	account, err := s.authenticator.Register(ctx, req.Msg.Email, displayName, req.Msg.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			s.logger.Warn("Registration rejected", "email", req.Msg.Email, "error", err)
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
			s.logger.Warn("Registration rejected", "email", req.Msg.Email, "error", err)
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		default:
			s.logger.Error("Registration failed", "email", req.Msg.Email, "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	}

	if err := s.store.Commit(ctx, storage.Ensure(models.UserPath(account.ID), models.NewUser(account.ID, account.DisplayName))); err != nil {
		s.logger.Error("Failed to create user record", "user_id", account.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp, err := s.session(account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered successfully", "user_id", account.ID, "email", account.Email)
	return connect.NewResponse(resp), nil
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[SessionResponse], error) {
	s.logger.Info("Login request", "email", req.Msg.Email)

	if req.Msg.Email == "" || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	account, err := s.authenticator.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("Login failed", "email", req.Msg.Email, "error", err)
			return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
		}
		s.logger.Error("Login failed", "email", req.Msg.Email, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp, err := s.session(account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in successfully", "user_id", account.ID, "email", account.Email)
	return connect.NewResponse(resp), nil
}

// DeleteAccount removes the caller's account and root user record. Group
// memberships and mirrored records are left for the caller's groups to
// manage.
func (s *AuthService) DeleteAccount(ctx context.Context, req *connect.Request[DeleteAccountRequest]) (*connect.Response[DeleteAccountResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	if err := s.accounts.DeleteAccount(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		s.logger.Error("DeleteAccount failed", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if err := s.store.Commit(ctx, storage.Delete(models.UserPath(userID))); err != nil {
		s.logger.Error("Failed to delete user record", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Account deleted", "user_id", userID)
	return connect.NewResponse(&DeleteAccountResponse{}), nil
}

func (s *AuthService) session(account *models.Account) (*SessionResponse, error) {
	token, err := s.jwtManager.Generate(account)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", account.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return &SessionResponse{
		UserID:      account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Token:       token,
	}, nil
}
