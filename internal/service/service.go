// Package service exposes the group, ledger and account callables over
// Connect RPC.
package service

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/mmynk/tally/internal/middleware"
	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

var (
	ErrUnauthenticated = errors.New("the function must be called while authenticated")
	ErrGroupNotFound   = errors.New("group does not exist")
	ErrNotMember       = errors.New("caller is not a member of the group")
	ErrNotAdmin        = errors.New("caller must be an admin of the group")
	ErrMemberNotFound  = errors.New("member does not exist")
	ErrEmptyName       = errors.New("name must not be empty")
	ErrInvalidRole     = errors.New("role must be admin or member")
	ErrNegativeAmount  = errors.New("amount must not be negative")
)

// caller returns the authenticated user id from ctx.
func caller(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeFailedPrecondition, ErrUnauthenticated)
	}
	return userID, nil
}

// loadGroup returns the group, or a FailedPrecondition error when it does
// not exist.
func loadGroup(ctx context.Context, store storage.Store, groupID string) (models.Group, error) {
	if groupID == "" {
		return models.Group{}, connect.NewError(connect.CodeFailedPrecondition, ErrGroupNotFound)
	}
	if err := models.ValidID(groupID); err != nil {
		return models.Group{}, connect.NewError(connect.CodeInvalidArgument, err)
	}
	group, err := storage.Lookup[models.Group](ctx, store, models.GroupPath(groupID))
	if err != nil {
		return models.Group{}, connect.NewError(connect.CodeInternal, err)
	}
	g, ok := group.Get()
	if !ok {
		return models.Group{}, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID))
	}
	g.ID = groupID
	return g, nil
}

// lookupMember returns the member record of userID in groupID, if any.
func lookupMember(ctx context.Context, store storage.Store, groupID, userID string) (models.Option[models.Member], error) {
	if err := models.ValidID(userID); err != nil {
		return models.None[models.Member](), connect.NewError(connect.CodeInvalidArgument, err)
	}
	member, err := storage.Lookup[models.Member](ctx, store, models.MemberPath(groupID, userID))
	if err != nil {
		return models.None[models.Member](), connect.NewError(connect.CodeInternal, err)
	}
	return member, nil
}

// requireMember returns the member record of userID, or a FailedPrecondition
// error when the user is not in the group.
func requireMember(ctx context.Context, store storage.Store, groupID, userID string) (models.Member, error) {
	member, err := lookupMember(ctx, store, groupID, userID)
	if err != nil {
		return models.Member{}, err
	}
	m, ok := member.Get()
	if !ok {
		return models.Member{}, connect.NewError(connect.CodeFailedPrecondition, ErrNotMember)
	}
	m.UserID = userID
	return m, nil
}

// requireAdmin is requireMember that also demands the admin role.
func requireAdmin(ctx context.Context, store storage.Store, groupID, userID string) error {
	member, err := requireMember(ctx, store, groupID, userID)
	if err != nil {
		return err
	}
	if member.Role != models.RoleAdmin {
		return connect.NewError(connect.CodeFailedPrecondition, ErrNotAdmin)
	}
	return nil
}
