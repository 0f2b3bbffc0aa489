package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/tally/internal/auth"
	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

// GroupService implements the membership lifecycle callables.
type GroupService struct {
	store     storage.Store
	directory auth.Directory
	logger    *slog.Logger
	now       func() time.Time
}

// NewGroupService creates a GroupService. directory supplies the display
// names copied into member records.
func NewGroupService(store storage.Store, directory auth.Directory, logger *slog.Logger) *GroupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupService{store: store, directory: directory, logger: logger, now: time.Now}
}

// CreateGroup creates a group with the caller as its admin.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[GroupResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, ErrEmptyName)
	}

	userName, err := s.displayName(ctx, userID)
	if err != nil {
		return nil, err
	}

	groupID := uuid.NewString()
	now := s.now()
	err = s.store.Commit(ctx,
		storage.Create(models.GroupPath(groupID), models.Group{
			Name:         name,
			CreatedAt:    now,
			LatestUpdate: now,
		}),
		storage.Create(models.MemberPath(groupID, userID), models.Member{
			UserName: userName,
			Role:     models.RoleAdmin,
			JoinDate: now,
		}),
	)
	if err != nil {
		s.logger.Error("CreateGroup failed", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Group created", "group_id", groupID, "user_id", userID)
	return connect.NewResponse(&GroupResponse{GroupID: groupID}), nil
}

// JoinGroup adds the caller to a group with the requested role. Joining a
// group the caller is already in leaves the existing record untouched.
func (s *GroupService) JoinGroup(ctx context.Context, req *connect.Request[JoinGroupRequest]) (*connect.Response[GroupResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if !req.Msg.Role.Valid() {
		return nil, connect.NewError(connect.CodeInvalidArgument, ErrInvalidRole)
	}
	group, err := loadGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}

	userName, err := s.displayName(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.store.Commit(ctx, storage.Ensure(models.MemberPath(group.ID, userID), models.Member{
		UserName: userName,
		Role:     req.Msg.Role,
		JoinDate: s.now(),
	}))
	if err != nil {
		s.logger.Error("JoinGroup failed", "group_id", group.ID, "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Member joined", "group_id", group.ID, "user_id", userID, "role", req.Msg.Role)
	return connect.NewResponse(&GroupResponse{GroupID: group.ID}), nil
}

// LeaveGroup removes the caller from a group.
func (s *GroupService) LeaveGroup(ctx context.Context, req *connect.Request[LeaveGroupRequest]) (*connect.Response[GroupResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	group, err := loadGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.store, group.ID, userID); err != nil {
		return nil, err
	}

	if err := s.removeMember(ctx, group.ID, userID); err != nil {
		return nil, err
	}

	s.logger.Info("Member left", "group_id", group.ID, "user_id", userID)
	return connect.NewResponse(&GroupResponse{GroupID: group.ID}), nil
}

// KickMember removes another member. The caller must be an admin.
func (s *GroupService) KickMember(ctx context.Context, req *connect.Request[KickMemberRequest]) (*connect.Response[GroupResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	group, err := loadGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(ctx, s.store, group.ID, userID); err != nil {
		return nil, err
	}

	target, err := lookupMember(ctx, s.store, group.ID, req.Msg.MemberID)
	if err != nil {
		return nil, err
	}
	if !target.IsSome() {
		return nil, connect.NewError(connect.CodeFailedPrecondition, ErrMemberNotFound)
	}

	if err := s.removeMember(ctx, group.ID, req.Msg.MemberID); err != nil {
		return nil, err
	}

	s.logger.Info("Member kicked", "group_id", group.ID, "member_id", req.Msg.MemberID, "by", userID)
	return connect.NewResponse(&GroupResponse{GroupID: group.ID}), nil
}

// DeleteGroup deletes a group. The caller must be an admin. Member records
// are removed by the group trigger; expenses and payments are kept.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[DeleteGroupRequest]) (*connect.Response[GroupResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	group, err := loadGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(ctx, s.store, group.ID, userID); err != nil {
		return nil, err
	}

	if err := s.store.Commit(ctx, storage.Delete(models.GroupPath(group.ID))); err != nil {
		s.logger.Error("DeleteGroup failed", "group_id", group.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Group deleted", "group_id", group.ID, "by", userID)
	return connect.NewResponse(&GroupResponse{GroupID: group.ID}), nil
}

// removeMember deletes a member record. When it is the last one, every
// expense of the group is frozen in the same commit so an abandoned group
// stops renewing.
func (s *GroupService) removeMember(ctx context.Context, groupID, userID string) error {
	members, err := s.store.List(ctx, models.MembersPath(groupID))
	if err != nil {
		s.logger.Error("Failed to list members", "group_id", groupID, "error", err)
		return connect.NewError(connect.CodeInternal, err)
	}

	writes := []storage.Write{storage.Delete(models.MemberPath(groupID, userID))}
	remaining := 0
	for _, doc := range members {
		if doc.ID() != userID {
			remaining++
		}
	}
	if remaining == 0 {
		expenses, err := s.store.List(ctx, models.GroupExpensesPath(groupID))
		if err != nil {
			s.logger.Error("Failed to list expenses", "group_id", groupID, "error", err)
			return connect.NewError(connect.CodeInternal, err)
		}
		for _, doc := range expenses {
			writes = append(writes, storage.Update(doc.Path, nil, map[string]any{
				models.FieldAlreadyRecurred: true,
			}))
		}
		s.logger.Info("Group is empty, freezing expenses", "group_id", groupID, "expenses", len(expenses))
	}

	if err := s.store.Commit(ctx, writes...); err != nil {
		s.logger.Error("Failed to remove member", "group_id", groupID, "user_id", userID, "error", err)
		return connect.NewError(connect.CodeInternal, err)
	}
	return nil
}

// displayName looks the user up in the directory. Users unknown to the
// directory get an empty name.
func (s *GroupService) displayName(ctx context.Context, userID string) (string, error) {
	if s.directory == nil {
		return "", nil
	}
	name, err := s.directory.DisplayName(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("Caller has no directory entry", "user_id", userID)
		return "", nil
	}
	if err != nil {
		s.logger.Error("Failed to look up display name", "user_id", userID, "error", err)
		return "", connect.NewError(connect.CodeInternal, err)
	}
	return name, nil
}
