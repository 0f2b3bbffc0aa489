package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/recurrence"
)

func TestCreateGroup(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.user(t, "Alice")

	groupID := ts.createGroup(t, alice, "Roommates")
	if groupID == "" {
		t.Fatal("expected non-empty group ID")
	}

	group, ok := lookup[models.Group](t, ts.store, models.GroupPath(groupID)).Get()
	if !ok {
		t.Fatal("group not stored")
	}
	if group.Name != "Roommates" {
		t.Errorf("name: expected 'Roommates', got '%s'", group.Name)
	}
	if group.NumMembers != 1 {
		t.Errorf("numMembers: expected 1, got %d", group.NumMembers)
	}

	member, ok := lookup[models.Member](t, ts.store, models.MemberPath(groupID, alice.id)).Get()
	if !ok {
		t.Fatal("creator is not a member")
	}
	if member.Role != models.RoleAdmin || member.UserName != "Alice" {
		t.Errorf("creator member: got %+v", member)
	}

	profile := ts.profile(t, alice)
	if profile.User.NumGroups != 1 {
		t.Errorf("numGroups: expected 1, got %d", profile.User.NumGroups)
	}
	if profile.Groups[groupID].Name != "Roommates" {
		t.Errorf("mirror: got %+v", profile.Groups[groupID])
	}
}

func TestCreateGroup_InvalidInput(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.user(t, "Alice")

	_, err := ts.groups.CreateGroup(context.Background(), authed(alice, &CreateGroupRequest{Name: "   "}))
	assertCode(t, err, connect.CodeInvalidArgument)

	// Calls that reach the service without a caller identity.
	_, err = ts.groupSvc.CreateGroup(context.Background(), connect.NewRequest(&CreateGroupRequest{Name: "Trip"}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	// Calls without a token never reach the service.
	_, err = ts.groups.CreateGroup(context.Background(), connect.NewRequest(&CreateGroupRequest{Name: "Trip"}))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestJoinGroup(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.user(t, "Alice")
	bob := ts.user(t, "Bob")
	groupID := ts.createGroup(t, alice, "Trip")

	t.Run("invalid role", func(t *testing.T) {
		_, err := ts.groups.JoinGroup(context.Background(), authed(bob, &JoinGroupRequest{GroupID: groupID, Role: "owner"}))
		assertCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("missing group", func(t *testing.T) {
		_, err := ts.groups.JoinGroup(context.Background(), authed(bob, &JoinGroupRequest{GroupID: "nonexistent", Role: models.RoleMember}))
		assertCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("join", func(t *testing.T) {
		ts.join(t, bob, groupID, models.RoleMember)
		group, _ := lookup[models.Group](t, ts.store, models.GroupPath(groupID)).Get()
		if group.NumMembers != 2 {
			t.Errorf("numMembers: expected 2, got %d", group.NumMembers)
		}
		profile := ts.profile(t, bob)
		if profile.Groups[groupID].NumMembers != 2 {
			t.Errorf("mirror numMembers: expected 2, got %d", profile.Groups[groupID].NumMembers)
		}
	})

	t.Run("join twice keeps one membership", func(t *testing.T) {
		ts.join(t, bob, groupID, models.RoleAdmin)
		group, _ := lookup[models.Group](t, ts.store, models.GroupPath(groupID)).Get()
		if group.NumMembers != 2 {
			t.Errorf("numMembers: expected 2, got %d", group.NumMembers)
		}
		member, _ := lookup[models.Member](t, ts.store, models.MemberPath(groupID, bob.id)).Get()
		if member.Role != models.RoleMember {
			t.Errorf("role changed on rejoin: %s", member.Role)
		}
	})
}

func TestKickMember(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.user(t, "Alice")
	bob := ts.user(t, "Bob")
	groupID := ts.createGroup(t, alice, "Trip")
	ts.join(t, bob, groupID, models.RoleMember)

	t.Run("non-admin", func(t *testing.T) {
		_, err := ts.groups.KickMember(context.Background(), authed(bob, &KickMemberRequest{GroupID: groupID, MemberID: alice.id}))
		assertCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := ts.groups.KickMember(context.Background(), authed(alice, &KickMemberRequest{GroupID: groupID, MemberID: "nobody"}))
		assertCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("admin kicks", func(t *testing.T) {
		if _, err := ts.groups.KickMember(context.Background(), authed(alice, &KickMemberRequest{GroupID: groupID, MemberID: bob.id})); err != nil {
			t.Fatalf("KickMember failed: %v", err)
		}
		ts.dispatcher.Wait()

		if lookup[models.Member](t, ts.store, models.MemberPath(groupID, bob.id)).IsSome() {
			t.Error("member record still present")
		}
		profile := ts.profile(t, bob)
		if _, ok := profile.Groups[groupID]; ok {
			t.Error("mirror still present after kick")
		}
		if profile.User.NumGroups != 0 {
			t.Errorf("numGroups: expected 0, got %d", profile.User.NumGroups)
		}
		group, _ := lookup[models.Group](t, ts.store, models.GroupPath(groupID)).Get()
		if group.NumMembers != 1 {
			t.Errorf("numMembers: expected 1, got %d", group.NumMembers)
		}
	})
}

func TestLeaveGroup_FreezesWhenEmpty(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.user(t, "Alice")
	bob := ts.user(t, "Bob")
	groupID := ts.createGroup(t, alice, "Flat")
	ts.join(t, bob, groupID, models.RoleMember)

	resp, err := ts.ledger.AddExpense(context.Background(), authed(alice, &ExpenseRequest{
		GroupID:   groupID,
		Name:      "Rent",
		Cost:      dec(900),
		Recurring: true,
		Interval:  &Interval{Unit: recurrence.Month.String(), Magnitude: 1},
	}))
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	expensePath := models.GroupExpensePath(groupID, resp.Msg.ExpenseID)

	frozen := func() bool {
		t.Helper()
		ts.dispatcher.Wait()
		e, ok := lookup[models.Expense](t, ts.store, expensePath).Get()
		if !ok {
			t.Fatal("expense missing")
		}
		return e.AlreadyRecurred
	}

	if _, err := ts.groups.LeaveGroup(context.Background(), authed(bob, &LeaveGroupRequest{GroupID: groupID})); err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}
	if frozen() {
		t.Error("expense frozen while a member remains")
	}

	_, err = ts.groups.LeaveGroup(context.Background(), authed(bob, &LeaveGroupRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	if _, err := ts.groups.LeaveGroup(context.Background(), authed(alice, &LeaveGroupRequest{GroupID: groupID})); err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}
	if !frozen() {
		t.Error("expense not frozen after the last member left")
	}
	group, _ := lookup[models.Group](t, ts.store, models.GroupPath(groupID)).Get()
	if group.NumMembers != 0 {
		t.Errorf("numMembers: expected 0, got %d", group.NumMembers)
	}
}

func TestDeleteGroup(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.user(t, "Alice")
	bob := ts.user(t, "Bob")
	groupID := ts.createGroup(t, alice, "Trip")
	ts.join(t, bob, groupID, models.RoleMember)

	_, err := ts.groups.DeleteGroup(context.Background(), authed(bob, &DeleteGroupRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	if _, err := ts.groups.DeleteGroup(context.Background(), authed(alice, &DeleteGroupRequest{GroupID: groupID})); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	ts.dispatcher.Wait()

	if lookup[models.Group](t, ts.store, models.GroupPath(groupID)).IsSome() {
		t.Error("group still present")
	}
	for _, s := range []session{alice, bob} {
		if lookup[models.Member](t, ts.store, models.MemberPath(groupID, s.id)).IsSome() {
			t.Errorf("member %s still present", s.id)
		}
		profile := ts.profile(t, s)
		if len(profile.Groups) != 0 || profile.User.NumGroups != 0 {
			t.Errorf("%s still sees the group: %+v", s.id, profile)
		}
	}

	_, err = ts.groups.DeleteGroup(context.Background(), authed(alice, &DeleteGroupRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodeFailedPrecondition)
}

func TestGroupService_RejectsPathIDs(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	alice := ts.user(t, "Alice")
	bob := ts.user(t, "Bob")
	mine := ts.createGroup(t, alice, "Mine")
	theirs := ts.createGroup(t, bob, "Theirs")

	kicks := []string{
		"../../../groups/" + theirs,
		"../../" + theirs + "/members/" + bob.id,
		"..",
		".",
		bob.id + "/x",
	}
	for _, id := range kicks {
		t.Run("kick "+id, func(t *testing.T) {
			_, err := ts.groups.KickMember(ctx, authed(alice, &KickMemberRequest{GroupID: mine, MemberID: id}))
			assertCode(t, err, connect.CodeInvalidArgument)
		})
	}

	t.Run("join outside groups", func(t *testing.T) {
		_, err := ts.groups.JoinGroup(ctx, authed(alice, &JoinGroupRequest{GroupID: "../users/" + bob.id, Role: models.RoleMember}))
		assertCode(t, err, connect.CodeInvalidArgument)
	})

	ts.dispatcher.Wait()
	if !lookup[models.Group](t, ts.store, models.GroupPath(theirs)).IsSome() {
		t.Fatal("other group was deleted")
	}
	if !lookup[models.Member](t, ts.store, models.MemberPath(theirs, bob.id)).IsSome() {
		t.Error("other group's member was deleted")
	}
	if lookup[models.Member](t, ts.store, "users/"+bob.id+"/members/"+alice.id).IsSome() {
		t.Error("join wrote under another user")
	}
}
