package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidID is returned for document ids that are not a single path
// segment.
var ErrInvalidID = errors.New("invalid document id")

// ValidID reports whether id can name a document: non-empty, free of '/',
// and not "." or "..".
func ValidID(id string) error {
	if id == "" || id == "." || id == ".." || strings.Contains(id, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// join builds a path from collection names and ids. An invalid id is
// replaced by an empty segment, which the store rejects, so a crafted id can
// never address a document outside its collection.
func join(parts ...string) string {
	for i := 1; i < len(parts); i += 2 {
		if ValidID(parts[i]) != nil {
			parts[i] = ""
		}
	}
	return strings.Join(parts, "/")
}

// Collection names.
const (
	GroupsCollection     = "groups"
	UsersCollection      = "users"
	MembersCollection    = "members"
	ExpensesCollection   = "expenses"
	PaymentsCollection   = "payments"
	UserGroupsCollection = "groups"
)

func GroupPath(groupID string) string {
	return join(GroupsCollection, groupID)
}

func MembersPath(groupID string) string {
	return join(GroupsCollection, groupID, MembersCollection)
}

func MemberPath(groupID, userID string) string {
	return join(GroupsCollection, groupID, MembersCollection, userID)
}

func GroupExpensesPath(groupID string) string {
	return join(GroupsCollection, groupID, ExpensesCollection)
}

func GroupExpensePath(groupID, expenseID string) string {
	return join(GroupsCollection, groupID, ExpensesCollection, expenseID)
}

func GroupPaymentsPath(groupID string) string {
	return join(GroupsCollection, groupID, PaymentsCollection)
}

func GroupPaymentPath(groupID, paymentID string) string {
	return join(GroupsCollection, groupID, PaymentsCollection, paymentID)
}

func UserPath(userID string) string {
	return join(UsersCollection, userID)
}

func UserExpensePath(userID, expenseID string) string {
	return join(UsersCollection, userID, ExpensesCollection, expenseID)
}

func UserPaymentPath(userID, paymentID string) string {
	return join(UsersCollection, userID, PaymentsCollection, paymentID)
}

func UserGroupsPath(userID string) string {
	return join(UsersCollection, userID, UserGroupsCollection)
}

func UserGroupPath(userID, groupID string) string {
	return join(UsersCollection, userID, UserGroupsCollection, groupID)
}

// Trigger patterns for the paths above.
const (
	GroupPattern        = "groups/{groupId}"
	MemberPattern       = "groups/{groupId}/members/{userId}"
	GroupExpensePattern = "groups/{groupId}/expenses/{expenseId}"
	GroupPaymentPattern = "groups/{groupId}/payments/{paymentId}"
	UserExpensePattern  = "users/{userId}/expenses/{expenseId}"
	UserPaymentPattern  = "users/{userId}/payments/{paymentId}"
	UserGroupPattern    = "users/{userId}/groups/{groupId}"
)
