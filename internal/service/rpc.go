package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const (
	GroupServiceName  = "tally.v1.GroupService"
	LedgerServiceName = "tally.v1.LedgerService"
	AuthServiceName   = "tally.v1.AuthService"
)

const (
	GroupServiceCreateGroupProcedure = "/" + GroupServiceName + "/CreateGroup"
	GroupServiceJoinGroupProcedure   = "/" + GroupServiceName + "/JoinGroup"
	GroupServiceLeaveGroupProcedure  = "/" + GroupServiceName + "/LeaveGroup"
	GroupServiceKickMemberProcedure  = "/" + GroupServiceName + "/KickMember"
	GroupServiceDeleteGroupProcedure = "/" + GroupServiceName + "/DeleteGroup"

	LedgerServiceAddExpenseProcedure    = "/" + LedgerServiceName + "/AddExpense"
	LedgerServiceUpdateExpenseProcedure = "/" + LedgerServiceName + "/UpdateExpense"
	LedgerServiceDeleteExpenseProcedure = "/" + LedgerServiceName + "/DeleteExpense"
	LedgerServiceAddPaymentProcedure    = "/" + LedgerServiceName + "/AddPayment"
	LedgerServiceUpdatePaymentProcedure = "/" + LedgerServiceName + "/UpdatePayment"
	LedgerServiceDeletePaymentProcedure = "/" + LedgerServiceName + "/DeletePayment"
	LedgerServiceGetProfileProcedure    = "/" + LedgerServiceName + "/GetProfile"

	AuthServiceRegisterProcedure      = "/" + AuthServiceName + "/Register"
	AuthServiceLoginProcedure         = "/" + AuthServiceName + "/Login"
	AuthServiceDeleteAccountProcedure = "/" + AuthServiceName + "/DeleteAccount"
)

// unary registers one procedure on mux.
func unary[Req, Res any](mux *http.ServeMux, procedure string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error), opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
}

// NewGroupServiceHandler returns the mount path and handler for svc.
func NewGroupServiceHandler(svc *GroupService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	unary(mux, GroupServiceCreateGroupProcedure, svc.CreateGroup, opts)
	unary(mux, GroupServiceJoinGroupProcedure, svc.JoinGroup, opts)
	unary(mux, GroupServiceLeaveGroupProcedure, svc.LeaveGroup, opts)
	unary(mux, GroupServiceKickMemberProcedure, svc.KickMember, opts)
	unary(mux, GroupServiceDeleteGroupProcedure, svc.DeleteGroup, opts)
	return "/" + GroupServiceName + "/", mux
}

// NewLedgerServiceHandler returns the mount path and handler for svc.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	unary(mux, LedgerServiceAddExpenseProcedure, svc.AddExpense, opts)
	unary(mux, LedgerServiceUpdateExpenseProcedure, svc.UpdateExpense, opts)
	unary(mux, LedgerServiceDeleteExpenseProcedure, svc.DeleteExpense, opts)
	unary(mux, LedgerServiceAddPaymentProcedure, svc.AddPayment, opts)
	unary(mux, LedgerServiceUpdatePaymentProcedure, svc.UpdatePayment, opts)
	unary(mux, LedgerServiceDeletePaymentProcedure, svc.DeletePayment, opts)
	unary(mux, LedgerServiceGetProfileProcedure, svc.GetProfile, opts)
	return "/" + LedgerServiceName + "/", mux
}

// NewAuthServiceHandler returns the mount path and handler for svc.
func NewAuthServiceHandler(svc *AuthService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	unary(mux, AuthServiceRegisterProcedure, svc.Register, opts)
	unary(mux, AuthServiceLoginProcedure, svc.Login, opts)
	unary(mux, AuthServiceDeleteAccountProcedure, svc.DeleteAccount, opts)
	return "/" + AuthServiceName + "/", mux
}

// GroupServiceClient calls a remote GroupService.
type GroupServiceClient struct {
	createGroup *connect.Client[CreateGroupRequest, GroupResponse]
	joinGroup   *connect.Client[JoinGroupRequest, GroupResponse]
	leaveGroup  *connect.Client[LeaveGroupRequest, GroupResponse]
	kickMember  *connect.Client[KickMemberRequest, GroupResponse]
	deleteGroup *connect.Client[DeleteGroupRequest, GroupResponse]
}

func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GroupServiceClient {
	opts = clientOptions(opts)
	return &GroupServiceClient{
		createGroup: connect.NewClient[CreateGroupRequest, GroupResponse](httpClient, baseURL+GroupServiceCreateGroupProcedure, opts...),
		joinGroup:   connect.NewClient[JoinGroupRequest, GroupResponse](httpClient, baseURL+GroupServiceJoinGroupProcedure, opts...),
		leaveGroup:  connect.NewClient[LeaveGroupRequest, GroupResponse](httpClient, baseURL+GroupServiceLeaveGroupProcedure, opts...),
		kickMember:  connect.NewClient[KickMemberRequest, GroupResponse](httpClient, baseURL+GroupServiceKickMemberProcedure, opts...),
		deleteGroup: connect.NewClient[DeleteGroupRequest, GroupResponse](httpClient, baseURL+GroupServiceDeleteGroupProcedure, opts...),
	}
}

func (c *GroupServiceClient) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[GroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) JoinGroup(ctx context.Context, req *connect.Request[JoinGroupRequest]) (*connect.Response[GroupResponse], error) {
	return c.joinGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) LeaveGroup(ctx context.Context, req *connect.Request[LeaveGroupRequest]) (*connect.Response[GroupResponse], error) {
	return c.leaveGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) KickMember(ctx context.Context, req *connect.Request[KickMemberRequest]) (*connect.Response[GroupResponse], error) {
	return c.kickMember.CallUnary(ctx, req)
}

func (c *GroupServiceClient) DeleteGroup(ctx context.Context, req *connect.Request[DeleteGroupRequest]) (*connect.Response[GroupResponse], error) {
	return c.deleteGroup.CallUnary(ctx, req)
}

// LedgerServiceClient calls a remote LedgerService.
type LedgerServiceClient struct {
	addExpense    *connect.Client[ExpenseRequest, ExpenseResponse]
	updateExpense *connect.Client[ExpenseRequest, ExpenseResponse]
	deleteExpense *connect.Client[DeleteExpenseRequest, ExpenseResponse]
	addPayment    *connect.Client[PaymentRequest, PaymentResponse]
	updatePayment *connect.Client[PaymentRequest, PaymentResponse]
	deletePayment *connect.Client[DeletePaymentRequest, PaymentResponse]
	getProfile    *connect.Client[GetProfileRequest, ProfileResponse]
}

func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	opts = clientOptions(opts)
	return &LedgerServiceClient{
		addExpense:    connect.NewClient[ExpenseRequest, ExpenseResponse](httpClient, baseURL+LedgerServiceAddExpenseProcedure, opts...),
		updateExpense: connect.NewClient[ExpenseRequest, ExpenseResponse](httpClient, baseURL+LedgerServiceUpdateExpenseProcedure, opts...),
		deleteExpense: connect.NewClient[DeleteExpenseRequest, ExpenseResponse](httpClient, baseURL+LedgerServiceDeleteExpenseProcedure, opts...),
		addPayment:    connect.NewClient[PaymentRequest, PaymentResponse](httpClient, baseURL+LedgerServiceAddPaymentProcedure, opts...),
		updatePayment: connect.NewClient[PaymentRequest, PaymentResponse](httpClient, baseURL+LedgerServiceUpdatePaymentProcedure, opts...),
		deletePayment: connect.NewClient[DeletePaymentRequest, PaymentResponse](httpClient, baseURL+LedgerServiceDeletePaymentProcedure, opts...),
		getProfile:    connect.NewClient[GetProfileRequest, ProfileResponse](httpClient, baseURL+LedgerServiceGetProfileProcedure, opts...),
	}
}

func (c *LedgerServiceClient) AddExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) AddPayment(ctx context.Context, req *connect.Request[PaymentRequest]) (*connect.Response[PaymentResponse], error) {
	return c.addPayment.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) UpdatePayment(ctx context.Context, req *connect.Request[PaymentRequest]) (*connect.Response[PaymentResponse], error) {
	return c.updatePayment.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) DeletePayment(ctx context.Context, req *connect.Request[DeletePaymentRequest]) (*connect.Response[PaymentResponse], error) {
	return c.deletePayment.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetProfile(ctx context.Context, req *connect.Request[GetProfileRequest]) (*connect.Response[ProfileResponse], error) {
	return c.getProfile.CallUnary(ctx, req)
}

// AuthServiceClient calls a remote AuthService.
type AuthServiceClient struct {
	register      *connect.Client[RegisterRequest, SessionResponse]
	login         *connect.Client[LoginRequest, SessionResponse]
	deleteAccount *connect.Client[DeleteAccountRequest, DeleteAccountResponse]
}

func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	opts = clientOptions(opts)
	return &AuthServiceClient{
		register:      connect.NewClient[RegisterRequest, SessionResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:         connect.NewClient[LoginRequest, SessionResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
		deleteAccount: connect.NewClient[DeleteAccountRequest, DeleteAccountResponse](httpClient, baseURL+AuthServiceDeleteAccountProcedure, opts...),
	}
}

func (c *AuthServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[SessionResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[SessionResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *AuthServiceClient) DeleteAccount(ctx context.Context, req *connect.Request[DeleteAccountRequest]) (*connect.Response[DeleteAccountResponse], error) {
	return c.deleteAccount.CallUnary(ctx, req)
}
