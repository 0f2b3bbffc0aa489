package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/tally/internal/calculator"
	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/recurrence"
	"github.com/mmynk/tally/internal/storage"
)

// LedgerService records expenses and payments. It only writes the group-side
// records; totals and mirrors are maintained by the aggregate triggers.
type LedgerService struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLedgerService creates a LedgerService over store.
func NewLedgerService(store storage.Store, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{store: store, logger: logger, now: time.Now}
}

// AddExpense records a new expense in a group.
func (s *LedgerService) AddExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	expense, err := s.buildExpense(ctx, req.Msg)
	if err != nil {
		return nil, err
	}

	expenseID := uuid.NewString()
	if err := s.store.Commit(ctx, storage.Create(models.GroupExpensePath(req.Msg.GroupID, expenseID), expense)); err != nil {
		s.logger.Error("AddExpense failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Expense added", "group_id", req.Msg.GroupID, "expense_id", expenseID, "cost", expense.Cost)
	return connect.NewResponse(&ExpenseResponse{GroupID: req.Msg.GroupID, ExpenseID: expenseID}), nil
}

// UpdateExpense replaces an existing expense. The renewal state of the
// current cycle is kept.
func (s *LedgerService) UpdateExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	expense, err := s.buildExpense(ctx, req.Msg)
	if err != nil {
		return nil, err
	}

	path := models.GroupExpensePath(req.Msg.GroupID, req.Msg.ExpenseID)
	current, err := s.lookupExpense(ctx, req.Msg.GroupID, req.Msg.ExpenseID)
	if err != nil {
		return nil, err
	}
	expense.AlreadyRecurred = current.AlreadyRecurred

	if err := s.store.Commit(ctx, storage.Set(path, expense)); err != nil {
		s.logger.Error("UpdateExpense failed", "path", path, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Expense updated", "group_id", req.Msg.GroupID, "expense_id", req.Msg.ExpenseID)
	return connect.NewResponse(&ExpenseResponse{GroupID: req.Msg.GroupID, ExpenseID: req.Msg.ExpenseID}), nil
}

// DeleteExpense removes an expense from a group.
func (s *LedgerService) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	if _, err := s.requireCallerInGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	if _, err := s.lookupExpense(ctx, req.Msg.GroupID, req.Msg.ExpenseID); err != nil {
		return nil, err
	}

	if err := s.store.Commit(ctx, storage.Delete(models.GroupExpensePath(req.Msg.GroupID, req.Msg.ExpenseID))); err != nil {
		s.logger.Error("DeleteExpense failed", "group_id", req.Msg.GroupID, "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Expense deleted", "group_id", req.Msg.GroupID, "expense_id", req.Msg.ExpenseID)
	return connect.NewResponse(&ExpenseResponse{GroupID: req.Msg.GroupID, ExpenseID: req.Msg.ExpenseID}), nil
}

// AddPayment records a payment into a group.
func (s *LedgerService) AddPayment(ctx context.Context, req *connect.Request[PaymentRequest]) (*connect.Response[PaymentResponse], error) {
	payment, err := s.buildPayment(ctx, req.Msg)
	if err != nil {
		return nil, err
	}

	paymentID := uuid.NewString()
	if err := s.store.Commit(ctx, storage.Create(models.GroupPaymentPath(req.Msg.GroupID, paymentID), payment)); err != nil {
		s.logger.Error("AddPayment failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Payment added", "group_id", req.Msg.GroupID, "payment_id", paymentID, "amount", payment.Payment)
	return connect.NewResponse(&PaymentResponse{GroupID: req.Msg.GroupID, PaymentID: paymentID}), nil
}

// UpdatePayment replaces an existing payment.
func (s *LedgerService) UpdatePayment(ctx context.Context, req *connect.Request[PaymentRequest]) (*connect.Response[PaymentResponse], error) {
	payment, err := s.buildPayment(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	path, err := s.lookupPayment(ctx, req.Msg.GroupID, req.Msg.PaymentID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Commit(ctx, storage.Set(path, payment)); err != nil {
		s.logger.Error("UpdatePayment failed", "path", path, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Payment updated", "group_id", req.Msg.GroupID, "payment_id", req.Msg.PaymentID, "amount", payment.Payment)
	return connect.NewResponse(&PaymentResponse{GroupID: req.Msg.GroupID, PaymentID: req.Msg.PaymentID}), nil
}

// DeletePayment removes a payment from a group.
func (s *LedgerService) DeletePayment(ctx context.Context, req *connect.Request[DeletePaymentRequest]) (*connect.Response[PaymentResponse], error) {
	if _, err := s.requireCallerInGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}

	path, err := s.lookupPayment(ctx, req.Msg.GroupID, req.Msg.PaymentID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Commit(ctx, storage.Delete(path)); err != nil {
		s.logger.Error("DeletePayment failed", "path", path, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Payment deleted", "group_id", req.Msg.GroupID, "payment_id", req.Msg.PaymentID)
	return connect.NewResponse(&PaymentResponse{GroupID: req.Msg.GroupID, PaymentID: req.Msg.PaymentID}), nil
}

// GetProfile returns the caller's totals, achievements and group standings.
func (s *LedgerService) GetProfile(ctx context.Context, req *connect.Request[GetProfileRequest]) (*connect.Response[ProfileResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	user, err := storage.Lookup[models.User](ctx, s.store, models.UserPath(userID))
	if err != nil {
		s.logger.Error("GetProfile failed", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	groups, err := storage.ListAs(ctx, s.store, models.UserGroupsPath(userID),
		func(ug *models.UserGroup, id string) { ug.GroupID = id })
	if err != nil {
		s.logger.Error("GetProfile failed", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp := &ProfileResponse{
		UserID: userID,
		User:   user.OrElse(*models.NewUser(userID, "")),
		Groups: make(map[string]models.UserGroup, len(groups)),
	}
	standings := make([]calculator.GroupStanding, len(groups))
	for i, ug := range groups {
		resp.Groups[ug.GroupID] = ug
		standings[i] = calculator.StandingOf(ug)
	}
	resp.Balance = calculator.UserBalance(standings)

	return connect.NewResponse(resp), nil
}

// buildExpense validates an expense request and returns the record to store.
func (s *LedgerService) buildExpense(ctx context.Context, msg *ExpenseRequest) (models.Expense, error) {
	userID, err := s.requireCallerInGroup(ctx, msg.GroupID)
	if err != nil {
		return models.Expense{}, err
	}

	name := strings.TrimSpace(msg.Name)
	if name == "" {
		return models.Expense{}, connect.NewError(connect.CodeInvalidArgument, ErrEmptyName)
	}
	if msg.Cost.IsNegative() {
		return models.Expense{}, connect.NewError(connect.CodeInvalidArgument, ErrNegativeAmount)
	}
	owner, err := s.resolveUser(ctx, msg.GroupID, userID, msg.UserID)
	if err != nil {
		return models.Expense{}, err
	}

	expense := models.Expense{
		Name:      name,
		Date:      s.dateOrNow(msg.Date),
		Cost:      msg.Cost,
		UserID:    owner,
		Recurring: msg.Recurring,
	}
	if msg.Recurring {
		if msg.Interval == nil {
			return models.Expense{}, connect.NewError(connect.CodeInvalidArgument, recurrence.ErrInvalidInterval)
		}
		unit, err := recurrence.ParseUnit(msg.Interval.Unit)
		if err != nil {
			return models.Expense{}, connect.NewError(connect.CodeInvalidArgument, err)
		}
		packed, err := recurrence.Encode(unit, msg.Interval.Magnitude)
		if err != nil {
			return models.Expense{}, connect.NewError(connect.CodeInvalidArgument, err)
		}
		if _, err := recurrence.Next(expense.Date, recurrence.Interval{Unit: unit, Magnitude: msg.Interval.Magnitude}); err != nil {
			return models.Expense{}, connect.NewError(connect.CodeInvalidArgument, err)
		}
		expense.RecurringInterval = int64(packed)
	}
	return expense, nil
}

// buildPayment validates a payment request and returns the record to store.
func (s *LedgerService) buildPayment(ctx context.Context, msg *PaymentRequest) (models.Payment, error) {
	userID, err := s.requireCallerInGroup(ctx, msg.GroupID)
	if err != nil {
		return models.Payment{}, err
	}
	if msg.Amount.IsNegative() {
		return models.Payment{}, connect.NewError(connect.CodeInvalidArgument, ErrNegativeAmount)
	}
	payer, err := s.resolveUser(ctx, msg.GroupID, userID, msg.UserID)
	if err != nil {
		return models.Payment{}, err
	}
	return models.Payment{
		Date:    s.dateOrNow(msg.Date),
		Payment: msg.Amount,
		UserID:  payer,
	}, nil
}

// requireCallerInGroup checks that the group exists and the caller belongs
// to it, returning the caller's id.
func (s *LedgerService) requireCallerInGroup(ctx context.Context, groupID string) (string, error) {
	userID, err := caller(ctx)
	if err != nil {
		return "", err
	}
	if _, err := loadGroup(ctx, s.store, groupID); err != nil {
		return "", err
	}
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return "", err
	}
	return userID, nil
}

// resolveUser returns the user a record is attributed to: the caller unless
// another member is named.
func (s *LedgerService) resolveUser(ctx context.Context, groupID, callerID, requested string) (string, error) {
	if requested == "" || requested == callerID {
		return callerID, nil
	}
	member, err := lookupMember(ctx, s.store, groupID, requested)
	if err != nil {
		return "", err
	}
	if !member.IsSome() {
		return "", connect.NewError(connect.CodeFailedPrecondition, ErrMemberNotFound)
	}
	return requested, nil
}

func (s *LedgerService) lookupExpense(ctx context.Context, groupID, expenseID string) (models.Expense, error) {
	if err := models.ValidID(expenseID); err != nil {
		return models.Expense{}, connect.NewError(connect.CodeInvalidArgument, err)
	}
	expense, err := storage.Lookup[models.Expense](ctx, s.store, models.GroupExpensePath(groupID, expenseID))
	if err != nil {
		return models.Expense{}, connect.NewError(connect.CodeInternal, err)
	}
	e, ok := expense.Get()
	if !ok {
		return models.Expense{}, connect.NewError(connect.CodeNotFound, storage.ErrNotFound)
	}
	return e, nil
}

// lookupPayment returns the path of an existing payment.
func (s *LedgerService) lookupPayment(ctx context.Context, groupID, paymentID string) (string, error) {
	if err := models.ValidID(paymentID); err != nil {
		return "", connect.NewError(connect.CodeInvalidArgument, err)
	}
	path := models.GroupPaymentPath(groupID, paymentID)
	if _, err := s.store.Get(ctx, path); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", connect.NewError(connect.CodeNotFound, err)
		}
		return "", connect.NewError(connect.CodeInternal, err)
	}
	return path, nil
}

func (s *LedgerService) dateOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}
