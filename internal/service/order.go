package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"ptero-billing/internal/apperr"
	"ptero-billing/internal/lock"
	"ptero-billing/internal/model"
	"ptero-billing/internal/repository"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxServerNameLen = 191
	maxReasonLen     = 1024

	reasonInterrupted = "provisioning interrupted"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type RecordPaymentInput struct {
	Actor           model.Actor
	OrderID         string
	Gateway         string
	Reference       string
	Amount          decimal.Decimal
	Currency        string
	GatewayResponse json.RawMessage
}

// ApprovalResult is returned by every operation that can end with a provisioned server.
type ApprovalResult struct {
	OrderID       string
	ServerID      int64
	Simulated     bool
	AlreadyActive bool
}

// OrderService owns every status and payment_status transition of an order.
type OrderService interface {
	SubmitOrder(ctx context.Context, userID, planID, serverName string) (*model.Order, error)
	RecordPayment(ctx context.Context, in *RecordPaymentInput) (*model.Payment, error)
	ApprovePayment(ctx context.Context, orderID, paymentID string, approver model.Approver) (*ApprovalResult, error)
	RejectPayment(ctx context.Context, orderID string, actor model.Actor) (*model.Order, error)
	RetryProvisioning(ctx context.Context, orderID string, actor model.Actor) (*ApprovalResult, error)

	GetOrder(ctx context.Context, orderID string, actor model.Actor) (*model.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]*model.Order, error)
	ListPayments(ctx context.Context, orderID string, actor model.Actor) ([]*model.Payment, error)
	ListEvents(ctx context.Context, orderID string, actor model.Actor) ([]*model.OrderEvent, error)
}

type OrderServiceOptions struct {
	ProvisionTimeout time.Duration
	StaleClaimGrace  time.Duration
}

type orderServiceImpl struct {
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	planRepo    repository.PlanRepository
	eventRepo   repository.OrderEventRepository
	provisioner Provisioner
	locker      lock.Locker
	logger      *slog.Logger
	opts        OrderServiceOptions
	now         func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	planRepo repository.PlanRepository,
	eventRepo repository.OrderEventRepository,
	provisioner Provisioner,
	locker lock.Locker,
	logger *slog.Logger,
	opts OrderServiceOptions,
) OrderService {
	if locker == nil {
		locker = lock.NewNoopLocker()
	}
	if opts.ProvisionTimeout <= 0 {
		opts.ProvisionTimeout = 30 * time.Second
	}
	return &orderServiceImpl{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		planRepo:    planRepo,
		eventRepo:   eventRepo,
		provisioner: provisioner,
		locker:      locker,
		logger:      logger,
		opts:        opts,
		now:         time.Now,
	}
}

func (s *orderServiceImpl) SubmitOrder(ctx context.Context, userID, planID, serverName string) (*model.Order, error) {
	if userID == "" {
		return nil, apperr.UnauthorizedErr("authentication required")
	}
	serverName = strings.TrimSpace(serverName)
	if serverName == "" {
		return nil, apperr.ValidationErr("server name is required")
	}
	if len(serverName) > maxServerNameLen {
		return nil, apperr.ValidationErr("server name is too long")
	}

	plan, err := s.planRepo.FindByID(ctx, planID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ValidationErr("unknown plan")
	}
	if err != nil {
		return nil, storeErr(err, "plan not found", "find plan")
	}
	if !plan.IsActive {
		return nil, apperr.ValidationErr("plan is not available")
	}

	order := &model.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		PlanID:        plan.ID,
		ServerName:    serverName,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, storeErr(err, "order not found", "store order")
	}
	order.Plan = plan

	s.audit(ctx, order, userID, model.ActionOrderSubmitted, "", "", "")
	s.logger.Info("order submitted", "order_id", order.ID, "user_id", userID, "plan_id", plan.ID)

	return order, nil
}

func (s *orderServiceImpl) RecordPayment(ctx context.Context, in *RecordPaymentInput) (*model.Payment, error) {
	gateway, ok := model.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(in.Gateway)))
	if !ok {
		return nil, apperr.ValidationErr("unsupported payment method")
	}
	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		return nil, apperr.ValidationErr("payment reference is required")
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.ValidationErr("payment amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if !currencyPattern.MatchString(currency) {
		return nil, apperr.ValidationErr("currency must be a 3-letter ISO code")
	}
	if len(in.GatewayResponse) > 0 && !json.Valid(in.GatewayResponse) {
		return nil, apperr.ValidationErr("gateway response must be valid JSON")
	}

	order, err := s.GetOrder(ctx, in.OrderID, in.Actor)
	if err != nil {
		return nil, err
	}

	existing, err := s.paymentRepo.FindByReference(ctx, gateway, reference)
	switch {
	case err == nil:
		// a front end resubmitting the same reference gets the original record back
		if existing.OrderID == order.ID {
			return existing, nil
		}
		return nil, apperr.ConflictErr("payment reference already recorded")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, storeErr(err, "payment not found", "find payment by reference")
	}

	if !order.AwaitingApproval() {
		return nil, apperr.ConflictErr(fmt.Sprintf("order is %s with payment %s", order.Status, order.PaymentStatus))
	}

	payment := &model.Payment{
		ID:              uuid.NewString(),
		OrderID:         order.ID,
		Gateway:         gateway,
		Reference:       reference,
		Amount:          in.Amount.Round(2),
		Currency:        currency,
		Status:          model.PaymentStatusPending,
		GatewayResponse: datatypes.JSON(in.GatewayResponse),
	}
	if err := s.paymentRepo.Append(ctx, payment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.ConflictErr("payment reference already recorded")
		}
		return nil, storeErr(err, "payment not found", "append payment")
	}

	// the row exists now; it must not be left pending on an order that moved on meanwhile
	bg := context.WithoutCancel(ctx)
	current, err := s.orderRepo.FindByID(bg, order.ID)
	if err != nil {
		return nil, storeErr(err, "order not found", "reload order")
	}
	if !current.AwaitingApproval() {
		return s.settleLatePayment(bg, current, payment, in.Actor.String())
	}

	s.audit(ctx, order, in.Actor.String(), model.ActionPaymentRecorded, order.Status, order.PaymentStatus, "")
	s.logger.Info("payment recorded",
		"order_id", order.ID,
		"payment_id", payment.ID,
		"gateway", gateway,
		"amount", payment.Amount.StringFixed(2),
		"currency", currency,
	)

	return payment, nil
}

func (s *orderServiceImpl) ApprovePayment(ctx context.Context, orderID, paymentID string, approver model.Approver) (*ApprovalResult, error) {
	if !approver.Authorized() {
		return nil, requireAdmin(approver.Actor)
	}

	release, err := s.acquire(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.loadOrder(ctx, orderID, approver.String())
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderStatusActive {
		return alreadyActive(order), nil
	}
	if !order.AwaitingApproval() {
		return nil, transitionConflict(order)
	}

	payment, err := s.pickPayment(ctx, order, paymentID, approver)
	if err != nil {
		return nil, err
	}

	plan, err := s.planRepo.FindByID(ctx, order.PlanID)
	if err != nil {
		return nil, storeErr(err, "plan not found", "find plan")
	}

	var approvedID *string
	if payment != nil {
		approvedID = &payment.ID
	} else {
		s.logger.Warn("approving order without a recorded payment", "order_id", order.ID, "approver", approver.String())
	}

	token := uuid.NewString()
	claimed, err := s.orderRepo.ClaimApproval(ctx, order.ID, approvedID, token, s.now())
	if err != nil {
		return nil, storeErr(err, "order not found", "claim approval")
	}
	if !claimed {
		return s.afterLostClaim(ctx, order.ID)
	}

	// the claim is ours; nothing below may be abandoned because the caller went away
	bg := context.WithoutCancel(ctx)

	s.audit(bg, order, approver.String(), model.ActionPaymentApproved, model.OrderStatusPending, model.PaymentStatusApproved, "")
	order.PaymentStatus = model.PaymentStatusApproved
	if payment != nil {
		s.settlePayment(bg, order, payment.ID, model.PaymentStatusApproved, approver.String())
	}

	return s.provision(bg, order, plan, token, approver.String())
}

func (s *orderServiceImpl) RejectPayment(ctx context.Context, orderID string, actor model.Actor) (*model.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, orderID, actor.String())
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderStatusCancelled {
		return order, nil
	}
	if !order.AwaitingApproval() {
		return nil, transitionConflict(order)
	}

	rejected, err := s.orderRepo.Reject(ctx, order.ID)
	if err != nil {
		return nil, storeErr(err, "order not found", "reject order")
	}
	if !rejected {
		current, err := s.loadOrder(ctx, order.ID, actor.String())
		if err != nil {
			return nil, err
		}
		if current.Status == model.OrderStatusCancelled {
			return current, nil
		}
		return nil, transitionConflict(current)
	}

	bg := context.WithoutCancel(ctx)
	s.audit(bg, order, actor.String(), model.ActionPaymentRejected, model.OrderStatusCancelled, model.PaymentStatusRejected, "")

	payments, err := s.paymentRepo.ListByOrder(bg, order.ID)
	if err != nil {
		s.logger.Error("list payments of rejected order", "order_id", order.ID, "error", err)
	}
	for _, p := range payments {
		if p.Status == model.PaymentStatusPending {
			s.settlePayment(bg, order, p.ID, model.PaymentStatusRejected, actor.String())
		}
	}

	s.logger.Info("payment rejected", "order_id", order.ID, "actor", actor.String())

	order.Status = model.OrderStatusCancelled
	order.PaymentStatus = model.PaymentStatusRejected
	return order, nil
}

// RetryProvisioning runs one more provisioning attempt for an order whose payment was
// approved but whose server could not be created.
func (s *orderServiceImpl) RetryProvisioning(ctx context.Context, orderID string, actor model.Actor) (*ApprovalResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.loadOrder(ctx, orderID, actor.String())
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderStatusActive {
		return alreadyActive(order), nil
	}
	if order.Status != model.OrderStatusFailed || order.Provisioning() {
		return nil, transitionConflict(order)
	}

	plan, err := s.planRepo.FindByID(ctx, order.PlanID)
	if err != nil {
		return nil, storeErr(err, "plan not found", "find plan")
	}

	token := uuid.NewString()
	claimed, err := s.orderRepo.ClaimRetry(ctx, order.ID, token, s.now())
	if err != nil {
		return nil, storeErr(err, "order not found", "claim retry")
	}
	if !claimed {
		return s.afterLostClaim(ctx, order.ID)
	}

	return s.provision(context.WithoutCancel(ctx), order, plan, token, actor.String())
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string, actor model.Actor) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "order not found", "find order")
	}
	if order.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, requireAdmin(actor)
	}
	return order, nil
}

func (s *orderServiceImpl) ListUserOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "orders not found", "list orders")
	}
	return orders, nil
}

func (s *orderServiceImpl) ListPayments(ctx context.Context, orderID string, actor model.Actor) ([]*model.Payment, error) {
	if _, err := s.GetOrder(ctx, orderID, actor); err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "payments not found", "list payments")
	}
	return payments, nil
}

func (s *orderServiceImpl) ListEvents(ctx context.Context, orderID string, actor model.Actor) ([]*model.OrderEvent, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.GetOrder(ctx, orderID, actor); err != nil {
		return nil, err
	}
	events, err := s.eventRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "events not found", "list events")
	}
	return events, nil
}

// provision performs the remote call for a claimed order and finalizes it. ctx must not be
// cancelable: the order is written to active or failed whatever happens to the caller.
func (s *orderServiceImpl) provision(ctx context.Context, order *model.Order, plan *model.Plan, token, actor string) (*ApprovalResult, error) {
	s.audit(ctx, order, actor, model.ActionProvisioningStarted, order.Status, model.PaymentStatusApproved, "")

	pctx, cancel := context.WithTimeout(ctx, s.opts.ProvisionTimeout)
	result, err := s.provisioner.Provision(pctx, order, plan)
	cancel()

	if err != nil {
		reason := truncate(err.Error(), maxReasonLen)
		s.logger.Error("provisioning failed", "order_id", order.ID, "error", err)

		failed, ferr := s.orderRepo.MarkFailed(ctx, order.ID, token, reason)
		if ferr != nil {
			return nil, apperr.Wrap(fmt.Errorf("mark order %s failed: %w", order.ID, ferr))
		}
		if !failed {
			s.logger.Error("provisioning claim lost before failure was recorded", "order_id", order.ID)
		}
		s.audit(ctx, order, actor, model.ActionProvisioningFailed, model.OrderStatusFailed, model.PaymentStatusApproved, reason)
		return nil, apperr.ProvisioningErr(order.ID, err)
	}

	activated, err := s.orderRepo.MarkActive(ctx, order.ID, token, result.ServerID, result.Simulated)
	if err != nil {
		s.logger.Error("server created but order not activated", "order_id", order.ID, "server_id", result.ServerID, "error", err)
		return nil, apperr.Wrap(fmt.Errorf("activate order %s with server %d: %w", order.ID, result.ServerID, err))
	}
	if !activated {
		s.logger.Error("provisioning claim lost, remote server orphaned", "order_id", order.ID, "server_id", result.ServerID)
		return nil, apperr.Wrap(fmt.Errorf("provisioning claim for order %s lost after creating server %d", order.ID, result.ServerID))
	}

	s.audit(ctx, order, actor, model.ActionProvisioned, model.OrderStatusActive, model.PaymentStatusApproved, "")
	s.logger.Info("order provisioned",
		"order_id", order.ID,
		"server_id", result.ServerID,
		"simulated", result.Simulated,
	)

	return &ApprovalResult{
		OrderID:   order.ID,
		ServerID:  result.ServerID,
		Simulated: result.Simulated,
	}, nil
}

// loadOrder reads the order and releases a provisioning claim left behind by an attempt
// that never finalized.
func (s *orderServiceImpl) loadOrder(ctx context.Context, orderID, actor string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "order not found", "find order")
	}
	if !order.Provisioning() || !order.ClaimStale(s.now(), s.opts.ProvisionTimeout+s.opts.StaleClaimGrace) {
		return order, nil
	}

	released, err := s.orderRepo.MarkFailed(ctx, order.ID, *order.ProvisioningToken, reasonInterrupted)
	if err != nil {
		return nil, storeErr(err, "order not found", "release stale claim")
	}
	if released {
		s.audit(ctx, order, actor, model.ActionProvisioningRecovery, model.OrderStatusFailed, order.PaymentStatus, reasonInterrupted)
		s.logger.Warn("released stale provisioning claim", "order_id", order.ID, "started_at", order.ProvisioningStartedAt)
	}

	order, err = s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "order not found", "find order")
	}
	return order, nil
}

func (s *orderServiceImpl) pickPayment(ctx context.Context, order *model.Order, paymentID string, approver model.Approver) (*model.Payment, error) {
	if paymentID != "" {
		payment, err := s.paymentRepo.FindByID(ctx, paymentID)
		if err != nil {
			return nil, storeErr(err, "payment not found", "find payment")
		}
		if payment.OrderID != order.ID {
			return nil, apperr.NotFoundErr("payment not found")
		}
		if payment.Status != model.PaymentStatusPending {
			return nil, apperr.ConflictErr(fmt.Sprintf("payment is already %s", payment.Status))
		}
		if approver.Gateway != "" && payment.Gateway != approver.Gateway {
			return nil, apperr.ConflictErr("payment was not confirmed by its gateway")
		}
		return payment, nil
	}

	if approver.Gateway != "" {
		return nil, apperr.ValidationErr("payment id is required")
	}

	payments, err := s.paymentRepo.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, storeErr(err, "payments not found", "list payments")
	}
	for _, p := range payments {
		if p.Status == model.PaymentStatusPending {
			return p, nil
		}
	}
	return nil, nil
}

// settlePayment moves a payment row to its terminal status. The order row is authoritative,
// so a failure here is recorded and the transition carries on.
func (s *orderServiceImpl) settlePayment(ctx context.Context, order *model.Order, paymentID string, status model.PaymentStatus, actor string) {
	updated, err := s.paymentRepo.SetStatus(ctx, paymentID, status)
	if err == nil && updated {
		return
	}
	reason := fmt.Sprintf("payment %s not moved to %s", paymentID, status)
	if err != nil {
		reason = fmt.Sprintf("%s: %v", reason, err)
	}
	s.logger.Error("payment status update failed", "order_id", order.ID, "payment_id", paymentID, "error", err)
	s.audit(ctx, order, actor, model.ActionPaymentUpdateFailed, "", "", truncate(reason, maxReasonLen))
}

// settleLatePayment handles a payment inserted while a concurrent approve or reject moved the
// order out of awaiting-approval. Unless that transition already settled it, the payment is
// rejected and the caller gets a conflict.
func (s *orderServiceImpl) settleLatePayment(ctx context.Context, order *model.Order, payment *model.Payment, actor string) (*model.Payment, error) {
	rejected, err := s.paymentRepo.SetStatus(ctx, payment.ID, model.PaymentStatusRejected)
	if err != nil {
		s.logger.Error("late payment left pending", "order_id", order.ID, "payment_id", payment.ID, "error", err)
		return nil, storeErr(err, "payment not found", "reject late payment")
	}
	if !rejected {
		stored, err := s.paymentRepo.FindByID(ctx, payment.ID)
		if err != nil {
			return nil, storeErr(err, "payment not found", "find payment")
		}
		if stored.Status == model.PaymentStatusApproved {
			return stored, nil
		}
	} else {
		s.audit(ctx, order, actor, model.ActionPaymentRejected, "", "",
			fmt.Sprintf("payment %s recorded after order became %s", payment.ID, order.Status))
	}

	s.logger.Warn("payment recorded after order left approval",
		"order_id", order.ID,
		"payment_id", payment.ID,
		"status", order.Status,
		"payment_status", order.PaymentStatus,
	)
	return nil, transitionConflict(order)
}

// afterLostClaim builds the answer for a caller whose conditional update matched nothing.
func (s *orderServiceImpl) afterLostClaim(ctx context.Context, orderID string) (*ApprovalResult, error) {
	current, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "order not found", "find order")
	}
	if current.Status == model.OrderStatusActive {
		return alreadyActive(current), nil
	}
	return nil, transitionConflict(current)
}

func (s *orderServiceImpl) acquire(ctx context.Context, orderID string) (func(), error) {
	release, err := s.locker.Acquire(ctx, lock.OrderKey(orderID))
	if errors.Is(err, lock.ErrLocked) {
		return nil, apperr.ConflictErr("order is being processed")
	}
	if err != nil {
		return nil, apperr.Wrap(fmt.Errorf("acquire order lock: %w", err))
	}
	return release, nil
}

// audit records a transition. Empty to-statuses mean the order state did not change.
func (s *orderServiceImpl) audit(ctx context.Context, order *model.Order, actor, action string, toStatus model.OrderStatus, toPayment model.PaymentStatus, reason string) {
	if toStatus == "" {
		toStatus = order.Status
	}
	if toPayment == "" {
		toPayment = order.PaymentStatus
	}
	event := &model.OrderEvent{
		ID:                uuid.NewString(),
		OrderID:           order.ID,
		Actor:             truncate(actor, 128),
		Action:            action,
		FromStatus:        order.Status,
		ToStatus:          toStatus,
		FromPaymentStatus: order.PaymentStatus,
		ToPaymentStatus:   toPayment,
	}
	if reason != "" {
		event.Reason = &reason
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.Error("write order event", "order_id", order.ID, "action", action, "error", err)
	}
}

func alreadyActive(order *model.Order) *ApprovalResult {
	res := &ApprovalResult{
		OrderID:       order.ID,
		Simulated:     order.ServerSimulated,
		AlreadyActive: true,
	}
	if order.PterodactylServerID != nil {
		res.ServerID = *order.PterodactylServerID
	}
	return res
}

func transitionConflict(order *model.Order) error {
	switch {
	case order.Provisioning():
		return apperr.ConflictErr("provisioning already in progress")
	case order.Status == model.OrderStatusCancelled:
		return apperr.ConflictErr("order was cancelled")
	case order.Status == model.OrderStatusFailed:
		return apperr.ConflictErr("order provisioning failed; retry provisioning instead")
	}
	return apperr.ConflictErr(fmt.Sprintf("order is %s with payment %s", order.Status, order.PaymentStatus))
}
