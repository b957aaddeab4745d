package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"ptero-billing/internal/apperr"
	"ptero-billing/internal/model"
	"ptero-billing/internal/repository"
	"strings"
)

// GatewayConfirmationService lets an order owner approve their own payment once the payment
// gateway has independently confirmed it.
type GatewayConfirmationService interface {
	Confirm(ctx context.Context, actor model.Actor, orderID, paymentID string) (*ApprovalResult, error)
}

type gatewayConfirmationServiceImpl struct {
	orderService OrderService
	paymentRepo  repository.PaymentRepository
	planRepo     repository.PlanRepository
	verifiers    map[model.PaymentMethod]PaymentVerifier
	logger       *slog.Logger
}

func NewGatewayConfirmationService(
	orderService OrderService,
	paymentRepo repository.PaymentRepository,
	planRepo repository.PlanRepository,
	logger *slog.Logger,
	verifiers ...PaymentVerifier,
) GatewayConfirmationService {
	byGateway := make(map[model.PaymentMethod]PaymentVerifier, len(verifiers))
	for _, v := range verifiers {
		byGateway[v.Gateway()] = v
	}
	return &gatewayConfirmationServiceImpl{
		orderService: orderService,
		paymentRepo:  paymentRepo,
		planRepo:     planRepo,
		verifiers:    byGateway,
		logger:       logger,
	}
}

func (s *gatewayConfirmationServiceImpl) Confirm(ctx context.Context, actor model.Actor, orderID, paymentID string) (*ApprovalResult, error) {
	order, err := s.orderService.GetOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, storeErr(err, "payment not found", "find payment")
	}
	if payment.OrderID != order.ID {
		return nil, apperr.NotFoundErr("payment not found")
	}

	if order.Status == model.OrderStatusActive {
		return alreadyActive(order), nil
	}

	verifier, ok := s.verifiers[payment.Gateway]
	if payment.Gateway.Manual() || !ok {
		return nil, apperr.ConflictErr("payment requires manual approval")
	}
	if payment.Status != model.PaymentStatusPending {
		return nil, apperr.ConflictErr(fmt.Sprintf("payment is already %s", payment.Status))
	}

	plan, err := s.planRepo.FindByID(ctx, order.PlanID)
	if err != nil {
		return nil, storeErr(err, "plan not found", "find plan")
	}
	if err := coversPlan(payment, plan); err != nil {
		s.logger.Warn("payment does not cover plan",
			"order_id", order.ID,
			"payment_id", payment.ID,
			"amount", payment.Amount.StringFixed(2),
			"currency", payment.Currency,
			"plan_price", plan.Price.StringFixed(2),
			"plan_currency", plan.Currency,
		)
		return nil, err
	}

	if err := verifier.Verify(ctx, payment); err != nil {
		s.logger.Warn("gateway verification failed",
			"order_id", order.ID,
			"payment_id", payment.ID,
			"gateway", payment.Gateway,
			"error", err,
		)
		if errors.Is(err, ErrNotConfirmed) {
			return nil, apperr.ConflictErr("payment not confirmed by gateway")
		}
		return nil, apperr.Wrap(fmt.Errorf("verify %s payment %s: %w", payment.Gateway, payment.ID, err))
	}

	return s.orderService.ApprovePayment(ctx, order.ID, payment.ID, model.GatewayApprover(actor, payment.Gateway))
}

// coversPlan checks that a payment pays for the plan in the plan's own currency. Only an
// administrator may accept anything else.
func coversPlan(payment *model.Payment, plan *model.Plan) error {
	if !strings.EqualFold(payment.Currency, plan.Currency) {
		return apperr.ConflictErr(fmt.Sprintf("payment currency must be %s", plan.Currency))
	}
	if payment.Amount.LessThan(plan.Price) {
		return apperr.ConflictErr(fmt.Sprintf("payment amount is below the plan price of %s %s", plan.Price.StringFixed(2), plan.Currency))
	}
	return nil
}
