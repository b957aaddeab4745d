package service

import (
	"context"
	"ptero-billing/internal/model"
)

// AdminApprovalService gates the administrative lifecycle operations on the caller's role.
type AdminApprovalService interface {
	Approve(ctx context.Context, actor model.Actor, orderID, paymentID string) (*ApprovalResult, error)
	Reject(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error)
	Retry(ctx context.Context, actor model.Actor, orderID string) (*ApprovalResult, error)
}

type adminApprovalServiceImpl struct {
	orderService OrderService
}

func NewAdminApprovalService(orderService OrderService) AdminApprovalService {
	return &adminApprovalServiceImpl{
		orderService: orderService,
	}
}

func (s *adminApprovalServiceImpl) Approve(ctx context.Context, actor model.Actor, orderID, paymentID string) (*ApprovalResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.orderService.ApprovePayment(ctx, orderID, paymentID, model.AdminApprover(actor))
}

func (s *adminApprovalServiceImpl) Reject(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.orderService.RejectPayment(ctx, orderID, actor)
}

func (s *adminApprovalServiceImpl) Retry(ctx context.Context, actor model.Actor, orderID string) (*ApprovalResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.orderService.RetryProvisioning(ctx, orderID, actor)
}
