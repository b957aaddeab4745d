package handler

import (
	"context"
	"encoding/json"
	"ptero-billing/internal/apperr"
	"ptero-billing/internal/dto"
	"ptero-billing/internal/model"
	"ptero-billing/internal/notify"
	"ptero-billing/internal/service"
)

func toOrderResponse(o *model.Order, admin bool) *dto.OrderResponse {
	resp := &dto.OrderResponse{
		ID:                   o.ID,
		UserID:               o.UserID,
		PlanID:               o.PlanID,
		ServerName:           o.ServerName,
		Status:               string(o.Status),
		PaymentStatus:        string(o.PaymentStatus),
		PterodactylServerID:  o.PterodactylServerID,
		ServerSimulated:      o.ServerSimulated,
		ApprovedPaymentID:    o.ApprovedPaymentID,
		ProvisioningAttempts: o.ProvisioningAttempts,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
	if o.Plan != nil {
		resp.PlanName = o.Plan.Name
	}
	if admin {
		resp.FailureReason = o.FailureReason
	}
	return resp
}

func toPaymentResponse(p *model.Payment) *dto.PaymentResponse {
	resp := &dto.PaymentResponse{
		ID:          p.ID,
		OrderID:     p.OrderID,
		Gateway:     string(p.Gateway),
		Reference:   p.Reference,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	}
	if len(p.GatewayResponse) > 0 {
		resp.GatewayResponse = json.RawMessage(p.GatewayResponse)
	}
	return resp
}

func toApprovalResponse(res *service.ApprovalResult) *dto.ApprovalResponse {
	return &dto.ApprovalResponse{
		OrderID:         res.OrderID,
		ServerReference: res.ServerID,
		Simulated:       res.Simulated,
		AlreadyActive:   res.AlreadyActive,
	}
}

// notifyOutcome reports a finished provisioning attempt to the administrators.
func notifyOutcome(ctx context.Context, notifier notify.Notifier, res *service.ApprovalResult, err error) {
	if err != nil {
		if ae, ok := apperr.As(err); ok && ae.Kind == apperr.Provisioning {
			notifier.ProvisioningFailed(ctx, ae.OrderID, ae.Detail)
		}
		return
	}
	if !res.AlreadyActive {
		notifier.OrderProvisioned(ctx, res.OrderID, res.ServerID, res.Simulated)
	}
}
