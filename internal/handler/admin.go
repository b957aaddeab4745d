package handler

import (
	"net/http"
	"ptero-billing/internal/dto"
	"ptero-billing/internal/middleware"
	"ptero-billing/internal/notify"
	"ptero-billing/internal/service"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	adminService service.AdminApprovalService
	orderService service.OrderService
	notifier     notify.Notifier
}

func NewAdminHandler(adminService service.AdminApprovalService, orderService service.OrderService, notifier notify.Notifier) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		orderService: orderService,
		notifier:     notifier,
	}
}

func (h *AdminHandler) ApprovePayment(c echo.Context) error {
	ctx := c.Request().Context()

	// the body is optional; without payment_id the newest pending payment is approved
	var req dto.ApproveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.adminService.Approve(ctx, middleware.ActorFrom(c), c.Param("id"), req.PaymentID)
	notifyOutcome(ctx, h.notifier, res, err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toApprovalResponse(res))
}

func (h *AdminHandler) RejectPayment(c echo.Context) error {
	ctx := c.Request().Context()
	actor := middleware.ActorFrom(c)

	order, err := h.adminService.Reject(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toOrderResponse(order, actor.IsAdmin()))
}

func (h *AdminHandler) RetryProvisioning(c echo.Context) error {
	ctx := c.Request().Context()

	res, err := h.adminService.Retry(ctx, middleware.ActorFrom(c), c.Param("id"))
	notifyOutcome(ctx, h.notifier, res, err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toApprovalResponse(res))
}

func (h *AdminHandler) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()

	events, err := h.orderService.ListEvents(ctx, c.Param("id"), middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	resp := make([]*dto.OrderEventResponse, len(events))
	for i, e := range events {
		resp[i] = &dto.OrderEventResponse{
			Action:            e.Action,
			Actor:             e.Actor,
			FromStatus:        string(e.FromStatus),
			ToStatus:          string(e.ToStatus),
			FromPaymentStatus: string(e.FromPaymentStatus),
			ToPaymentStatus:   string(e.ToPaymentStatus),
			Reason:            e.Reason,
			CreatedAt:         e.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, resp)
}
