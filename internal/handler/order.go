package handler

import (
	"net/http"
	"ptero-billing/internal/dto"
	"ptero-billing/internal/middleware"
	"ptero-billing/internal/notify"
	"ptero-billing/internal/service"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService        service.OrderService
	confirmationService service.GatewayConfirmationService
	notifier            notify.Notifier
}

func NewOrderHandler(
	orderService service.OrderService,
	confirmationService service.GatewayConfirmationService,
	notifier notify.Notifier,
) *OrderHandler {
	return &OrderHandler{
		orderService:        orderService,
		confirmationService: confirmationService,
		notifier:            notifier,
	}
}

func (h *OrderHandler) SubmitOrder(c echo.Context) error {
	ctx := c.Request().Context()
	actor := middleware.ActorFrom(c)

	var req dto.SubmitOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, err := h.orderService.SubmitOrder(ctx, actor.UserID, req.PlanID, req.ServerName)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, dto.SubmitOrderResponse{
		OrderID:       order.ID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
	})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	actor := middleware.ActorFrom(c)

	orders, err := h.orderService.ListUserOrders(ctx, actor.UserID)
	if err != nil {
		return err
	}

	resp := make([]*dto.OrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, actor.IsAdmin())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	actor := middleware.ActorFrom(c)

	order, err := h.orderService.GetOrder(ctx, c.Param("id"), actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toOrderResponse(order, actor.IsAdmin()))
}

func (h *OrderHandler) RecordPayment(c echo.Context) error {
	ctx := c.Request().Context()
	actor := middleware.ActorFrom(c)

	var req dto.RecordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	payment, err := h.orderService.RecordPayment(ctx, &service.RecordPaymentInput{
		Actor:           actor,
		OrderID:         c.Param("id"),
		Gateway:         req.Gateway,
		Reference:       req.Reference,
		Amount:          req.Amount,
		Currency:        req.Currency,
		GatewayResponse: req.GatewayResponse,
	})
	if err != nil {
		return err
	}

	if order, err := h.orderService.GetOrder(ctx, payment.OrderID, actor); err == nil {
		h.notifier.PaymentRecorded(ctx, order, payment)
	}

	return c.JSON(http.StatusCreated, dto.RecordPaymentResponse{
		PaymentID: payment.ID,
		Status:    string(payment.Status),
	})
}

func (h *OrderHandler) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()

	payments, err := h.orderService.ListPayments(ctx, c.Param("id"), middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	resp := make([]*dto.PaymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	return c.JSON(http.StatusOK, resp)
}

// ConfirmPayment approves a gateway payment after the gateway itself confirmed it.
func (h *OrderHandler) ConfirmPayment(c echo.Context) error {
	ctx := c.Request().Context()

	res, err := h.confirmationService.Confirm(ctx, middleware.ActorFrom(c), c.Param("id"), c.Param("paymentID"))
	notifyOutcome(ctx, h.notifier, res, err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toApprovalResponse(res))
}
