package server

import (
	"context"
	"log/slog"
	"net/http"
	"ptero-billing/internal/config"
	"ptero-billing/internal/handler"
	appmw "ptero-billing/internal/middleware"
	"ptero-billing/internal/notify"
	"ptero-billing/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Services struct {
	Orders       service.OrderService
	Admin        service.AdminApprovalService
	Confirmation service.GatewayConfirmationService
	Plans        service.PlanService
	Notifier     notify.Notifier
}

type Server struct {
	echo         *echo.Echo
	auth         config.Auth
	orderHandler *handler.OrderHandler
	adminHandler *handler.AdminHandler
	planHandler  *handler.PlanHandler
}

func NewServer(auth config.Auth, logger *slog.Logger, svc Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = appmw.ErrorHandler(logger)
	e.Validator = appmw.NewValidator()

	e.Use(middleware.RequestID())
	e.Use(appmw.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("1M"))

	notifier := svc.Notifier
	if notifier == nil {
		notifier = notify.NewNoopNotifier()
	}

	s := &Server{
		echo:         e,
		auth:         auth,
		orderHandler: handler.NewOrderHandler(svc.Orders, svc.Confirmation, notifier),
		adminHandler: handler.NewAdminHandler(svc.Admin, svc.Orders, notifier),
		planHandler:  handler.NewPlanHandler(svc.Plans),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	api.GET("/plans", s.planHandler.ListPlans)

	// -------- customer --------
	orders := api.Group("/orders", appmw.Auth(s.auth))
	orders.POST("", s.orderHandler.SubmitOrder)
	orders.GET("", s.orderHandler.ListOrders)
	orders.GET("/:id", s.orderHandler.GetOrder)
	orders.POST("/:id/payments", s.orderHandler.RecordPayment)
	orders.GET("/:id/payments", s.orderHandler.ListPayments)
	orders.POST("/:id/payments/:paymentID/confirm", s.orderHandler.ConfirmPayment)

	// -------- admin --------
	admin := api.Group("/admin", appmw.Auth(s.auth), appmw.RequireAdmin())
	admin.POST("/orders/:id/approve", s.adminHandler.ApprovePayment)
	admin.POST("/orders/:id/reject", s.adminHandler.RejectPayment)
	admin.POST("/orders/:id/retry", s.adminHandler.RetryProvisioning)
	admin.GET("/orders/:id/events", s.adminHandler.ListEvents)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
