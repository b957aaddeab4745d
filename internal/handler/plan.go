package handler

import (
	"net/http"
	"ptero-billing/internal/service"

	"github.com/labstack/echo/v4"
)

type PlanHandler struct {
	planService service.PlanService
}

func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{
		planService: planService,
	}
}

func (h *PlanHandler) ListPlans(c echo.Context) error {
	ctx := c.Request().Context()

	plans, err := h.planService.ListPlans(ctx, false)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, plans)
}
