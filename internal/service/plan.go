package service

import (
	"context"
	"fmt"
	"log/slog"
	"ptero-billing/internal/model"
	"ptero-billing/internal/repository"
)

type PlanService interface {
	ListPlans(ctx context.Context, includeInactive bool) ([]*model.Plan, error)
	SyncCatalog(ctx context.Context, plans []*model.Plan) error
}

type planServiceImpl struct {
	planRepo repository.PlanRepository
	logger   *slog.Logger
}

func NewPlanService(planRepo repository.PlanRepository, logger *slog.Logger) PlanService {
	return &planServiceImpl{
		planRepo: planRepo,
		logger:   logger,
	}
}

func (s *planServiceImpl) ListPlans(ctx context.Context, includeInactive bool) ([]*model.Plan, error) {
	plans, err := s.planRepo.List(ctx, !includeInactive)
	if err != nil {
		return nil, storeErr(err, "plans not found", "list plans")
	}
	return plans, nil
}

func (s *planServiceImpl) SyncCatalog(ctx context.Context, plans []*model.Plan) error {
	if err := s.planRepo.Sync(ctx, plans); err != nil {
		return fmt.Errorf("sync plan catalog: %w", err)
	}
	s.logger.Info("plan catalog synced", "plans", len(plans))
	return nil
}
