package repository

import (
	"context"
	"ptero-billing/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PlanRepository interface {
	Sync(ctx context.Context, plans []*model.Plan) error
	FindByID(ctx context.Context, planID string) (*model.Plan, error)
	List(ctx context.Context, activeOnly bool) ([]*model.Plan, error)
}

type planRepoImpl struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepoImpl{
		db: db,
	}
}

// Sync upserts the catalog. Plans missing from the catalog are left untouched so orders
// keep a valid reference; deactivate them in the catalog instead.
func (r *planRepoImpl) Sync(ctx context.Context, plans []*model.Plan) error {
	if len(plans) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "memory", "disk", "cpu", "price", "currency", "is_active", "updated_at"}),
	}).Create(&plans).Error
}

func (r *planRepoImpl) FindByID(ctx context.Context, planID string) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Where("id = ?", planID).
		First(&plan).Error

	if err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *planRepoImpl) List(ctx context.Context, activeOnly bool) ([]*model.Plan, error) {
	var plans []*model.Plan
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("price ASC").Find(&plans).Error

	if err != nil {
		return nil, err
	}

	return plans, nil
}
