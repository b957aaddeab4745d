package repository

import (
	"context"
	"ptero-billing/internal/model"

	"gorm.io/gorm"
)

type OrderEventRepository interface {
	Create(ctx context.Context, event *model.OrderEvent) error
	ListByOrder(ctx context.Context, orderID string) ([]*model.OrderEvent, error)
}

type orderEventRepositoryImpl struct {
	db *gorm.DB
}

func NewOrderEventRepository(db *gorm.DB) OrderEventRepository {
	return &orderEventRepositoryImpl{db: db}
}

func (r *orderEventRepositoryImpl) Create(ctx context.Context, event *model.OrderEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *orderEventRepositoryImpl) ListByOrder(ctx context.Context, orderID string) ([]*model.OrderEvent, error) {
	var events []*model.OrderEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&events).Error

	return events, err
}
