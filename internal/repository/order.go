package repository

import (
	"context"
	"ptero-billing/internal/model"
	"time"

	"gorm.io/gorm"
)

// OrderRepository exposes single-row operations on orders. Every state change is a
// conditional update guarded by the state it transitions from; the bool result reports
// whether the guard matched.
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)

	ClaimApproval(ctx context.Context, orderID string, paymentID *string, token string, now time.Time) (bool, error)
	ClaimRetry(ctx context.Context, orderID, token string, now time.Time) (bool, error)
	MarkActive(ctx context.Context, orderID, token string, serverID int64, simulated bool) (bool, error)
	MarkFailed(ctx context.Context, orderID, token, reason string) (bool, error)
	Reject(ctx context.Context, orderID string) (bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

// ClaimApproval moves payment_status pending -> approved and takes the provisioning claim
// in one statement, so at most one caller can win it.
func (r *orderRepoImpl) ClaimApproval(ctx context.Context, orderID string, paymentID *string, token string, now time.Time) (bool, error) {
	return r.update(r.db.WithContext(ctx).Model(&model.Order{}).
		Where(`
			id = ?
			AND status = ?
			AND payment_status = ?
			AND provisioning_token IS NULL
		`,
			orderID,
			model.OrderStatusPending,
			model.PaymentStatusPending,
		),
		map[string]interface{}{
			"payment_status":          model.PaymentStatusApproved,
			"approved_payment_id":     paymentID,
			"provisioning_token":      token,
			"provisioning_started_at": now,
			"provisioning_attempts":   gorm.Expr("provisioning_attempts + 1"),
			"updated_at":              now,
		})
}

func (r *orderRepoImpl) ClaimRetry(ctx context.Context, orderID, token string, now time.Time) (bool, error) {
	return r.update(r.db.WithContext(ctx).Model(&model.Order{}).
		Where(`
			id = ?
			AND status = ?
			AND payment_status = ?
			AND provisioning_token IS NULL
		`,
			orderID,
			model.OrderStatusFailed,
			model.PaymentStatusApproved,
		),
		map[string]interface{}{
			"provisioning_token":      token,
			"provisioning_started_at": now,
			"provisioning_attempts":   gorm.Expr("provisioning_attempts + 1"),
			"updated_at":              now,
		})
}

func (r *orderRepoImpl) MarkActive(ctx context.Context, orderID, token string, serverID int64, simulated bool) (bool, error) {
	return r.update(r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND provisioning_token = ?", orderID, token),
		map[string]interface{}{
			"status":                  model.OrderStatusActive,
			"pterodactyl_server_id":   serverID,
			"server_simulated":        simulated,
			"failure_reason":          nil,
			"provisioning_token":      nil,
			"provisioning_started_at": nil,
			"updated_at":              time.Now(),
		})
}

func (r *orderRepoImpl) MarkFailed(ctx context.Context, orderID, token, reason string) (bool, error) {
	return r.update(r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND provisioning_token = ?", orderID, token),
		map[string]interface{}{
			"status":                  model.OrderStatusFailed,
			"failure_reason":          reason,
			"provisioning_token":      nil,
			"provisioning_started_at": nil,
			"updated_at":              time.Now(),
		})
}

func (r *orderRepoImpl) Reject(ctx context.Context, orderID string) (bool, error) {
	return r.update(r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ? AND payment_status = ?",
			orderID,
			model.OrderStatusPending,
			model.PaymentStatusPending,
		),
		map[string]interface{}{
			"status":         model.OrderStatusCancelled,
			"payment_status": model.PaymentStatusRejected,
			"updated_at":     time.Now(),
		})
}

func (r *orderRepoImpl) update(q *gorm.DB, updates map[string]interface{}) (bool, error) {
	result := q.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
