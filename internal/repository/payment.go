package repository

import (
	"context"
	"ptero-billing/internal/model"
	"time"

	"gorm.io/gorm"
)

// PaymentRepository is the append-mostly payment ledger. A payment row only changes once,
// from pending to its terminal status.
type PaymentRepository interface {
	Append(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, paymentID string) (*model.Payment, error)
	FindByReference(ctx context.Context, gateway model.PaymentMethod, reference string) (*model.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]*model.Payment, error)
	SetStatus(ctx context.Context, paymentID string, status model.PaymentStatus) (bool, error)
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func (r *paymentRepoImpl) Append(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, paymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", paymentID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindByReference(ctx context.Context, gateway model.PaymentMethod, reference string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND reference = ?", gateway, reference).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

// ListByOrder returns the order's payments, newest first.
func (r *paymentRepoImpl) ListByOrder(ctx context.Context, orderID string) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&payments).Error

	if err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepoImpl) SetStatus(ctx context.Context, paymentID string, status model.PaymentStatus) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": &now,
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
