package model

import (
	"errors"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusActive    OrderStatus = "active"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

type Order struct {
	ID                  string        `gorm:"primaryKey;size:36;not null"`
	UserID              string        `gorm:"size:64;index;not null"`
	PlanID              string        `gorm:"size:64;index;not null"`
	ServerName          string        `gorm:"size:191;not null"`
	Status              OrderStatus   `gorm:"size:16;index;not null"`
	PaymentStatus       PaymentStatus `gorm:"size:16;index;not null"`
	PterodactylServerID *int64        // negative when simulated
	ServerSimulated     bool          `gorm:"not null;default:false"`
	ApprovedPaymentID   *string       `gorm:"size:36"`
	FailureReason       *string       `gorm:"size:1024"`

	// set while a provisioning attempt is in flight
	ProvisioningToken     *string `gorm:"size:36"`
	ProvisioningStartedAt *time.Time
	ProvisioningAttempts  int `gorm:"not null;default:0"`

	Plan *Plan `gorm:"foreignKey:PlanID;references:ID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusActive || o.Status == OrderStatusCancelled
}

func (o *Order) AwaitingApproval() bool {
	return o.Status == OrderStatusPending && o.PaymentStatus == PaymentStatusPending
}

// Provisioning reports whether an attempt currently holds the order's provisioning claim.
func (o *Order) Provisioning() bool {
	return o.ProvisioningToken != nil
}

// ClaimStale reports whether the provisioning claim is older than maxAge, i.e. the attempt
// that took it never finalized the order.
func (o *Order) ClaimStale(now time.Time, maxAge time.Duration) bool {
	if o.ProvisioningStartedAt == nil {
		return o.ProvisioningToken != nil
	}
	return now.Sub(*o.ProvisioningStartedAt) > maxAge
}

var ErrInvariantViolated = errors.New("order invariant violated")

// CheckInvariants verifies the relations between status, payment status and the remote
// server reference that must hold after every transition.
func (o *Order) CheckInvariants() error {
	active := o.Status == OrderStatusActive
	if active != (o.PterodactylServerID != nil) {
		return fmt.Errorf("%w: status=%s server_id set=%t", ErrInvariantViolated, o.Status, o.PterodactylServerID != nil)
	}
	if active && o.PaymentStatus != PaymentStatusApproved {
		return fmt.Errorf("%w: active order with payment_status=%s", ErrInvariantViolated, o.PaymentStatus)
	}
	if o.PaymentStatus == PaymentStatusRejected &&
		o.Status != OrderStatusFailed && o.Status != OrderStatusCancelled {
		return fmt.Errorf("%w: rejected payment with status=%s", ErrInvariantViolated, o.Status)
	}
	return nil
}
