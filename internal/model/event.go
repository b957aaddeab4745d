package model

import "time"

const (
	ActionOrderSubmitted       = "order_submitted"
	ActionPaymentRecorded      = "payment_recorded"
	ActionPaymentApproved      = "payment_approved"
	ActionPaymentRejected      = "payment_rejected"
	ActionPaymentUpdateFailed  = "payment_update_failed"
	ActionProvisioningStarted  = "provisioning_started"
	ActionProvisioned          = "provisioned"
	ActionProvisioningFailed   = "provisioning_failed"
	ActionProvisioningRecovery = "provisioning_interrupted"
)

// OrderEvent is the audit record written for every order transition and failure.
type OrderEvent struct {
	ID                string `gorm:"primaryKey;size:36;not null"`
	OrderID           string `gorm:"size:36;index;not null"`
	Actor             string `gorm:"size:128;not null"`
	Action            string `gorm:"size:64;not null"`
	FromStatus        OrderStatus
	ToStatus          OrderStatus
	FromPaymentStatus PaymentStatus
	ToPaymentStatus   PaymentStatus
	Reason            *string `gorm:"size:1024"`
	CreatedAt         time.Time
}
