package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentMethod identifies the front end that produced a payment reference.
type PaymentMethod string

const (
	PaymentMethodPaypal    PaymentMethod = "paypal"
	PaymentMethodRazorpay  PaymentMethod = "razorpay"
	PaymentMethodUPI       PaymentMethod = "upi"
	PaymentMethodDiscord   PaymentMethod = "discord"
	PaymentMethodBraintree PaymentMethod = "braintree"
)

var paymentMethods = map[PaymentMethod]struct{}{
	PaymentMethodPaypal:    {},
	PaymentMethodRazorpay:  {},
	PaymentMethodUPI:       {},
	PaymentMethodDiscord:   {},
	PaymentMethodBraintree: {},
}

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(s)
	_, ok := paymentMethods[m]
	return m, ok
}

// Manual methods have no gateway API to confirm against and always need an admin.
func (m PaymentMethod) Manual() bool {
	return m == PaymentMethodUPI || m == PaymentMethodDiscord
}

type Payment struct {
	ID              string          `gorm:"primaryKey;size:36;not null"`
	OrderID         string          `gorm:"size:36;index;not null"`
	Gateway         PaymentMethod   `gorm:"size:32;not null;uniqueIndex:ux_payments_gateway_reference,priority:1"`
	Reference       string          `gorm:"size:191;not null;uniqueIndex:ux_payments_gateway_reference,priority:2"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency        string          `gorm:"size:3;not null"`
	Status          PaymentStatus   `gorm:"size:16;index;not null"`
	GatewayResponse datatypes.JSON
	CreatedAt       time.Time
	CompletedAt     *time.Time
}
