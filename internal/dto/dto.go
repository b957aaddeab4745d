package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type SubmitOrderRequest struct {
	PlanID     string `json:"plan_id" validate:"required,max=64"`
	ServerName string `json:"server_name" validate:"required,max=191"`
}

type SubmitOrderResponse struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

type RecordPaymentRequest struct {
	Gateway         string          `json:"gateway" validate:"required,oneof=paypal razorpay upi discord braintree"`
	Reference       string          `json:"reference" validate:"required,max=191"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"required,len=3"`
	GatewayResponse json.RawMessage `json:"gateway_response,omitempty"`
}

type RecordPaymentResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

type ApproveRequest struct {
	PaymentID string `json:"payment_id" validate:"omitempty,uuid"`
}

type ApprovalResponse struct {
	OrderID         string `json:"order_id"`
	ServerReference int64  `json:"server_reference"`
	Simulated       bool   `json:"simulated"`
	AlreadyActive   bool   `json:"already_active"`
}

type OrderResponse struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	PlanID               string    `json:"plan_id"`
	PlanName             string    `json:"plan_name,omitempty"`
	ServerName           string    `json:"server_name"`
	Status               string    `json:"status"`
	PaymentStatus        string    `json:"payment_status"`
	PterodactylServerID  *int64    `json:"pterodactyl_server_id"`
	ServerSimulated      bool      `json:"server_simulated"`
	ApprovedPaymentID    *string   `json:"approved_payment_id,omitempty"`
	FailureReason        *string   `json:"failure_reason,omitempty"` // admins only
	ProvisioningAttempts int       `json:"provisioning_attempts"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type PaymentResponse struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	Gateway         string          `json:"gateway"`
	Reference       string          `json:"reference"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	GatewayResponse json.RawMessage `json:"gateway_response,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
}

type OrderEventResponse struct {
	Action            string    `json:"action"`
	Actor             string    `json:"actor"`
	FromStatus        string    `json:"from_status"`
	ToStatus          string    `json:"to_status"`
	FromPaymentStatus string    `json:"from_payment_status"`
	ToPaymentStatus   string    `json:"to_payment_status"`
	Reason            *string   `json:"reason,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}
