package model

// Wire types of the PayPal Orders v2 API used to confirm a captured order.

type PaypalPayer struct {
	PayerID string `json:"payer_id"`
	Email   string `json:"email_address"`
}

type PaypalAmount struct {
	Currency string `json:"currency_code"`
	Value    string `json:"value"`
}

type PaypalCapture struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	CreateTime string       `json:"create_time"`
	Final      bool         `json:"final_capture"`
	Amount     PaypalAmount `json:"amount"`
}

type PaypalPayments struct {
	Captures []PaypalCapture `json:"captures"`
}

type PaypalPurchaseUnit struct {
	ReferenceID string         `json:"reference_id"`
	Amount      PaypalAmount   `json:"amount"`
	Payments    PaypalPayments `json:"payments"`
}

type PaypalOrder struct {
	ID            string               `json:"id"`
	Intent        string               `json:"intent"`
	Status        string               `json:"status"` // CREATED, APPROVED, COMPLETED, VOIDED
	Payer         PaypalPayer          `json:"payer"`
	PurchaseUnits []PaypalPurchaseUnit `json:"purchase_units"`
}

// CompletedCapture returns the first completed capture of the order, if any.
func (o *PaypalOrder) CompletedCapture() (*PaypalCapture, bool) {
	for _, unit := range o.PurchaseUnits {
		for i := range unit.Payments.Captures {
			if unit.Payments.Captures[i].Status == "COMPLETED" {
				return &unit.Payments.Captures[i], true
			}
		}
	}
	return nil, false
}

// RazorpayPayment is the subset of GET /v1/payments/{id} the verifier needs.
type RazorpayPayment struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"` // smallest currency unit
	Currency string `json:"currency"`
	Status   string `json:"status"` // created, authorized, captured, refunded, failed
	OrderID  string `json:"order_id"`
	Captured bool   `json:"captured"`
}
