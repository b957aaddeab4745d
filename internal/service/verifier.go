package service

import (
	"context"
	"errors"
	"fmt"
	"ptero-billing/internal/client"
	"ptero-billing/internal/model"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotConfirmed means the gateway answered but does not vouch for the payment.
var ErrNotConfirmed = errors.New("payment not confirmed by gateway")

// PaymentVerifier asks a payment gateway whether a recorded payment really happened.
type PaymentVerifier interface {
	Gateway() model.PaymentMethod
	Verify(ctx context.Context, payment *model.Payment) error
}

func matchAmount(payment *model.Payment, amount decimal.Decimal, currency string) error {
	if !strings.EqualFold(payment.Currency, currency) {
		return fmt.Errorf("%w: currency %s, expected %s", ErrNotConfirmed, currency, payment.Currency)
	}
	if !payment.Amount.Equal(amount) {
		return fmt.Errorf("%w: amount %s, expected %s", ErrNotConfirmed, amount.StringFixed(2), payment.Amount.StringFixed(2))
	}
	return nil
}

type paypalVerifierImpl struct {
	client client.PaypalClient
}

func NewPaypalVerifier(paypalClient client.PaypalClient) PaymentVerifier {
	return &paypalVerifierImpl{client: paypalClient}
}

func (v *paypalVerifierImpl) Gateway() model.PaymentMethod { return model.PaymentMethodPaypal }

func (v *paypalVerifierImpl) Verify(ctx context.Context, payment *model.Payment) error {
	order, err := v.client.GetOrder(ctx, payment.Reference)
	if err != nil {
		return fmt.Errorf("fetch paypal order: %w", err)
	}
	if order.Status != "COMPLETED" {
		return fmt.Errorf("%w: paypal order status %s", ErrNotConfirmed, order.Status)
	}
	capture, ok := order.CompletedCapture()
	if !ok {
		return fmt.Errorf("%w: paypal order has no completed capture", ErrNotConfirmed)
	}
	amount, err := decimal.NewFromString(capture.Amount.Value)
	if err != nil {
		return fmt.Errorf("parse paypal capture amount %q: %w", capture.Amount.Value, err)
	}
	return matchAmount(payment, amount, capture.Amount.Currency)
}

type braintreeVerifierImpl struct {
	client client.BraintreeClient
}

func NewBraintreeVerifier(braintreeClient client.BraintreeClient) PaymentVerifier {
	return &braintreeVerifierImpl{client: braintreeClient}
}

func (v *braintreeVerifierImpl) Gateway() model.PaymentMethod { return model.PaymentMethodBraintree }

func (v *braintreeVerifierImpl) Verify(ctx context.Context, payment *model.Payment) error {
	tx, err := v.client.FindTransaction(ctx, payment.Reference)
	if err != nil {
		return fmt.Errorf("fetch braintree transaction: %w", err)
	}
	if !tx.Settled() {
		return fmt.Errorf("%w: braintree transaction status %s", ErrNotConfirmed, tx.Status)
	}
	return matchAmount(payment, tx.Amount, tx.Currency)
}

type razorpayVerifierImpl struct {
	client client.RazorpayClient
}

func NewRazorpayVerifier(razorpayClient client.RazorpayClient) PaymentVerifier {
	return &razorpayVerifierImpl{client: razorpayClient}
}

func (v *razorpayVerifierImpl) Gateway() model.PaymentMethod { return model.PaymentMethodRazorpay }

func (v *razorpayVerifierImpl) Verify(ctx context.Context, payment *model.Payment) error {
	p, err := v.client.FetchPayment(ctx, payment.Reference)
	if err != nil {
		return fmt.Errorf("fetch razorpay payment: %w", err)
	}
	if p.Status != "captured" {
		return fmt.Errorf("%w: razorpay payment status %s", ErrNotConfirmed, p.Status)
	}
	// razorpay amounts are in the smallest currency unit
	return matchAmount(payment, decimal.New(p.Amount, -2), p.Currency)
}
