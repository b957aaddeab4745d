package client

import (
	"context"
	"fmt"
	"ptero-billing/internal/config"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

type BraintreeTransaction struct {
	ID       string
	Status   string
	Amount   decimal.Decimal
	Currency string
}

type BraintreeClient interface {
	// FindTransaction looks up a sale created by the Braintree drop-in on the checkout page.
	FindTransaction(ctx context.Context, transactionID string) (*BraintreeTransaction, error)
}

type braintreeClientImpl struct {
	gateway *braintree.Braintree
}

func NewBraintreeClient(cfg *config.Braintree) BraintreeClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway: gateway,
	}
}

func (c *braintreeClientImpl) FindTransaction(ctx context.Context, transactionID string) (*BraintreeTransaction, error) {
	tx, err := c.gateway.Transaction().Find(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("braintree find transaction: %w", err)
	}

	amount := decimal.Zero
	if tx.Amount != nil {
		// braintree decimals are unscaled integers, "9.99" -> Unscaled 999, Scale 2
		amount = decimal.New(tx.Amount.Unscaled, -int32(tx.Amount.Scale))
	}

	return &BraintreeTransaction{
		ID:       tx.Id,
		Status:   string(tx.Status),
		Amount:   amount,
		Currency: tx.CurrencyISOCode,
	}, nil
}

// Settled reports whether funds for the transaction have been captured or are being captured.
func (t *BraintreeTransaction) Settled() bool {
	switch braintree.TransactionStatus(t.Status) {
	case braintree.TransactionStatusSettled,
		braintree.TransactionStatusSettling,
		braintree.TransactionStatusSubmittedForSettlement:
		return true
	}
	return false
}
