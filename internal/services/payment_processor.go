// internal/services/payment_processor.go
package services

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
	"github.com/stripe/stripe-go/v74/transfer"

	"github.com/nomadbitcoin/softlaw-market/internal/config"
)

var (
	ErrPaymentNotCaptured    = errors.New("payment not captured")
	ErrIncorrectPayment      = errors.New("captured amount does not match declared amount")
	ErrInsufficientPayment   = errors.New("captured amount is below the required total")
	ErrMissingPayoutAccount  = errors.New("recipient has no payout account configured")
	ErrPaymentTransferFailed = errors.New("payment transfer failed")
)

// PaymentProcessor is the currency boundary. Incoming payments are
// references to captured charges whose amount is verified against the
// declared amount (attached-value semantics); outgoing movements are
// refunds and payouts. A failed transfer must fail the enclosing
// operation, which rolls back its database transaction.
type PaymentProcessor interface {
	// VerifyPayment fails unless the referenced charge is captured for
	// exactly amount.
	VerifyPayment(ref string, amount int64) error
	// VerifyPaymentAtLeast fails unless the referenced charge is captured
	// for at least amount, and returns the captured amount.
	VerifyPaymentAtLeast(ref string, amount int64) (int64, error)
	// Refund returns amount from the referenced charge to the payer.
	Refund(ref string, amount int64) error
	// Payout transfers amount to the destination account and returns the
	// transfer reference. The idempotency key deduplicates retries of
	// the same transfer at the processor.
	Payout(destination string, amount int64, idempotencyKey string) (string, error)
}

// StripeProcessor implements PaymentProcessor on Stripe PaymentIntents.
type StripeProcessor struct {
	cfg *config.Config
}

func NewStripeProcessor(cfg *config.Config) *StripeProcessor {
	stripe.Key = cfg.Payment.StripeSecretKey
	return &StripeProcessor{cfg: cfg}
}

func (p *StripeProcessor) capturedAmount(ref string) (int64, error) {
	pi, err := paymentintent.Get(ref, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return 0, fmt.Errorf("%w: status %s", ErrPaymentNotCaptured, pi.Status)
	}

	return pi.AmountReceived, nil
}

func (p *StripeProcessor) VerifyPayment(ref string, amount int64) error {
	captured, err := p.capturedAmount(ref)
	if err != nil {
		return err
	}
	if captured != amount {
		return fmt.Errorf("%w: captured %d, declared %d", ErrIncorrectPayment, captured, amount)
	}
	return nil
}

func (p *StripeProcessor) VerifyPaymentAtLeast(ref string, amount int64) (int64, error) {
	captured, err := p.capturedAmount(ref)
	if err != nil {
		return 0, err
	}
	if captured < amount {
		return captured, fmt.Errorf("%w: captured %d, required %d", ErrInsufficientPayment, captured, amount)
	}
	return captured, nil
}

func (p *StripeProcessor) Refund(ref string, amount int64) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(ref),
		Amount:        stripe.Int64(amount),
	}

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentTransferFailed, err)
	}
	return nil
}

func (p *StripeProcessor) Payout(destination string, amount int64, idempotencyKey string) (string, error) {
	if destination == "" {
		return "", ErrMissingPayoutAccount
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(destination),
	}
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}

	t, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentTransferFailed, err)
	}
	return t.ID, nil
}
