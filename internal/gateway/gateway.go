// Package gateway wraps the external credit-card processor behind a small
// interface so the wallet service and its tests never talk to Stripe
// directly.
package gateway

import (
	"context"
	"errors"
)

// ErrNotConfigured means the gateway credentials are missing or malformed.
// Handlers surface this as a configuration problem, not a user error.
var ErrNotConfigured = errors.New("payment gateway not configured")

// ErrSignatureInvalid means a webhook payload failed authenticity
// verification and must never be processed.
var ErrSignatureInvalid = errors.New("webhook signature verification failed")

// CheckoutRequest describes a hosted-checkout intent. Amounts are in minor
// units (cents).
type CheckoutRequest struct {
	AmountCents       int64
	Currency          string
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
	Description       string
	Metadata          map[string]string
}

// CheckoutSession is the provider-neutral view of a checkout session, used
// both for freshly created sessions and for sessions re-fetched during
// confirm and reconciliation.
type CheckoutSession struct {
	ID                string
	URL               string
	Status            string // open | complete | expired
	PaymentStatus     string // paid | unpaid | no_payment_required
	AmountTotalCents  int64
	Currency          string
	ClientReferenceID string
	Metadata          map[string]string
}

// Paid reports whether the session has been successfully paid.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}

// Closed reports whether the session can no longer be paid.
func (s *CheckoutSession) Closed() bool {
	return s.Status == "complete" || s.Status == "expired" || s.Status == "canceled"
}

// WebhookEvent is a verified asynchronous event pushed by the gateway.
// Session is set for checkout session events.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

// PaymentGateway is the boundary to the external payment provider. All
// calls are blocking I/O and honor the passed context for timeouts.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	// VerifyWebhook authenticates a pushed event. It must receive the exact
	// raw payload bytes as delivered, never a re-serialized form.
	VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}
