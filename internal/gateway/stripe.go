package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

var secretKeyRegex = regexp.MustCompile(`^sk_(test|live)_[A-Za-z0-9]+$`)

// StripeGateway implements PaymentGateway on Stripe Checkout.
type StripeGateway struct {
	secretKey     string
	webhookSecret string
}

// NewStripeGateway validates the secret key format up front so a placeholder
// key fails loudly on the first call instead of producing opaque 401s.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	key := strings.TrimSpace(secretKey)
	if key == "" || strings.Contains(key, "xxx") || !secretKeyRegex.MatchString(key) {
		key = ""
	}
	return &StripeGateway{
		secretKey:     key,
		webhookSecret: strings.TrimSpace(webhookSecret),
	}
}

// Configured reports whether a usable secret key is present.
func (g *StripeGateway) Configured() bool {
	return g.secretKey != ""
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	stripe.Key = g.secretKey

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.ClientReferenceID),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
			},
		},
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	stripe.Key = g.secretKey

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}
	return fromStripeSession(sess), nil
}

// VerifyWebhook checks the Stripe-Signature header over the exact payload
// bytes using the shared webhook secret.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, ErrNotConfigured
	}

	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if strings.HasPrefix(out.Type, "checkout.session.") {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("parse checkout session payload: %w", err)
		}
		out.Session = fromStripeSession(&sess)
	}
	return out, nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *CheckoutSession {
	return &CheckoutSession{
		ID:                sess.ID,
		URL:               sess.URL,
		Status:            string(sess.Status),
		PaymentStatus:     string(sess.PaymentStatus),
		AmountTotalCents:  sess.AmountTotal,
		Currency:          strings.ToUpper(string(sess.Currency)),
		ClientReferenceID: sess.ClientReferenceID,
		Metadata:          sess.Metadata,
	}
}
