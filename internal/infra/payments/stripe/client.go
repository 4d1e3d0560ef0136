package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"stayfinder/internal/app/policies"
)

// Client adapts the Stripe API to the payments port. Checkout sessions
// carry the booking intent as metadata and refunds target the payment
// intent captured at completion.
type Client struct {
	api           *client.API
	webhookSecret string
	currency      string
	successURL    string
	cancelURL     string
}

type Options struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

func NewClient(opts Options) *Client {
	api := &client.API{}
	api.Init(opts.SecretKey, nil)
	currency := opts.Currency
	if currency == "" {
		currency = "inr"
	}
	return &Client{
		api:           api,
		webhookSecret: opts.WebhookSecret,
		currency:      currency,
		successURL:    opts.SuccessURL,
		cancelURL:     opts.CancelURL,
	}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params policies.CheckoutParams) (policies.CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.successURL),
		CancelURL:  stripe.String(c.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(c.currency),
					UnitAmount: stripe.Int64(params.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(params.Title),
						Description: stripe.String(params.Description),
					},
				},
			},
		},
	}
	sessionParams.Context = ctx
	for k, v := range params.Intent.Metadata() {
		sessionParams.AddMetadata(k, v)
	}

	session, err := c.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return policies.CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return policies.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (c *Client) Refund(ctx context.Context, paymentIntentID string) error {
	refundParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	refundParams.Context = ctx
	if _, err := c.api.Refunds.New(refundParams); err != nil {
		return fmt.Errorf("stripe: refund payment intent %s: %w", paymentIntentID, err)
	}
	return nil
}

// VerifyEvent checks the signature over the raw payload before anything is
// parsed, then lifts the session fields the reconciler needs.
func (c *Client) VerifyEvent(payload []byte, signatureHeader string) (policies.PaymentEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, c.webhookSecret)
	if err != nil {
		return policies.PaymentEvent{}, fmt.Errorf("%w: %v", policies.ErrInvalidSignature, err)
	}

	out := policies.PaymentEvent{Kind: string(event.Type)}
	if out.Kind != policies.EventCheckoutCompleted {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return policies.PaymentEvent{}, fmt.Errorf("%w: decode session: %v", policies.ErrMalformedIntent, err)
	}
	out.SessionID = session.ID
	out.Metadata = session.Metadata
	if session.PaymentIntent != nil {
		out.PaymentIntentID = session.PaymentIntent.ID
	}
	return out, nil
}

var _ policies.PaymentsPort = (*Client)(nil)
var _ policies.WebhookVerifier = (*Client)(nil)
