package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/lionelbuh/touchconnectpro/internal/pkg/config"
)

const (
	membershipProductName = "TouchConnectPro Membership"
	metadataEmailKey      = "entrepreneur_email"
)

var checkoutValidate = validator.New()

// StripeGateway is the payment gateway adapter. A gateway built without a
// secret key still verifies webhooks; checkout and portal calls fail fast
// with ErrProviderConfigMissing.
type StripeGateway struct {
	api           *client.API
	webhookSecret string

	priceID    string
	priceCents int64
	currency   string

	defaultSuccessURL string
	defaultCancelURL  string
	defaultReturnURL  string
}

// NewStripeGateway builds the adapter from cfg. backend overrides the Stripe
// API endpoint and may be nil.
func NewStripeGateway(cfg *config.Config, backend stripe.Backend) *StripeGateway {
	g := &StripeGateway{
		webhookSecret:     cfg.StripeWebhookSecret,
		priceID:           cfg.StripePriceID,
		priceCents:        cfg.MembershipPriceCents,
		currency:          cfg.MembershipCurrency,
		defaultSuccessURL: cfg.AppPublicURL + "/dashboard?payment=success",
		defaultCancelURL:  cfg.AppPublicURL + "/pricing?payment=cancelled",
		defaultReturnURL:  cfg.AppPublicURL + "/dashboard",
	}
	if g.currency == "" {
		g.currency = string(stripe.CurrencyUSD)
	}

	if cfg.BillingProviderKey != "" {
		var backends *stripe.Backends
		if backend != nil {
			backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
		}
		g.api = &client.API{}
		g.api.Init(cfg.BillingProviderKey, backends)
	}
	return g
}

func (g *StripeGateway) Configured() bool {
	return g.api != nil
}

// CreateCheckoutSession reuses the Stripe customer registered under the
// entrepreneur's email or creates one, then opens a subscription checkout.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := checkoutValidate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckoutRequest, err)
	}
	if !g.Configured() {
		return nil, ErrProviderConfigMissing
	}

	customerID, err := g.findOrCreateCustomer(ctx, req.Email, req.Name)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(firstNonEmpty(req.SuccessURL, g.defaultSuccessURL)),
		CancelURL:  stripe.String(firstNonEmpty(req.CancelURL, g.defaultCancelURL)),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{g.membershipLineItem()},
		Metadata:   map[string]string{metadataEmailKey: req.Email},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{metadataEmailKey: req.Email},
		},
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		log.Errorw("stripe checkout session failed", "email", req.Email, "customer", customerID, "error", err)
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	log.Infow("stripe checkout session created", "email", req.Email, "customer", customerID, "session", sess.ID)
	return &CheckoutSession{RedirectURL: sess.URL, CustomerID: customerID, SessionID: sess.ID}, nil
}

func (g *StripeGateway) membershipLineItem() *stripe.CheckoutSessionLineItemParams {
	if g.priceID != "" {
		return &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(g.priceID),
			Quantity: stripe.Int64(1),
		}
	}
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(g.currency),
			UnitAmount: stripe.Int64(g.priceCents),
			Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
			},
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(membershipProductName),
			},
		},
	}
}

func (g *StripeGateway) findOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := g.api.Customers.List(listParams)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("list stripe customers: %w", err)
	}

	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Name:     stripe.String(name),
		Metadata: map[string]string{metadataEmailKey: email},
	}
	params.Context = ctx
	cus, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	log.Infow("stripe customer created", "email", email, "customer", cus.ID)
	return cus.ID, nil
}

// CreateCustomerPortalSession opens the Stripe billing portal for an existing
// customer.
func (g *StripeGateway) CreateCustomerPortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrInvalidPortalRequest)
	}
	if !g.Configured() {
		return nil, ErrProviderConfigMissing
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(firstNonEmpty(returnURL, g.defaultReturnURL)),
	}
	params.Context = ctx

	sess, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create portal session: %w", err)
	}
	return &PortalSession{URL: sess.URL}, nil
}

// VerifyAndParseWebhook authenticates a delivery against the signing secret
// and maps it onto an Event. rawBody must be the exact bytes received.
func (g *StripeGateway) VerifyAndParseWebhook(rawBody []byte, signatureHeader string) (Event, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: signing secret not configured", ErrSignatureInvalid)
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature header", ErrSignatureInvalid)
	}

	evt, err := webhook.ConstructEventWithOptions(rawBody, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return parseEvent(evt)
}

func parseEvent(evt stripe.Event) (Event, error) {
	meta := EventMeta{ID: evt.ID, Type: string(evt.Type)}
	if evt.Created > 0 {
		meta.Created = time.Unix(evt.Created, 0).UTC()
	}

	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := decodeObject(evt, &sess); err != nil {
			return nil, err
		}
		return CheckoutCompleted{
			EventMeta:      meta,
			Email:          checkoutEmail(&sess),
			CustomerID:     customerID(sess.Customer),
			SubscriptionID: subscriptionID(sess.Subscription),
		}, nil

	case stripe.EventTypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := decodeObject(evt, &inv); err != nil {
			return nil, err
		}
		return PaymentFailed{EventMeta: meta, CustomerID: customerID(inv.Customer)}, nil

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := decodeObject(evt, &sub); err != nil {
			return nil, err
		}
		return SubscriptionCancelled{EventMeta: meta, CustomerID: customerID(sub.Customer)}, nil

	default:
		return Unhandled{EventMeta: meta}, nil
	}
}

func decodeObject(evt stripe.Event, v any) error {
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return fmt.Errorf("%w: %s has no data object", ErrMalformedEvent, evt.Type)
	}
	if err := json.Unmarshal(evt.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedEvent, evt.Type, err)
	}
	return nil
}

func checkoutEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && strings.TrimSpace(sess.CustomerDetails.Email) != "" {
		return strings.TrimSpace(sess.CustomerDetails.Email)
	}
	if strings.TrimSpace(sess.CustomerEmail) != "" {
		return strings.TrimSpace(sess.CustomerEmail)
	}
	return strings.TrimSpace(sess.Metadata[metadataEmailKey])
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func subscriptionID(s *stripe.Subscription) string {
	if s == nil {
		return ""
	}
	return s.ID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
