package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lionelbuh/touchconnectpro/internal/pkg/billing"
)

const webhookTimeout = 20 * time.Second

// PaymentGateway is the subset of billing.StripeGateway the HTTP layer uses.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error)
	CreateCustomerPortalSession(ctx context.Context, customerID, returnURL string) (*billing.PortalSession, error)
	VerifyAndParseWebhook(rawBody []byte, signatureHeader string) (billing.Event, error)
}

type MembershipService interface {
	HandleWebhook(ctx context.Context, evt billing.Event, payload []byte) billing.Delivery
	LookupMembership(ctx context.Context, email string) (*billing.Membership, error)
}

type BillingController struct {
	gateway PaymentGateway
	service MembershipService
}

func NewBillingController(gateway PaymentGateway, service MembershipService) *BillingController {
	return &BillingController{gateway: gateway, service: service}
}

type checkoutRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type portalRequest struct {
	Email     string `json:"email"`
	ReturnURL string `json:"returnUrl"`
}

// HandleStripeWebhook verifies and reconciles one Stripe delivery. The body
// must reach this handler unmodified; the signature covers the raw bytes.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	evt, err := bc.gateway.VerifyAndParseWebhook(rawBody, signature)
	if err != nil {
		if errors.Is(err, billing.ErrMalformedEvent) {
			log.Warnw("stripe webhook payload rejected", "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		}
		log.Warnw("stripe webhook signature rejected", "ip", c.IP(), "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	d := bc.service.HandleWebhook(ctx, evt, rawBody)
	switch {
	case d.InFlight:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "in_flight", "message": "Delivery is being processed; retry later"})
	case d.Duplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case !d.Acknowledge:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "record_store_unavailable"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":         true,
		"transition": d.Outcome.Transition,
		"matched":    d.Outcome.Matched,
	})
}

// HandleCreateCheckout starts a Stripe checkout for the membership plan.
func (bc *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid JSON body"})
	}

	sess, err := bc.gateway.CreateCheckoutSession(c.UserContext(), billing.CheckoutRequest{
		Email:      req.Email,
		Name:       req.Name,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return providerError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"url":        sess.RedirectURL,
		"customerId": sess.CustomerID,
		"sessionId":  sess.SessionID,
	})
}

// HandleCreatePortal opens the Stripe billing portal for the customer linked
// to the entrepreneur's record.
func (bc *BillingController) HandleCreatePortal(c *fiber.Ctx) error {
	var req portalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid JSON body"})
	}
	if strings.TrimSpace(req.Email) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "email is required"})
	}

	m, err := bc.service.LookupMembership(c.UserContext(), req.Email)
	if err != nil {
		return membershipError(c, err)
	}
	if m.StripeCustomerID == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_billing_customer", "message": "No completed checkout for this email"})
	}

	sess, err := bc.gateway.CreateCustomerPortalSession(c.UserContext(), m.StripeCustomerID, req.ReturnURL)
	if err != nil {
		return providerError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": sess.URL})
}

func (bc *BillingController) HandleGetMembership(c *fiber.Ctx, email string) error {
	if strings.TrimSpace(email) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "email is required"})
	}

	m, err := bc.service.LookupMembership(c.UserContext(), email)
	if err != nil {
		return membershipError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(m)
}

func providerError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrInvalidCheckoutRequest), errors.Is(err, billing.ErrInvalidPortalRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, billing.ErrProviderConfigMissing):
		log.Errorw("billing provider not configured", "path", c.Path())
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_unavailable", "message": "Payments are not configured"})
	default:
		log.Errorw("billing provider request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "billing_provider_error", "message": "Payment provider request failed"})
	}
}

func membershipError(c *fiber.Ctx, err error) error {
	if errors.Is(err, billing.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No membership record for this email"})
	}
	log.Errorw("membership lookup failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "record_store_unavailable"})
}
