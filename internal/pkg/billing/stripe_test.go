package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/lionelbuh/touchconnectpro/internal/pkg/config"
)

const testWebhookSecret = "whsec_test_secret"

func testConfig() *config.Config {
	return &config.Config{
		AppPublicURL:         "https://app.touchconnectpro.com",
		BillingProviderKey:   "sk_test_123",
		StripeWebhookSecret:  testWebhookSecret,
		MembershipPriceCents: 4900,
		MembershipCurrency:   "usd",
	}
}

func eventJSON(id, eventType string, object map[string]any) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     1700000000,
		"api_version": "2025-04-30.basil",
		"data":        map[string]any{"object": object},
	})
	return body
}

func sign(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestVerifyAndParseWebhook_CheckoutCompleted(t *testing.T) {
	g := NewStripeGateway(testConfig(), nil)
	payload := eventJSON("evt_checkout", "checkout.session.completed", map[string]any{
		"id":               "cs_1",
		"object":           "checkout.session",
		"customer":         "cus_1",
		"subscription":     "sub_1",
		"customer_details": map[string]any{"email": "Jane@Example.com"},
	})

	evt, err := g.VerifyAndParseWebhook(payload, sign(payload, testWebhookSecret))
	require.NoError(t, err)

	got, ok := evt.(CheckoutCompleted)
	require.True(t, ok, "got %T", evt)
	assert.Equal(t, "evt_checkout", got.ID)
	assert.Equal(t, "checkout.session.completed", got.Type)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), got.Created)
	assert.Equal(t, "Jane@Example.com", got.Email)
	assert.Equal(t, "cus_1", got.CustomerID)
	assert.Equal(t, "sub_1", got.SubscriptionID)
}

func TestVerifyAndParseWebhook_CheckoutEmailFallbacks(t *testing.T) {
	g := NewStripeGateway(testConfig(), nil)

	payload := eventJSON("evt_a", "checkout.session.completed", map[string]any{
		"id": "cs_a", "object": "checkout.session", "customer": "cus_a", "customer_email": "a@example.com",
	})
	evt, err := g.VerifyAndParseWebhook(payload, sign(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", evt.(CheckoutCompleted).Email)

	payload = eventJSON("evt_b", "checkout.session.completed", map[string]any{
		"id": "cs_b", "object": "checkout.session", "customer": "cus_b",
		"metadata": map[string]any{"entrepreneur_email": "b@example.com"},
	})
	evt, err = g.VerifyAndParseWebhook(payload, sign(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", evt.(CheckoutCompleted).Email)
}

func TestVerifyAndParseWebhook_PaymentFailedAndCancelled(t *testing.T) {
	g := NewStripeGateway(testConfig(), nil)

	payload := eventJSON("evt_fail", "invoice.payment_failed", map[string]any{
		"id": "in_1", "object": "invoice", "customer": "cus_9",
	})
	evt, err := g.VerifyAndParseWebhook(payload, sign(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed{EventMeta: evt.Meta(), CustomerID: "cus_9"}, evt)

	payload = eventJSON("evt_del", "customer.subscription.deleted", map[string]any{
		"id": "sub_1", "object": "subscription", "customer": "cus_9",
	})
	evt, err = g.VerifyAndParseWebhook(payload, sign(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, SubscriptionCancelled{EventMeta: evt.Meta(), CustomerID: "cus_9"}, evt)
}

func TestVerifyAndParseWebhook_Unhandled(t *testing.T) {
	g := NewStripeGateway(testConfig(), nil)
	payload := eventJSON("evt_other", "customer.created", map[string]any{"id": "cus_1", "object": "customer"})

	evt, err := g.VerifyAndParseWebhook(payload, sign(payload, testWebhookSecret))
	require.NoError(t, err)
	u, ok := evt.(Unhandled)
	require.True(t, ok)
	assert.Equal(t, "customer.created", u.Type)
}

func TestVerifyAndParseWebhook_RejectsBadSignatures(t *testing.T) {
	g := NewStripeGateway(testConfig(), nil)
	payload := eventJSON("evt_checkout", "checkout.session.completed", map[string]any{
		"id": "cs_1", "object": "checkout.session", "customer": "cus_1",
	})
	header := sign(payload, testWebhookSecret)

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = ' '

	tests := []struct {
		name    string
		payload []byte
		header  string
	}{
		{name: "missing header", payload: payload, header: ""},
		{name: "wrong secret", payload: payload, header: sign(payload, "whsec_other")},
		{name: "tampered body", payload: tampered, header: header},
		{name: "garbage header", payload: payload, header: "t=1,v1=deadbeef"},
	}
	for _, tt := range tests {
		_, err := g.VerifyAndParseWebhook(tt.payload, tt.header)
		assert.ErrorIs(t, err, ErrSignatureInvalid, tt.name)
	}
}

func TestVerifyAndParseWebhook_MissingSecret(t *testing.T) {
	cfg := testConfig()
	cfg.StripeWebhookSecret = ""
	g := NewStripeGateway(cfg, nil)
	payload := eventJSON("evt_1", "customer.created", map[string]any{"id": "cus_1"})

	_, err := g.VerifyAndParseWebhook(payload, sign(payload, testWebhookSecret))
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifyAndParseWebhook_MalformedObject(t *testing.T) {
	g := NewStripeGateway(testConfig(), nil)
	payload := eventJSON("evt_bad", "invoice.payment_failed", map[string]any{
		"id": "in_1", "object": "invoice", "customer": 12345,
	})

	_, err := g.VerifyAndParseWebhook(payload, sign(payload, testWebhookSecret))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

type stubStripe struct {
	mu               sync.Mutex
	existingCustomer string
	failCheckout     bool
	requests         map[string]url.Values
}

func (s *stubStripe) record(key string, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[key] = r.Form
}

func (s *stubStripe) form(key string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

func newStubStripe(t *testing.T, stub *stubStripe) stripe.Backend {
	t.Helper()
	stub.requests = map[string]url.Values{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			stub.record("list_customers", r)
			data := "[]"
			if stub.existingCustomer != "" {
				data = fmt.Sprintf(`[{"id":%q,"object":"customer"}]`, stub.existingCustomer)
			}
			fmt.Fprintf(w, `{"object":"list","url":"/v1/customers","has_more":false,"data":%s}`, data)
			return
		}
		stub.record("create_customer", r)
		fmt.Fprint(w, `{"id":"cus_new","object":"customer"}`)
	})
	mux.HandleFunc("/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		stub.record("checkout", r)
		w.Header().Set("Content-Type", "application/json")
		if stub.failCheckout {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"No such price"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`)
	})
	mux.HandleFunc("/v1/billing_portal/sessions", func(w http.ResponseWriter, r *http.Request) {
		stub.record("portal", r)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"bps_1","object":"billing_portal.session","url":"https://billing.stripe.com/p/session/test_1"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}

func TestCreateCheckoutSession_CreatesCustomerAndInlinePrice(t *testing.T) {
	stub := &stubStripe{}
	g := NewStripeGateway(testConfig(), newStubStripe(t, stub))

	sess, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{Email: "jane@example.com", Name: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", sess.RedirectURL)
	assert.Equal(t, "cus_new", sess.CustomerID)
	assert.Equal(t, "cs_test_1", sess.SessionID)

	assert.Equal(t, "jane@example.com", stub.form("list_customers").Get("email"))
	assert.Equal(t, "Jane", stub.form("create_customer").Get("name"))

	form := stub.form("checkout")
	assert.Equal(t, "subscription", form.Get("mode"))
	assert.Equal(t, "cus_new", form.Get("customer"))
	assert.Equal(t, "4900", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "month", form.Get("line_items[0][price_data][recurring][interval]"))
	assert.Equal(t, membershipProductName, form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "https://app.touchconnectpro.com/dashboard?payment=success", form.Get("success_url"))
}

func TestCreateCheckoutSession_ReusesCustomerAndPriceID(t *testing.T) {
	stub := &stubStripe{existingCustomer: "cus_existing"}
	cfg := testConfig()
	cfg.StripePriceID = "price_123"
	g := NewStripeGateway(cfg, newStubStripe(t, stub))

	sess, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{
		Email:      "jane@example.com",
		Name:       "Jane",
		SuccessURL: "https://example.com/ok",
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_existing", sess.CustomerID)
	assert.Nil(t, stub.form("create_customer"), "existing customer must be reused")

	form := stub.form("checkout")
	assert.Equal(t, "price_123", form.Get("line_items[0][price]"))
	assert.Empty(t, form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "https://example.com/ok", form.Get("success_url"))
}

func TestCreateCheckoutSession_Validation(t *testing.T) {
	g := NewStripeGateway(testConfig(), nil)

	_, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{Email: "", Name: "Jane"})
	assert.ErrorIs(t, err, ErrInvalidCheckoutRequest)

	_, err = g.CreateCheckoutSession(context.Background(), CheckoutRequest{Email: "jane@example.com", Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidCheckoutRequest)
}

func TestCreateCheckoutSession_MissingKey(t *testing.T) {
	cfg := testConfig()
	cfg.BillingProviderKey = ""
	g := NewStripeGateway(cfg, nil)

	_, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{Email: "jane@example.com", Name: "Jane"})
	assert.ErrorIs(t, err, ErrProviderConfigMissing)
}

func TestCreateCheckoutSession_ProviderError(t *testing.T) {
	stub := &stubStripe{failCheckout: true}
	g := NewStripeGateway(testConfig(), newStubStripe(t, stub))

	_, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{Email: "jane@example.com", Name: "Jane"})
	require.Error(t, err)

	var stripeErr *stripe.Error
	assert.ErrorAs(t, err, &stripeErr)
}

func TestCreateCustomerPortalSession(t *testing.T) {
	stub := &stubStripe{}
	g := NewStripeGateway(testConfig(), newStubStripe(t, stub))

	sess, err := g.CreateCustomerPortalSession(context.Background(), "cus_1", "")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/session/test_1", sess.URL)
	assert.Equal(t, "cus_1", stub.form("portal").Get("customer"))
	assert.Equal(t, "https://app.touchconnectpro.com/dashboard", stub.form("portal").Get("return_url"))

	_, err = g.CreateCustomerPortalSession(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrInvalidPortalRequest)
}
