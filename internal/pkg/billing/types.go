package billing

import "time"

// CheckoutRequest starts a membership subscription for an entrepreneur.
type CheckoutRequest struct {
	Email      string `validate:"required,email"`
	Name       string `validate:"required"`
	SuccessURL string `validate:"omitempty,url"`
	CancelURL  string `validate:"omitempty,url"`
}

type CheckoutSession struct {
	RedirectURL string
	CustomerID  string
	SessionID   string
}

type PortalSession struct {
	URL string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// Membership is the billing view of an entrepreneur's record.
type Membership struct {
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	PaymentStatus    string     `json:"paymentStatus"`
	ApprovalStatus   string     `json:"approvalStatus"`
	StripeCustomerID string     `json:"stripeCustomerId,omitempty"`
	PaymentDate      *time.Time `json:"paymentDate,omitempty"`
}
