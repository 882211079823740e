package billing

import "time"

// Event is a verified billing notification. The concrete types below are the
// only implementations; anything Stripe sends that the membership workflow
// does not act on arrives as Unhandled.
type Event interface {
	Meta() EventMeta
	isEvent()
}

// EventMeta identifies one delivery.
type EventMeta struct {
	ID      string
	Type    string
	Created time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

// CheckoutCompleted: a hosted checkout finished and the subscription exists.
type CheckoutCompleted struct {
	EventMeta
	Email          string
	CustomerID     string
	SubscriptionID string
}

type PaymentFailed struct {
	EventMeta
	CustomerID string
}

type SubscriptionCancelled struct {
	EventMeta
	CustomerID string
}

type Unhandled struct {
	EventMeta
}

func (CheckoutCompleted) isEvent()     {}
func (PaymentFailed) isEvent()         {}
func (SubscriptionCancelled) isEvent() {}
func (Unhandled) isEvent()             {}
