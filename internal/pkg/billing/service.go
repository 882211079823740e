package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lionelbuh/touchconnectpro/app/models"
	"github.com/lionelbuh/touchconnectpro/internal/pkg/config"
)

const deliveryLockTTL = 2 * time.Minute

// Transition names the membership state change an event produced.
type Transition string

const (
	TransitionNone          Transition = "none"
	TransitionPaid          Transition = "paid"
	TransitionPaymentFailed Transition = "payment_failed"
	TransitionCancelled     Transition = "cancelled"
)

// Notification recipients reported in Outcome.Notified.
const (
	RecipientMember = "member"
	RecipientAdmin  = "admin"
)

// Notifier sends the two emails that follow a successful checkout.
type Notifier interface {
	NotifyPaymentConfirmed(ctx context.Context, to, name string) error
	NotifyAdminNewPaidMember(ctx context.Context, adminTo, memberName, memberEmail string) error
}

// Locker serializes concurrent deliveries of the same event.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type Options struct {
	AdminEmail        string
	AckOnStoreFailure bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{AdminEmail: cfg.AdminEmail, AckOnStoreFailure: cfg.AckOnStoreFailure}
}

// Outcome reports what reconciling one event did. Err is nil on success,
// wraps ErrRecordNotFound when nothing matched and ErrRecordStoreUnavailable
// when the store failed.
type Outcome struct {
	EventID      string
	EventType    string
	Transition   Transition
	Matched      int64
	Notified     []string
	NotifyErrors []error
	Err          error
}

// Retryable is true when redelivering the event could change the result.
func (o Outcome) Retryable() bool {
	return errors.Is(o.Err, ErrRecordStoreUnavailable)
}

// Delivery is the result of handling one webhook request.
type Delivery struct {
	Outcome   Outcome
	Duplicate bool
	InFlight  bool
	// Acknowledge tells the transport to answer 2xx.
	Acknowledge bool
}

// Service reconciles billing events into membership records.
type Service struct {
	repo     Repository
	notifier Notifier
	locker   Locker
	opts     Options
	now      func() time.Time
}

func NewService(repo Repository, notifier Notifier, locker Locker, opts Options) *Service {
	return &Service{repo: repo, notifier: notifier, locker: locker, opts: opts, now: time.Now}
}

// HandleWebhook runs one verified delivery through the lock, the delivery
// log and Reconcile. A delivery whose earlier attempt succeeded is not
// reconciled again, so members are emailed once per event.
func (s *Service) HandleWebhook(ctx context.Context, evt Event, payload []byte) Delivery {
	meta := evt.Meta()

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, "stripe:"+s.deliveryID(meta.ID, payload), deliveryLockTTL)
		switch {
		case err != nil:
			log.Warnw("webhook lock unavailable, continuing unlocked", "event_id", meta.ID, "error", err)
		case !ok:
			log.Warnw("webhook delivery already in flight", "event_id", meta.ID, "type", meta.Type)
			return Delivery{InFlight: true}
		default:
			defer release()
		}
	}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: meta.ID,
		EventType:       meta.Type,
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		log.Warnw("webhook delivery log unavailable", "event_id", meta.ID, "error", err)
	}
	if !created && stored.Succeeded() {
		log.Infow("duplicate webhook delivery acknowledged", "event_id", meta.ID, "type", meta.Type)
		return Delivery{Duplicate: true, Acknowledge: true}
	}
	if !created && s.pendingElsewhere(stored) {
		log.Warnw("webhook delivery already in flight", "event_id", meta.ID, "type", meta.Type)
		return Delivery{InFlight: true}
	}

	out := s.Reconcile(ctx, evt)

	if stored != nil {
		if err := s.MarkWebhookProcessed(ctx, stored.ID, out.Err); err != nil {
			log.Warnw("failed to mark webhook processed", "event_id", meta.ID, "error", err)
		}
	}

	return Delivery{Outcome: out, Acknowledge: s.acknowledge(out)}
}

// pendingElsewhere reports whether another delivery recorded the event and
// has not finished with it. Rows older than the lock TTL are treated as
// abandoned so a crashed attempt does not block redelivery forever.
func (s *Service) pendingElsewhere(stored *models.BillingWebhookEvent) bool {
	if stored == nil || stored.ProcessedAt != nil || stored.CreatedAt.IsZero() {
		return false
	}
	return s.now().Sub(stored.CreatedAt) < deliveryLockTTL
}

func (s *Service) acknowledge(out Outcome) bool {
	if out.Retryable() {
		return s.opts.AckOnStoreFailure
	}
	return true
}

func (s *Service) deliveryID(eventID string, payload []byte) string {
	if id := strings.TrimSpace(eventID); id != "" {
		return id
	}
	return payloadHash(string(payload))
}

// Reconcile applies the single membership transition an event calls for.
// Failures are logged and reported in the Outcome; Reconcile never panics.
func (s *Service) Reconcile(ctx context.Context, evt Event) (out Outcome) {
	if evt == nil {
		return Outcome{Transition: TransitionNone, Err: ErrMalformedEvent}
	}
	meta := evt.Meta()
	out = Outcome{EventID: meta.ID, EventType: meta.Type, Transition: TransitionNone}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("reconcile %s: panic: %v", meta.Type, r)
		}
		s.logOutcome(out)
	}()

	switch e := evt.(type) {
	case CheckoutCompleted:
		out.Transition = TransitionPaid
		s.reconcileCheckout(ctx, e, &out)
	case PaymentFailed:
		out.Transition = TransitionPaymentFailed
		out.Matched, out.Err = s.updateByCustomer(e.CustomerID, func(id string) (int64, error) {
			return s.repo.SetPaymentStatusByCustomerID(ctx, id, models.PaymentStatusFailed)
		})
	case SubscriptionCancelled:
		out.Transition = TransitionCancelled
		out.Matched, out.Err = s.updateByCustomer(e.CustomerID, func(id string) (int64, error) {
			return s.repo.CancelByCustomerID(ctx, id)
		})
	}
	return out
}

func (s *Service) reconcileCheckout(ctx context.Context, e CheckoutCompleted, out *Outcome) {
	email := strings.TrimSpace(e.Email)
	if email == "" {
		out.Err = fmt.Errorf("%w: checkout carries no email", ErrRecordNotFound)
		return
	}

	paidAt := e.Created
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	n, err := s.repo.MarkPaidByEmail(ctx, email, e.CustomerID, e.SubscriptionID, paidAt.UTC())
	if err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrRecordStoreUnavailable, err)
		return
	}
	out.Matched = n
	if n == 0 {
		out.Err = fmt.Errorf("%w: email %s", ErrRecordNotFound, email)
		return
	}

	s.notifyPaid(context.WithoutCancel(ctx), email, s.memberName(ctx, email), out)
}

func (s *Service) updateByCustomer(customerID string, update func(string) (int64, error)) (int64, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return 0, fmt.Errorf("%w: event carries no customer id", ErrRecordNotFound)
	}
	n, err := update(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRecordStoreUnavailable, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: customer %s", ErrRecordNotFound, id)
	}
	return n, nil
}

func (s *Service) memberName(ctx context.Context, email string) string {
	ideas, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		log.Warnw("member name lookup failed", "email", email, "error", err)
		return ""
	}
	for _, idea := range ideas {
		if name := strings.TrimSpace(idea.EntrepreneurName); name != "" {
			return name
		}
	}
	return ""
}

// notifyPaid sends the member and admin emails concurrently. Failures are
// collected in out and never undo the store update.
func (s *Service) notifyPaid(ctx context.Context, email, name string, out *Outcome) {
	if s.notifier == nil {
		return
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	send := func(recipient string, fn func() error) {
		defer wg.Done()
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return fn()
		}()
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			log.Warnw("membership email failed", "recipient", recipient, "email", email, "error", err)
			out.NotifyErrors = append(out.NotifyErrors, fmt.Errorf("%s: %w", recipient, err))
			return
		}
		out.Notified = append(out.Notified, recipient)
	}

	wg.Add(1)
	go send(RecipientMember, func() error {
		return s.notifier.NotifyPaymentConfirmed(ctx, email, name)
	})

	if s.opts.AdminEmail != "" {
		wg.Add(1)
		go send(RecipientAdmin, func() error {
			return s.notifier.NotifyAdminNewPaidMember(ctx, s.opts.AdminEmail, name, email)
		})
	} else {
		log.Warnw("admin email not configured, skipping new member notice", "email", email)
	}

	wg.Wait()
}

func (s *Service) logOutcome(out Outcome) {
	switch {
	case out.Err == nil && out.Transition == TransitionNone:
		log.Infow("billing event ignored", "event_id", out.EventID, "type", out.EventType)
	case out.Err == nil:
		log.Infow("billing event reconciled", "event_id", out.EventID, "type", out.EventType,
			"transition", out.Transition, "matched", out.Matched, "notified", out.Notified)
	case errors.Is(out.Err, ErrRecordNotFound):
		log.Warnw("billing event matched no membership record", "event_id", out.EventID, "type", out.EventType, "error", out.Err)
	default:
		log.Errorw("billing event reconciliation failed", "event_id", out.EventID, "type", out.EventType, "error", out.Err)
	}
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		eventID = payloadHash(in.PayloadJSON)
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}

// LookupMembership returns the billing view of the newest record for email,
// preferring one that already has a Stripe customer.
func (s *Service) LookupMembership(ctx context.Context, email string) (*Membership, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrRecordNotFound)
	}
	ideas, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordStoreUnavailable, err)
	}
	if len(ideas) == 0 {
		return nil, ErrRecordNotFound
	}

	chosen := ideas[0]
	for _, idea := range ideas {
		if idea.IsPaid() {
			chosen = idea
			break
		}
		if idea.StripeCustomerID != "" && chosen.StripeCustomerID == "" {
			chosen = idea
		}
	}
	return &Membership{
		Email:            chosen.EntrepreneurEmail,
		Name:             chosen.EntrepreneurName,
		PaymentStatus:    chosen.PaymentStatus,
		ApprovalStatus:   chosen.ApprovalStatus,
		StripeCustomerID: chosen.StripeCustomerID,
		PaymentDate:      chosen.PaymentDate,
	}, nil
}

func payloadHash(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return "hash:" + hex.EncodeToString(sum[:])
}
