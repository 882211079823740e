package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lionelbuh/touchconnectpro/internal/pkg/config"
)

const sendTimeout = 30 * time.Second

var (
	// ErrProviderConfigMissing means the email provider has no credential; the
	// send was skipped without contacting anyone.
	ErrProviderConfigMissing = errors.New("email provider is not configured")
	// ErrDeliveryFailed wraps any error returned by the provider.
	ErrDeliveryFailed = errors.New("email delivery failed")
	ErrNoRecipient    = errors.New("email recipient is empty")
)

// Provider delivers one HTML email through a concrete service.
type Provider interface {
	Name() string
	Configured() bool
	Deliver(ctx context.Context, from, to, subject, htmlBody string) error
}

// Gateway sends transactional email to a single recipient per call. It never
// queues or retries; every failure is logged and returned for the caller to
// decide whether it matters.
type Gateway struct {
	provider Provider
	from     string
	timeout  time.Duration
}

// NewGateway picks the provider named by cfg.EmailProvider.
func NewGateway(cfg *config.Config) *Gateway {
	var p Provider
	switch cfg.EmailProvider {
	case config.EmailProviderSendGrid:
		p = newSendGridProvider(cfg.EmailProviderKey)
	case config.EmailProviderMailgun:
		p = newMailgunProvider(cfg.MailgunDomain, cfg.EmailProviderKey)
	case config.EmailProviderSMTP:
		p = newSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	default:
		p = newResendProvider(cfg.EmailProviderKey)
	}
	return NewGatewayWithProvider(p, cfg.EmailFrom)
}

func NewGatewayWithProvider(p Provider, from string) *Gateway {
	return &Gateway{provider: p, from: from, timeout: sendTimeout}
}

func (g *Gateway) Send(ctx context.Context, to, subject, htmlBody string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		log.Warnw("email skipped", "subject", subject, "reason", "empty recipient")
		return ErrNoRecipient
	}
	if !g.provider.Configured() {
		log.Warnw("email skipped", "provider", g.provider.Name(), "to", to, "subject", subject, "reason", "provider credential missing")
		return ErrProviderConfigMissing
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.provider.Deliver(ctx, g.from, to, subject, htmlBody); err != nil {
		log.Errorw("email send failed", "provider", g.provider.Name(), "to", to, "subject", subject, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrDeliveryFailed, g.provider.Name(), err)
	}

	log.Infow("email sent", "provider", g.provider.Name(), "to", to, "subject", subject)
	return nil
}
