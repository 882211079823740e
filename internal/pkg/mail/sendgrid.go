package mail

import (
	"context"
	"fmt"
	netmail "net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const plainTextFallback = "This message is best viewed in an HTML-capable email client."

type sendGridProvider struct {
	client *sendgrid.Client
}

func newSendGridProvider(apiKey string) *sendGridProvider {
	if apiKey == "" {
		return &sendGridProvider{}
	}
	return &sendGridProvider{client: sendgrid.NewSendClient(apiKey)}
}

func (p *sendGridProvider) Name() string { return "sendgrid" }

func (p *sendGridProvider) Configured() bool { return p.client != nil }

func (p *sendGridProvider) Deliver(ctx context.Context, from, to, subject, htmlBody string) error {
	sender, err := netmail.ParseAddress(from)
	if err != nil {
		return fmt.Errorf("invalid sender %q: %w", from, err)
	}

	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail(sender.Name, sender.Address),
		subject,
		sgmail.NewEmail("", to),
		plainTextFallback,
		htmlBody,
	)
	resp, err := p.client.SendWithContext(ctx, msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
