package mail

import (
	"context"

	"github.com/mailgun/mailgun-go/v4"
)

type mailgunProvider struct {
	mg *mailgun.MailgunImpl
}

func newMailgunProvider(domain, apiKey string) *mailgunProvider {
	if domain == "" || apiKey == "" {
		return &mailgunProvider{}
	}
	return &mailgunProvider{mg: mailgun.NewMailgun(domain, apiKey)}
}

func (p *mailgunProvider) Name() string { return "mailgun" }

func (p *mailgunProvider) Configured() bool { return p.mg != nil }

func (p *mailgunProvider) Deliver(ctx context.Context, from, to, subject, htmlBody string) error {
	message := p.mg.NewMessage(from, subject, plainTextFallback, to)
	message.SetHtml(htmlBody)

	_, _, err := p.mg.Send(ctx, message)
	return err
}
