package mail

import (
	"context"

	"github.com/resend/resend-go/v2"
)

type resendProvider struct {
	client *resend.Client
}

func newResendProvider(apiKey string) *resendProvider {
	if apiKey == "" {
		return &resendProvider{}
	}
	return &resendProvider{client: resend.NewClient(apiKey)}
}

func (p *resendProvider) Name() string { return "resend" }

func (p *resendProvider) Configured() bool { return p.client != nil }

func (p *resendProvider) Deliver(ctx context.Context, from, to, subject, htmlBody string) error {
	_, err := p.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	})
	return err
}
