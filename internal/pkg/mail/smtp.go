package mail

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

var ErrInvalidHeader = errors.New("mail header contains a line break")

type smtpProvider struct {
	host     string
	port     string
	username string
	password string
}

func newSMTPProvider(host, port, username, password string) *smtpProvider {
	return &smtpProvider{host: host, port: port, username: username, password: password}
}

func (p *smtpProvider) Name() string { return "smtp" }

func (p *smtpProvider) Configured() bool { return p.host != "" }

// Deliver ignores ctx: net/smtp has no cancellation hook.
func (p *smtpProvider) Deliver(_ context.Context, from, to, subject, htmlBody string) error {
	var auth smtp.Auth
	if p.username != "" && p.password != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}

	msg, err := buildMIMEMessage(from, to, subject, htmlBody)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%s", p.host, p.port)
	return smtp.SendMail(addr, auth, from, []string{to}, msg)
}

// buildMIMEMessage refuses addresses with line breaks and folds the subject
// onto one line before Q-encoding it.
func buildMIMEMessage(from, to, subject, htmlBody string) ([]byte, error) {
	if strings.ContainsAny(from, "\r\n") || strings.ContainsAny(to, "\r\n") {
		return nil, ErrInvalidHeader
	}
	subject = mime.QEncoding.Encode("utf-8", strings.Join(strings.Fields(subject), " "))
	return []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			htmlBody,
	), nil
}
