package mail

import (
	"context"
	"fmt"
	"strings"
)

const (
	subjectPaymentConfirmed   = "Payment confirmed: welcome to TouchConnectPro"
	subjectAdminNewPaidMember = "New paid member: %s"
)

// Sender is the single-recipient send operation Gateway provides.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Notifier composes the two membership emails and hands them to a Sender.
type Notifier struct {
	sender       Sender
	templates    *Templates
	dashboardURL string
}

func NewNotifier(sender Sender, templates *Templates, appPublicURL string) *Notifier {
	return &Notifier{
		sender:       sender,
		templates:    templates,
		dashboardURL: strings.TrimRight(appPublicURL, "/"),
	}
}

// NotifyPaymentConfirmed tells the member their payment went through and a
// mentor assignment is pending.
func (n *Notifier) NotifyPaymentConfirmed(ctx context.Context, to, name string) error {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	body, err := n.templates.Render(templatePaymentConfirmed, map[string]any{
		"Name":         name,
		"DashboardURL": n.link("/dashboard"),
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, to, subjectPaymentConfirmed, body)
}

// NotifyAdminNewPaidMember asks the admin to assign a mentor.
func (n *Notifier) NotifyAdminNewPaidMember(ctx context.Context, adminTo, memberName, memberEmail string) error {
	memberName = strings.Join(strings.Fields(memberName), " ")
	if memberName == "" {
		memberName = memberEmail
	}
	body, err := n.templates.Render(templateAdminNewPaidMember, map[string]any{
		"MemberName":   memberName,
		"MemberEmail":  memberEmail,
		"DashboardURL": n.link("/admin"),
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, adminTo, fmt.Sprintf(subjectAdminNewPaidMember, memberName), body)
}

func (n *Notifier) link(path string) string {
	if n.dashboardURL == "" {
		return ""
	}
	return n.dashboardURL + path
}
