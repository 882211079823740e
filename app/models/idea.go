package models

import "time"

// Payment states written by webhook reconciliation. An empty payment_status
// means no checkout has completed yet; this service never writes it.
const (
	PaymentStatusUnset     = ""
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "payment_failed"
	PaymentStatusCancelled = "cancelled"
)

// ApprovalStatusPreApproved is the only approval value billing ever writes.
// Every other approval state is set by an admin.
const ApprovalStatusPreApproved = "pre-approved"

// Idea is an entrepreneur's membership record. The table is created and owned
// by the onboarding flow; this service reads it and updates billing columns only.
type Idea struct {
	ID                   string     `gorm:"primaryKey;column:id" json:"id"`
	EntrepreneurEmail    string     `gorm:"column:entrepreneur_email;index" json:"entrepreneur_email"`
	EntrepreneurName     string     `gorm:"column:entrepreneur_name" json:"entrepreneur_name"`
	PaymentStatus        string     `gorm:"column:payment_status;default:''" json:"payment_status"`
	ApprovalStatus       string     `gorm:"column:status" json:"status"`
	StripeCustomerID     string     `gorm:"column:stripe_customer_id;index" json:"stripe_customer_id"`
	StripeSubscriptionID string     `gorm:"column:stripe_subscription_id" json:"stripe_subscription_id"`
	PaymentDate          *time.Time `gorm:"column:payment_date" json:"payment_date,omitempty"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Idea) TableName() string {
	return "ideas"
}

// IsPaid reports whether the last reconciled checkout succeeded.
func (i *Idea) IsPaid() bool {
	return i != nil && i.PaymentStatus == PaymentStatusPaid
}
