package billing

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lionelbuh/touchconnectpro/app/models"
)

// Repository provides the record store operations used by the billing service.
// Update methods return the number of records the filter matched.
type Repository interface {
	MarkPaidByEmail(ctx context.Context, email, customerID, subscriptionID string, paidAt time.Time) (int64, error)
	SetPaymentStatusByCustomerID(ctx context.Context, customerID, status string) (int64, error)
	CancelByCustomerID(ctx context.Context, customerID string) (int64, error)
	FindByEmail(ctx context.Context, email string) ([]models.Idea, error)
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

const emailMatch = "LOWER(entrepreneur_email) = LOWER(?)"

func (r *gormRepository) MarkPaidByEmail(ctx context.Context, email, customerID, subscriptionID string, paidAt time.Time) (int64, error) {
	return r.updateMatching(ctx, emailMatch, email, map[string]interface{}{
		"payment_status":         models.PaymentStatusPaid,
		"stripe_customer_id":     customerID,
		"stripe_subscription_id": subscriptionID,
		"payment_date":           paidAt,
	})
}

func (r *gormRepository) SetPaymentStatusByCustomerID(ctx context.Context, customerID, status string) (int64, error) {
	return r.updateMatching(ctx, "stripe_customer_id = ?", customerID, map[string]interface{}{
		"payment_status": status,
	})
}

func (r *gormRepository) CancelByCustomerID(ctx context.Context, customerID string) (int64, error) {
	return r.updateMatching(ctx, "stripe_customer_id = ?", customerID, map[string]interface{}{
		"payment_status": models.PaymentStatusCancelled,
		"status":         models.ApprovalStatusPreApproved,
	})
}

// updateMatching counts before updating: MySQL reports changed rows, not
// matched rows, so a replay with identical values would otherwise look like
// a miss.
func (r *gormRepository) updateMatching(ctx context.Context, where string, arg string, updates map[string]interface{}) (int64, error) {
	var matched int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Idea{}).Where(where, arg).Count(&matched).Error; err != nil {
			return err
		}
		if matched == 0 {
			return nil
		}
		return tx.Model(&models.Idea{}).Where(where, arg).Updates(updates).Error
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

func (r *gormRepository) FindByEmail(ctx context.Context, email string) ([]models.Idea, error) {
	var ideas []models.Idea
	err := r.db.WithContext(ctx).
		Where(emailMatch, email).
		Order("created_at DESC").
		Find(&ideas).Error
	return ideas, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
