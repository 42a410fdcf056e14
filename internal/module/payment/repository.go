package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	errs "github.com/bookwise/payments/internal/shared/errors"
)

// Repository persists the intent mirror and webhook event records.
type Repository interface {
	CreateIntent(ctx context.Context, rec *IntentRecord) error
	GetIntentByTransactionID(ctx context.Context, transactionID string) (*IntentRecord, error)
	UpdateIntent(ctx context.Context, rec *IntentRecord) error

	CreateWebhookEvent(ctx context.Context, rec *WebhookEventRecord) error
	WebhookEventExists(ctx context.Context, provider, eventID string) (bool, error)
	MarkWebhookEventProcessed(ctx context.Context, id uuid.UUID, processErr error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates the gorm-backed repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// AutoMigrate creates the payment tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&IntentRecord{}, &WebhookEventRecord{})
}

func (r *gormRepository) CreateIntent(ctx context.Context, rec *IntentRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormRepository) GetIntentByTransactionID(ctx context.Context, transactionID string) (*IntentRecord, error) {
	var rec IntentRecord
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("payment intent not found: " + transactionID)
		}
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) UpdateIntent(ctx context.Context, rec *IntentRecord) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *gormRepository) CreateWebhookEvent(ctx context.Context, rec *WebhookEventRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormRepository) WebhookEventExists(ctx context.Context, provider, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&WebhookEventRecord{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) MarkWebhookEventProcessed(ctx context.Context, id uuid.UUID, processErr error) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"processed":    true,
		"processed_at": &now,
	}
	if processErr != nil {
		updates["error"] = processErr.Error()
	}
	return r.db.WithContext(ctx).Model(&WebhookEventRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}
