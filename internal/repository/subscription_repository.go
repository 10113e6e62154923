package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	subscriberDomain "github.com/subtrack/service-subscription/internal/domain/subscriber"
	subscriptionDomain "github.com/subtrack/service-subscription/internal/domain/subscription"
	"github.com/subtrack/service-subscription/internal/platform/domain"
)

// visibleScope keeps subscriptions that are not deleted and whose subscriber
// is not deleted either.
const visibleScope = "subscriptions.is_deleted = false AND EXISTS (" +
	"SELECT 1 FROM subscribers WHERE subscribers.id = subscriptions.subscriber_id AND subscribers.is_deleted = false)"

// SubscriptionModel is the GORM model for the subscriptions table.
type SubscriptionModel struct {
	ID           int64            `gorm:"primaryKey;autoIncrement"`
	StartDate    time.Time        `gorm:"type:date;not null"`
	EndDate      time.Time        `gorm:"type:date;not null;index"`
	Amount       decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	Status       string           `gorm:"type:varchar(20);not null"`
	Deleted      bool             `gorm:"column:is_deleted;not null;default:false"`
	DeletedAt    *time.Time       `gorm:"type:timestamptz"`
	SubscriberID *int64           `gorm:"index"`
	Subscriber   *SubscriberModel `gorm:"foreignKey:SubscriberID"`
}

// TableName sets the table name.
func (SubscriptionModel) TableName() string { return "subscriptions" }

// GormSubscriptionRepository implements SubscriptionRepository using GORM.
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository.
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// Save inserts a new subscription.
func (r *GormSubscriptionRepository) Save(ctx context.Context, s *subscriptionDomain.Subscription) error {
	model := toSubscriptionModel(s)
	if err := r.db.WithContext(ctx).Omit("Subscriber").Create(&model).Error; err != nil {
		return err
	}
	s.SetID(model.ID)
	return nil
}

// Update persists every mutable column of a subscription.
func (r *GormSubscriptionRepository) Update(ctx context.Context, s *subscriptionDomain.Subscription) error {
	model := toSubscriptionModel(s)
	result := r.db.WithContext(ctx).
		Model(&SubscriptionModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"start_date":    model.StartDate,
			"end_date":      model.EndDate,
			"amount":        model.Amount,
			"status":        model.Status,
			"is_deleted":    model.Deleted,
			"deleted_at":    model.DeletedAt,
			"subscriber_id": model.SubscriberID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Subscription", strconv.FormatInt(model.ID, 10))
	}
	return nil
}

// FindByID returns a subscription regardless of deletion state.
func (r *GormSubscriptionRepository) FindByID(ctx context.Context, id int64) (*subscriptionDomain.Subscription, error) {
	return r.first(r.base(ctx).Where("subscriptions.id = ?", id), id)
}

// FindActiveByID returns a non-deleted subscription.
func (r *GormSubscriptionRepository) FindActiveByID(ctx context.Context, id int64) (*subscriptionDomain.Subscription, error) {
	return r.first(r.base(ctx).Where("subscriptions.id = ? AND subscriptions.is_deleted = ?", id, false), id)
}

// FindActiveBySubscriberID returns the owner's non-deleted subscriptions.
func (r *GormSubscriptionRepository) FindActiveBySubscriberID(ctx context.Context, subscriberID int64) ([]*subscriptionDomain.Subscription, error) {
	return r.find(r.base(ctx).Where("subscriptions.subscriber_id = ? AND subscriptions.is_deleted = ?", subscriberID, false))
}

// ListVisible returns subscriptions where neither side is deleted.
func (r *GormSubscriptionRepository) ListVisible(ctx context.Context) ([]*subscriptionDomain.Subscription, error) {
	return r.find(r.base(ctx).Where(visibleScope))
}

// ListAll returns every stored subscription.
func (r *GormSubscriptionRepository) ListAll(ctx context.Context) ([]*subscriptionDomain.Subscription, error) {
	return r.find(r.base(ctx))
}

// FindEndingBetween returns visible subscriptions ending in [from, to].
func (r *GormSubscriptionRepository) FindEndingBetween(ctx context.Context, from, to time.Time) ([]*subscriptionDomain.Subscription, error) {
	return r.find(r.base(ctx).
		Where(visibleScope).
		Where("subscriptions.end_date BETWEEN ? AND ?", from, to))
}

// Delete permanently removes one subscription.
func (r *GormSubscriptionRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&SubscriptionModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Subscription", strconv.FormatInt(id, 10))
	}
	return nil
}

// DeleteBySubscriberID permanently removes all of the owner's subscriptions.
func (r *GormSubscriptionRepository) DeleteBySubscriberID(ctx context.Context, subscriberID int64) (int64, error) {
	result := r.db.WithContext(ctx).Where("subscriber_id = ?", subscriberID).Delete(&SubscriptionModel{})
	return result.RowsAffected, result.Error
}

func (r *GormSubscriptionRepository) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&SubscriptionModel{}).Preload("Subscriber")
}

func (r *GormSubscriptionRepository) first(q *gorm.DB, id int64) (*subscriptionDomain.Subscription, error) {
	var model SubscriptionModel
	if err := q.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Subscription", strconv.FormatInt(id, 10))
		}
		return nil, err
	}
	return toSubscriptionDomain(&model), nil
}

func (r *GormSubscriptionRepository) find(q *gorm.DB) ([]*subscriptionDomain.Subscription, error) {
	var models []SubscriptionModel
	if err := q.Order("subscriptions.id").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*subscriptionDomain.Subscription, len(models))
	for i := range models {
		out[i] = toSubscriptionDomain(&models[i])
	}
	return out, nil
}

func toSubscriptionModel(s *subscriptionDomain.Subscription) SubscriptionModel {
	var subscriberID *int64
	if s.SubscriberID() != 0 {
		id := s.SubscriberID()
		subscriberID = &id
	}
	return SubscriptionModel{
		ID:           s.ID(),
		StartDate:    s.StartDate(),
		EndDate:      s.EndDate(),
		Amount:       s.Amount(),
		Status:       string(s.StoredStatus()),
		Deleted:      s.Deleted(),
		DeletedAt:    s.DeletedAt(),
		SubscriberID: subscriberID,
	}
}

func toSubscriptionDomain(m *SubscriptionModel) *subscriptionDomain.Subscription {
	var subscriberID int64
	if m.SubscriberID != nil {
		subscriberID = *m.SubscriberID
	}
	var owner *subscriberDomain.Subscriber
	if m.Subscriber != nil {
		owner = toSubscriberDomain(m.Subscriber)
	}
	return subscriptionDomain.Reconstruct(
		m.ID, m.StartDate.UTC(), m.EndDate.UTC(), m.Amount,
		subscriptionDomain.Status(m.Status), m.Deleted, m.DeletedAt,
		subscriberID, owner,
	)
}
