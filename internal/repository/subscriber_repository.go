package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	subscriberDomain "github.com/subtrack/service-subscription/internal/domain/subscriber"
	"github.com/subtrack/service-subscription/internal/platform/domain"
)

// Unique index names; translateUniqueViolation keys on them.
const (
	subscriberCodeIndex        = "idx_subscribers_code"
	subscriberActiveEmailIndex = "idx_subscribers_email_active"
)

const pgUniqueViolation = "23505"

// SubscriberModel is the GORM model for the subscribers table.
type SubscriberModel struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"`
	FirstName string     `gorm:"type:varchar(100);not null"`
	LastName  string     `gorm:"type:varchar(100);not null"`
	Email     string     `gorm:"type:varchar(255);not null;index:idx_subscribers_email_active,unique,where:is_deleted = false"`
	Code      *string    `gorm:"type:varchar(32);uniqueIndex:idx_subscribers_code"`
	Phone     *string    `gorm:"type:varchar(50)"`
	CreatedAt time.Time  `gorm:"type:date;not null"`
	Deleted   bool       `gorm:"column:is_deleted;not null;default:false"`
	DeletedAt *time.Time `gorm:"type:timestamptz"`
}

// TableName sets the table name.
func (SubscriberModel) TableName() string { return "subscribers" }

// GormSubscriberRepository implements SubscriberRepository using GORM.
type GormSubscriberRepository struct {
	db *gorm.DB
}

// NewGormSubscriberRepository creates a new GormSubscriberRepository.
func NewGormSubscriberRepository(db *gorm.DB) *GormSubscriberRepository {
	return &GormSubscriberRepository{db: db}
}

// Save inserts a new subscriber.
func (r *GormSubscriberRepository) Save(ctx context.Context, s *subscriberDomain.Subscriber) error {
	model := toSubscriberModel(s)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translateUniqueViolation(err)
	}
	s.SetID(model.ID)
	return nil
}

// Update persists every mutable column of a subscriber.
func (r *GormSubscriberRepository) Update(ctx context.Context, s *subscriberDomain.Subscriber) error {
	model := toSubscriberModel(s)
	result := r.db.WithContext(ctx).
		Model(&SubscriberModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"first_name": model.FirstName,
			"last_name":  model.LastName,
			"email":      model.Email,
			"code":       model.Code,
			"phone":      model.Phone,
			"is_deleted": model.Deleted,
			"deleted_at": model.DeletedAt,
		})
	if result.Error != nil {
		return translateUniqueViolation(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Subscriber", strconv.FormatInt(model.ID, 10))
	}
	return nil
}

// FindByID returns a subscriber regardless of deletion state.
func (r *GormSubscriberRepository) FindByID(ctx context.Context, id int64) (*subscriberDomain.Subscriber, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("id = ?", id), id)
}

// FindActiveByID returns a non-deleted subscriber.
func (r *GormSubscriberRepository) FindActiveByID(ctx context.Context, id int64) (*subscriberDomain.Subscriber, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false), id)
}

func (r *GormSubscriberRepository) first(ctx context.Context, q *gorm.DB, id int64) (*subscriberDomain.Subscriber, error) {
	var model SubscriberModel
	if err := q.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Subscriber", strconv.FormatInt(id, 10))
		}
		return nil, err
	}
	return toSubscriberDomain(&model), nil
}

// ExistsByCode checks all rows, soft-deleted ones included.
func (r *GormSubscriberRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&SubscriberModel{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// EmailInUse checks non-deleted subscribers other than excludeID.
func (r *GormSubscriberRepository) EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&SubscriberModel{}).
		Where("email = ? AND is_deleted = ? AND id <> ?", email, false, excludeID).
		Count(&count).Error
	return count > 0, err
}

// ListActive returns non-deleted subscribers ordered by id.
func (r *GormSubscriberRepository) ListActive(ctx context.Context, search string) ([]*subscriberDomain.Subscriber, error) {
	q := r.db.WithContext(ctx).Where("is_deleted = ?", false)
	if strings.TrimSpace(search) != "" {
		q = q.Where("LOWER(first_name || ' ' || last_name || ' ' || email || ' ' || COALESCE(code, '')) LIKE ?",
			"%"+escapeLike(strings.ToLower(search))+"%")
	}

	var models []SubscriberModel
	if err := q.Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	return toSubscriberDomains(models), nil
}

// ListWithoutCode returns subscribers whose code is null or blank.
func (r *GormSubscriberRepository) ListWithoutCode(ctx context.Context) ([]*subscriberDomain.Subscriber, error) {
	var models []SubscriberModel
	if err := r.db.WithContext(ctx).Where("code IS NULL OR code = ''").Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	return toSubscriberDomains(models), nil
}

// CountActive returns the number of non-deleted subscribers.
func (r *GormSubscriberRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&SubscriberModel{}).Where("is_deleted = ?", false).Count(&count).Error
	return count, err
}

// Delete permanently removes a subscriber row.
func (r *GormSubscriberRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&SubscriberModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Subscriber", strconv.FormatInt(id, 10))
	}
	return nil
}

// translateUniqueViolation maps Postgres unique violations on subscriber
// indexes to domain errors.
func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case subscriberCodeIndex:
		return subscriberDomain.ErrCodeTaken
	case subscriberActiveEmailIndex:
		return subscriberDomain.ErrEmailTaken
	default:
		return domain.NewConflictError("duplicate value violates " + pgErr.ConstraintName)
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func toSubscriberModel(s *subscriberDomain.Subscriber) SubscriberModel {
	var code *string
	if s.Code() != "" {
		c := s.Code()
		code = &c
	}
	return SubscriberModel{
		ID: s.ID(), FirstName: s.FirstName(), LastName: s.LastName(),
		Email: s.Email(), Code: code, Phone: s.Phone(),
		CreatedAt: s.CreatedAt(), Deleted: s.Deleted(), DeletedAt: s.DeletedAt(),
	}
}

func toSubscriberDomain(m *SubscriberModel) *subscriberDomain.Subscriber {
	var code string
	if m.Code != nil {
		code = *m.Code
	}
	return subscriberDomain.Reconstruct(
		m.ID, m.FirstName, m.LastName, m.Email, code, m.Phone,
		m.CreatedAt, m.Deleted, m.DeletedAt,
	)
}

func toSubscriberDomains(models []SubscriberModel) []*subscriberDomain.Subscriber {
	out := make([]*subscriberDomain.Subscriber, len(models))
	for i := range models {
		out[i] = toSubscriberDomain(&models[i])
	}
	return out
}
