package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/subtrack/service-subscription/internal/domain/subscriber"
	"github.com/subtrack/service-subscription/internal/domain/subscription"
	"github.com/subtrack/service-subscription/internal/domain/uow"
)

// GormStore implements uow.Store on top of a gorm connection.
type GormStore struct {
	db            *gorm.DB
	subscribers   *GormSubscriberRepository
	subscriptions *GormSubscriptionRepository
}

// NewGormStore creates a store bound to db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:            db,
		subscribers:   NewGormSubscriberRepository(db),
		subscriptions: NewGormSubscriptionRepository(db),
	}
}

// Subscribers returns the subscriber repository.
func (s *GormStore) Subscribers() subscriber.SubscriberRepository { return s.subscribers }

// Subscriptions returns the subscription repository.
func (s *GormStore) Subscriptions() subscription.SubscriptionRepository { return s.subscriptions }

// RunInTx runs fn inside a database transaction.
func (s *GormStore) RunInTx(ctx context.Context, fn func(tx uow.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

// PingContext checks the underlying connection for readiness probes.
func (s *GormStore) PingContext(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates or updates the tables used by the store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&SubscriberModel{}, &SubscriptionModel{})
}
