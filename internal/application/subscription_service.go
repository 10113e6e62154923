package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/subtrack/service-subscription/internal/domain/calendar"
	subDomain "github.com/subtrack/service-subscription/internal/domain/subscription"
	"github.com/subtrack/service-subscription/internal/domain/uow"
	"github.com/subtrack/service-subscription/internal/platform/metrics"
)

// SubscriptionService handles subscription use cases.
type SubscriptionService struct {
	store   uow.Store
	guard   *AdminPinGuard
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService. A nil clock defaults to time.Now.
func NewSubscriptionService(
	store uow.Store,
	guard *AdminPinGuard,
	m *metrics.Metrics,
	logger *zap.Logger,
	now func() time.Time,
) *SubscriptionService {
	if now == nil {
		now = time.Now
	}
	return &SubscriptionService{store: store, guard: guard, metrics: m, logger: logger, now: now}
}

// CreateSubscription stores a subscription for a live subscriber. Any status
// sent by the caller is ignored in favour of the computed one.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionDTO, error) {
	terms, err := req.Terms()
	if err != nil {
		return nil, err
	}

	today := calendar.Today(s.now)
	var sub *subDomain.Subscription
	err = s.store.RunInTx(ctx, func(tx uow.Store) error {
		owner, err := tx.Subscribers().FindActiveByID(ctx, terms.SubscriberID)
		if err != nil {
			return err
		}
		sub = subDomain.NewSubscription(owner, terms, today)
		return tx.Subscriptions().Save(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription created",
		zap.Int64("subscription_id", sub.ID()),
		zap.Int64("subscriber_id", sub.SubscriberID()),
		zap.String("status", string(sub.StoredStatus())),
	)
	return toSubscriptionDTO(sub, sub.StoredStatus()), nil
}

// UpdateSubscription replaces the terms of a live subscription, possibly
// moving it to another live subscriber.
func (s *SubscriptionService) UpdateSubscription(ctx context.Context, id int64, req SubscriptionRequest) (*SubscriptionDTO, error) {
	terms, err := req.Terms()
	if err != nil {
		return nil, err
	}

	today := calendar.Today(s.now)
	var sub *subDomain.Subscription
	err = s.store.RunInTx(ctx, func(tx uow.Store) error {
		var err error
		sub, err = tx.Subscriptions().FindActiveByID(ctx, id)
		if err != nil {
			return err
		}
		owner, err := tx.Subscribers().FindActiveByID(ctx, terms.SubscriberID)
		if err != nil {
			return err
		}
		sub.Revise(owner, terms, today)
		return tx.Subscriptions().Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription updated",
		zap.Int64("subscription_id", id),
		zap.String("status", string(sub.StoredStatus())),
	)
	return toSubscriptionDTO(sub, sub.StoredStatus()), nil
}

// SoftDeleteSubscription marks one live subscription deleted.
func (s *SubscriptionService) SoftDeleteSubscription(ctx context.Context, id int64) error {
	err := s.store.RunInTx(ctx, func(tx uow.Store) error {
		sub, err := tx.Subscriptions().FindActiveByID(ctx, id)
		if err != nil {
			return err
		}
		if err := sub.SoftDelete(s.now()); err != nil {
			return err
		}
		return tx.Subscriptions().Update(ctx, sub)
	})
	if err != nil {
		return err
	}

	s.metrics.SoftDeletes.WithLabelValues("subscription").Inc()
	s.logger.Info("subscription soft deleted", zap.Int64("subscription_id", id))
	return nil
}

// PurgeSubscription permanently removes a subscription, deleted or not.
func (s *SubscriptionService) PurgeSubscription(ctx context.Context, id int64, adminPin string) error {
	if err := s.guard.ValidateOrThrow(adminPin); err != nil {
		s.metrics.PurgesRejected.Inc()
		s.logger.Warn("subscription purge rejected", zap.Int64("subscription_id", id))
		return err
	}

	err := s.store.RunInTx(ctx, func(tx uow.Store) error {
		if _, err := tx.Subscriptions().FindByID(ctx, id); err != nil {
			return err
		}
		return tx.Subscriptions().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.metrics.Purges.WithLabelValues("subscription").Inc()
	s.logger.Warn("subscription purged", zap.Int64("subscription_id", id))
	return nil
}

// GetSubscription returns a live subscription with its status computed for today.
func (s *SubscriptionService) GetSubscription(ctx context.Context, id int64) (*SubscriptionDTO, error) {
	sub, err := s.store.Subscriptions().FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSubscriptionDTO(sub, sub.CurrentStatus(calendar.Today(s.now))), nil
}
