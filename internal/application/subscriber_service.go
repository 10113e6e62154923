package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	subscriberDomain "github.com/subtrack/service-subscription/internal/domain/subscriber"
	"github.com/subtrack/service-subscription/internal/domain/uow"
	"github.com/subtrack/service-subscription/internal/platform/metrics"
)

// SubscriberService handles subscriber use cases.
type SubscriberService struct {
	store   uow.Store
	codes   *CodeGenerator
	guard   *AdminPinGuard
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewSubscriberService creates a new SubscriberService. A nil clock defaults to time.Now.
func NewSubscriberService(
	store uow.Store,
	codes *CodeGenerator,
	guard *AdminPinGuard,
	m *metrics.Metrics,
	logger *zap.Logger,
	now func() time.Time,
) *SubscriberService {
	if now == nil {
		now = time.Now
	}
	return &SubscriberService{store: store, codes: codes, guard: guard, metrics: m, logger: logger, now: now}
}

// CreateSubscriber registers a subscriber and assigns a fresh code. An insert
// that loses a code race is retried with a new code in a new transaction.
func (s *SubscriberService) CreateSubscriber(ctx context.Context, req SubscriberRequest) (*SubscriberDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		var sub *subscriberDomain.Subscriber
		err := s.store.RunInTx(ctx, func(tx uow.Store) error {
			repo := tx.Subscribers()
			inUse, err := repo.EmailInUse(ctx, req.Email, 0)
			if err != nil {
				return err
			}
			if inUse {
				return subscriberDomain.ErrEmailTaken
			}

			code, err := s.codes.Generate(ctx, repo)
			if err != nil {
				return err
			}
			sub = subscriberDomain.NewSubscriber(req.FirstName, req.LastName, req.Email, req.Phone, code, s.now())
			return repo.Save(ctx, sub)
		})

		if errors.Is(err, subscriberDomain.ErrCodeTaken) {
			s.codes.Collision(sub.Code(), attempt)
			if attempt < s.codes.MaxAttempts() {
				continue
			}
			return nil, ErrCodeSpaceExhausted
		}
		if err != nil {
			return nil, err
		}

		s.metrics.SubscribersCreated.Inc()
		s.logger.Info("subscriber created",
			zap.Int64("subscriber_id", sub.ID()),
			zap.String("code", sub.Code()),
		)
		return toSubscriberDTO(sub), nil
	}
}

// UpdateSubscriber replaces name, email and phone. Code and deletion state never change here.
func (s *SubscriberService) UpdateSubscriber(ctx context.Context, id int64, req SubscriberRequest) (*SubscriberDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var sub *subscriberDomain.Subscriber
	err := s.store.RunInTx(ctx, func(tx uow.Store) error {
		repo := tx.Subscribers()
		var err error
		sub, err = repo.FindActiveByID(ctx, id)
		if err != nil {
			return err
		}
		inUse, err := repo.EmailInUse(ctx, req.Email, id)
		if err != nil {
			return err
		}
		if inUse {
			return subscriberDomain.ErrEmailTaken
		}
		sub.UpdateContact(req.FirstName, req.LastName, req.Email, req.Phone)
		return repo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscriber updated", zap.Int64("subscriber_id", id))
	return toSubscriberDTO(sub), nil
}

// SoftDeleteSubscriber marks the subscriber and all its live subscriptions
// deleted with one shared timestamp, atomically.
func (s *SubscriberService) SoftDeleteSubscriber(ctx context.Context, id int64) error {
	var cascaded int
	err := s.store.RunInTx(ctx, func(tx uow.Store) error {
		sub, err := tx.Subscribers().FindActiveByID(ctx, id)
		if err != nil {
			return err
		}
		owned, err := tx.Subscriptions().FindActiveBySubscriberID(ctx, id)
		if err != nil {
			return err
		}

		at := s.now()
		for _, o := range owned {
			if err := o.SoftDelete(at); err != nil {
				return err
			}
			if err := tx.Subscriptions().Update(ctx, o); err != nil {
				return fmt.Errorf("failed to soft delete subscription %d: %w", o.ID(), err)
			}
		}
		if err := sub.SoftDelete(at); err != nil {
			return err
		}
		cascaded = len(owned)
		return tx.Subscribers().Update(ctx, sub)
	})
	if err != nil {
		return err
	}

	s.metrics.SoftDeletes.WithLabelValues("subscriber").Inc()
	s.metrics.SoftDeletes.WithLabelValues("subscription").Add(float64(cascaded))
	s.logger.Info("subscriber soft deleted",
		zap.Int64("subscriber_id", id),
		zap.Int("subscriptions", cascaded),
	)
	return nil
}

// PurgeSubscriber permanently removes a subscriber, deleted or not, together
// with every subscription it ever owned.
func (s *SubscriberService) PurgeSubscriber(ctx context.Context, id int64, adminPin string) error {
	if err := s.guard.ValidateOrThrow(adminPin); err != nil {
		s.metrics.PurgesRejected.Inc()
		s.logger.Warn("subscriber purge rejected", zap.Int64("subscriber_id", id))
		return err
	}

	var removed int64
	err := s.store.RunInTx(ctx, func(tx uow.Store) error {
		if _, err := tx.Subscribers().FindByID(ctx, id); err != nil {
			return err
		}
		n, err := tx.Subscriptions().DeleteBySubscriberID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to purge subscriptions: %w", err)
		}
		removed = n
		return tx.Subscribers().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.metrics.Purges.WithLabelValues("subscriber").Inc()
	s.metrics.Purges.WithLabelValues("subscription").Add(float64(removed))
	s.logger.Warn("subscriber purged",
		zap.Int64("subscriber_id", id),
		zap.Int64("subscriptions", removed),
	)
	return nil
}

// ListSubscribers returns non-deleted subscribers in storage order.
func (s *SubscriberService) ListSubscribers(ctx context.Context, search string) ([]*SubscriberDTO, error) {
	subs, err := s.store.Subscribers().ListActive(ctx, search)
	if err != nil {
		return nil, err
	}
	dtos := make([]*SubscriberDTO, len(subs))
	for i, sub := range subs {
		dtos[i] = toSubscriberDTO(sub)
	}
	return dtos, nil
}

// GetSubscriber returns one non-deleted subscriber.
func (s *SubscriberService) GetSubscriber(ctx context.Context, id int64) (*SubscriberDTO, error) {
	sub, err := s.store.Subscribers().FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSubscriberDTO(sub), nil
}

// AssignMissingCodes gives a code to every subscriber stored without one.
// Existing codes are left alone.
func (s *SubscriberService) AssignMissingCodes(ctx context.Context) (int, error) {
	var assigned int
	err := s.store.RunInTx(ctx, func(tx uow.Store) error {
		repo := tx.Subscribers()
		missing, err := repo.ListWithoutCode(ctx)
		if err != nil {
			return err
		}
		for _, sub := range missing {
			code, err := s.codes.Generate(ctx, repo)
			if err != nil {
				return err
			}
			if err := sub.AssignCode(code); err != nil {
				return err
			}
			if err := repo.Update(ctx, sub); err != nil {
				return fmt.Errorf("failed to assign code to subscriber %d: %w", sub.ID(), err)
			}
		}
		assigned = len(missing)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if assigned > 0 {
		s.logger.Info("assigned missing subscriber codes", zap.Int("count", assigned))
	}
	return assigned, nil
}
