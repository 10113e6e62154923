// Package uow defines the transactional boundary application services run in.
package uow

import (
	"context"

	"github.com/subtrack/service-subscription/internal/domain/subscriber"
	"github.com/subtrack/service-subscription/internal/domain/subscription"
)

// Store hands out repositories and runs units of work atomically.
// Repositories obtained from the tx argument of RunInTx share one transaction;
// if fn returns an error nothing it wrote is kept.
type Store interface {
	Subscribers() subscriber.SubscriberRepository
	Subscriptions() subscription.SubscriptionRepository
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}
