package subscription

import (
	"context"
	"time"
)

// SubscriptionRepository defines persistence operations for subscriptions.
// Every returned subscription carries its owning subscriber when one exists.
type SubscriptionRepository interface {
	Save(ctx context.Context, s *Subscription) error
	Update(ctx context.Context, s *Subscription) error

	// FindByID returns a subscription regardless of deletion state.
	FindByID(ctx context.Context, id int64) (*Subscription, error)

	// FindActiveByID returns a non-deleted subscription.
	FindActiveByID(ctx context.Context, id int64) (*Subscription, error)

	// FindActiveBySubscriberID returns the owner's non-deleted subscriptions.
	FindActiveBySubscriberID(ctx context.Context, subscriberID int64) ([]*Subscription, error)

	// ListVisible returns non-deleted subscriptions whose subscriber is non-deleted.
	ListVisible(ctx context.Context) ([]*Subscription, error)

	// ListAll returns every stored subscription, deleted or not.
	ListAll(ctx context.Context) ([]*Subscription, error)

	// FindEndingBetween returns visible subscriptions whose end date lies in
	// [from, to], both inclusive.
	FindEndingBetween(ctx context.Context, from, to time.Time) ([]*Subscription, error)

	// Delete permanently removes one subscription.
	Delete(ctx context.Context, id int64) error

	// DeleteBySubscriberID permanently removes every subscription of the owner,
	// deleted or not, and returns how many rows went away.
	DeleteBySubscriberID(ctx context.Context, subscriberID int64) (int64, error)
}
