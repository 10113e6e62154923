package subscriber

import "context"

// SubscriberRepository defines persistence operations for subscribers.
type SubscriberRepository interface {
	// Save inserts a new subscriber and assigns its id. Returns ErrCodeTaken or
	// ErrEmailTaken when a unique constraint fires.
	Save(ctx context.Context, s *Subscriber) error

	// Update persists contact fields, code and deletion state.
	Update(ctx context.Context, s *Subscriber) error

	// FindByID returns a subscriber regardless of deletion state.
	FindByID(ctx context.Context, id int64) (*Subscriber, error)

	// FindActiveByID returns a non-deleted subscriber.
	FindActiveByID(ctx context.Context, id int64) (*Subscriber, error)

	// ExistsByCode checks every stored code, soft-deleted subscribers included.
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// EmailInUse reports whether a non-deleted subscriber other than excludeID
	// holds the email. Pass 0 to exclude nobody.
	EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error)

	// ListActive returns non-deleted subscribers in storage order, optionally
	// narrowed by free-text search.
	ListActive(ctx context.Context, search string) ([]*Subscriber, error)

	// ListWithoutCode returns every subscriber that has no code yet.
	ListWithoutCode(ctx context.Context) ([]*Subscriber, error)

	// CountActive returns the number of non-deleted subscribers.
	CountActive(ctx context.Context) (int64, error)

	// Delete permanently removes the row.
	Delete(ctx context.Context, id int64) error
}
