package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/subtrack/service-subscription/internal/domain/calendar"
	"github.com/subtrack/service-subscription/internal/domain/subscriber"
	"github.com/subtrack/service-subscription/internal/platform/domain"
)

// Terms are the caller-supplied fields of a subscription.
type Terms struct {
	StartDate    time.Time
	EndDate      time.Time
	Amount       decimal.Decimal
	SubscriberID int64
}

// Subscription is the aggregate root for a time-bound subscription.
type Subscription struct {
	id           int64
	startDate    time.Time
	endDate      time.Time
	amount       decimal.Decimal
	status       Status
	deleted      bool
	deletedAt    *time.Time
	subscriberID int64
	subscriber   *subscriber.Subscriber
}

// NewSubscription creates a subscription owned by owner with its status
// resolved against today.
func NewSubscription(owner *subscriber.Subscriber, t Terms, today time.Time) *Subscription {
	s := &Subscription{}
	s.apply(owner, t, today)
	return s
}

// Reconstruct rebuilds a Subscription from persistence. owner may be nil when
// the subscriber row was not loaded or no longer exists.
func Reconstruct(id int64, startDate, endDate time.Time, amount decimal.Decimal, status Status, deleted bool, deletedAt *time.Time, subscriberID int64, owner *subscriber.Subscriber) *Subscription {
	return &Subscription{
		id: id, startDate: startDate, endDate: endDate, amount: amount,
		status: status, deleted: deleted, deletedAt: deletedAt,
		subscriberID: subscriberID, subscriber: owner,
	}
}

// Revise replaces the terms, possibly moving the subscription to another owner,
// and refreshes the stored status.
func (s *Subscription) Revise(owner *subscriber.Subscriber, t Terms, today time.Time) {
	s.apply(owner, t, today)
}

func (s *Subscription) apply(owner *subscriber.Subscriber, t Terms, today time.Time) {
	s.startDate = calendar.Date(t.StartDate)
	s.endDate = calendar.Date(t.EndDate)
	s.amount = t.Amount
	s.subscriberID = owner.ID()
	s.subscriber = owner
	s.status = ResolveStatus(&s.endDate, today)
}

// SoftDelete marks the subscription deleted at the given instant.
func (s *Subscription) SoftDelete(at time.Time) error {
	if s.deleted {
		return domain.NewInvalidStateError("SOFT_DELETED", "SOFT_DELETED")
	}
	s.deleted = true
	s.deletedAt = &at
	return nil
}

// CurrentStatus computes the status against a reference date without
// touching the stored value.
func (s *Subscription) CurrentStatus(referenceDate time.Time) Status {
	return ResolveStatus(&s.endDate, referenceDate)
}

// DaysUntilEnd returns the signed calendar days from referenceDate to the end date.
func (s *Subscription) DaysUntilEnd(referenceDate time.Time) int {
	return calendar.DaysBetween(referenceDate, s.endDate)
}

// SubscriberDeleted reports whether the owning subscriber is soft-deleted.
func (s *Subscription) SubscriberDeleted() bool {
	return s.subscriber != nil && s.subscriber.Deleted()
}

// SetID is called by the store once the row has an identity.
func (s *Subscription) SetID(id int64) { s.id = id }

// Getters.
func (s *Subscription) ID() int64                          { return s.id }
func (s *Subscription) StartDate() time.Time               { return s.startDate }
func (s *Subscription) EndDate() time.Time                 { return s.endDate }
func (s *Subscription) Amount() decimal.Decimal            { return s.amount }
func (s *Subscription) StoredStatus() Status               { return s.status }
func (s *Subscription) Deleted() bool                      { return s.deleted }
func (s *Subscription) DeletedAt() *time.Time              { return s.deletedAt }
func (s *Subscription) SubscriberID() int64                { return s.subscriberID }
func (s *Subscription) Subscriber() *subscriber.Subscriber { return s.subscriber }
