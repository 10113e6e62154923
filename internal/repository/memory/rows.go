package memory

import (
	"time"

	"github.com/subtrack/service-subscription/internal/domain/subscriber"
	"github.com/subtrack/service-subscription/internal/domain/subscription"
)

func toSubscriberRow(s *subscriber.Subscriber) subscriberRow {
	return subscriberRow{
		id:        s.ID(),
		firstName: s.FirstName(),
		lastName:  s.LastName(),
		email:     s.Email(),
		code:      s.Code(),
		phone:     copyString(s.Phone()),
		createdAt: s.CreatedAt(),
		deleted:   s.Deleted(),
		deletedAt: copyTime(s.DeletedAt()),
	}
}

func (r subscriberRow) toDomain() *subscriber.Subscriber {
	return subscriber.Reconstruct(
		r.id, r.firstName, r.lastName, r.email, r.code,
		copyString(r.phone), r.createdAt, r.deleted, copyTime(r.deletedAt),
	)
}

func toSubscriptionRow(s *subscription.Subscription) subscriptionRow {
	return subscriptionRow{
		id:           s.ID(),
		startDate:    s.StartDate(),
		endDate:      s.EndDate(),
		amount:       s.Amount(),
		status:       s.StoredStatus(),
		deleted:      s.Deleted(),
		deletedAt:    copyTime(s.DeletedAt()),
		subscriberID: s.SubscriberID(),
	}
}

func (r subscriptionRow) toDomain(st *state) *subscription.Subscription {
	var owner *subscriber.Subscriber
	if row, ok := st.subscribers[r.subscriberID]; ok {
		owner = row.toDomain()
	}
	return subscription.Reconstruct(
		r.id, r.startDate, r.endDate, r.amount, r.status,
		r.deleted, copyTime(r.deletedAt), r.subscriberID, owner,
	)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
