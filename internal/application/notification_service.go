package application

import (
	"context"
	"sort"
	"time"

	"github.com/subtrack/service-subscription/internal/domain/calendar"
	"github.com/subtrack/service-subscription/internal/domain/uow"
)

// Digest window around the reference date, in days.
const (
	digestDaysBefore = 2
	digestDaysAfter  = 14
)

// UnknownSubscriber is shown when a subscription has no loadable owner.
const UnknownSubscriber = "Unknown"

// NotificationService computes the daily renewal and expiry digest.
type NotificationService struct {
	store uow.Store
	now   func() time.Time
}

// NewNotificationService creates a new NotificationService. A nil clock defaults to time.Now.
func NewNotificationService(store uow.Store, now func() time.Time) *NotificationService {
	if now == nil {
		now = time.Now
	}
	return &NotificationService{store: store, now: now}
}

// Today returns the current calendar date according to the service clock.
func (s *NotificationService) Today() time.Time {
	return calendar.Today(s.now)
}

// Daily lists live subscriptions ending between two days before and fourteen
// days after referenceDate, soonest first.
func (s *NotificationService) Daily(ctx context.Context, referenceDate time.Time) ([]*NotificationDTO, error) {
	ref := calendar.Date(referenceDate)
	subs, err := s.store.Subscriptions().FindEndingBetween(ctx,
		calendar.AddDays(ref, -digestDaysBefore),
		calendar.AddDays(ref, digestDaysAfter),
	)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].EndDate().Before(subs[j].EndDate())
	})

	out := make([]*NotificationDTO, len(subs))
	for i, sub := range subs {
		days := sub.DaysUntilEnd(ref)
		n := &NotificationDTO{
			SubscriptionID: sub.ID(),
			SubscriberName: UnknownSubscriber,
			EndDate:        sub.EndDate().Format(calendar.Layout),
			DaysUntilEnd:   days,
			Status:         string(sub.CurrentStatus(ref)),
		}
		if owner := sub.Subscriber(); owner != nil {
			id := owner.ID()
			n.SubscriberID = &id
			n.SubscriberName = owner.FullName()
		}
		out[i] = n
	}
	return out, nil
}
