package application

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subtrack/service-subscription/internal/domain/calendar"
	subDomain "github.com/subtrack/service-subscription/internal/domain/subscription"
	"github.com/subtrack/service-subscription/internal/domain/uow"
)

// Deletion visibility targets for history queries.
const (
	DeletedTargetSubscription = "SUBSCRIPTION"
	DeletedTargetSubscriber   = "SUBSCRIBER"
	DeletedTargetAny          = "ANY"
)

// ListFilter narrows the live subscription listing. Nil fields are ignored.
type ListFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	Status       *subDomain.Status
	SubscriberID *int64
	Search       string
}

// HistoryFilter narrows the history listing. ExactDate overrides Year and Month.
type HistoryFilter struct {
	Year          *int
	Month         *int
	ExactDate     *time.Time
	Search        string
	Status        *subDomain.Status
	Amount        *decimal.Decimal
	DeletedTarget string
}

// QueryService answers read-only subscription queries. Statuses are
// recomputed for the current date on every call and never written back.
type QueryService struct {
	store uow.Store
	now   func() time.Time
}

// NewQueryService creates a new QueryService. A nil clock defaults to time.Now.
func NewQueryService(store uow.Store, now func() time.Time) *QueryService {
	if now == nil {
		now = time.Now
	}
	return &QueryService{store: store, now: now}
}

// ListFiltered returns live subscriptions of live subscribers matching f.
func (q *QueryService) ListFiltered(ctx context.Context, f ListFilter) ([]*SubscriptionDTO, error) {
	subs, err := q.store.Subscriptions().ListVisible(ctx)
	if err != nil {
		return nil, err
	}

	today := calendar.Today(q.now)
	out := make([]*SubscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		status := sub.CurrentStatus(today)
		if f.StartDate != nil && sub.StartDate().Before(calendar.Date(*f.StartDate)) {
			continue
		}
		if f.EndDate != nil && sub.EndDate().After(calendar.Date(*f.EndDate)) {
			continue
		}
		if f.Status != nil && status != *f.Status {
			continue
		}
		if f.SubscriberID != nil && sub.SubscriberID() != *f.SubscriberID {
			continue
		}
		if !matchesSearch(sub, f.Search) {
			continue
		}
		out = append(out, toSubscriptionDTO(sub, status))
	}
	return out, nil
}

// History returns subscriptions sorted by start date, newest first. With a
// blank DeletedTarget only live records are considered; any other value scans
// every stored record and applies the deletion visibility rule.
func (q *QueryService) History(ctx context.Context, f HistoryFilter) ([]*SubscriptionDTO, error) {
	target := strings.ToUpper(strings.TrimSpace(f.DeletedTarget))

	var (
		subs []*subDomain.Subscription
		err  error
	)
	if target == "" {
		subs, err = q.store.Subscriptions().ListVisible(ctx)
	} else {
		subs, err = q.store.Subscriptions().ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	today := calendar.Today(q.now)
	kept := make([]*subDomain.Subscription, 0, len(subs))
	statuses := make(map[int64]subDomain.Status, len(subs))
	for _, sub := range subs {
		status := sub.CurrentStatus(today)
		if !matchesDate(sub.StartDate(), f) {
			continue
		}
		if !matchesSearch(sub, f.Search) {
			continue
		}
		if f.Status != nil && status != *f.Status {
			continue
		}
		if f.Amount != nil && !sub.Amount().Equal(*f.Amount) {
			continue
		}
		if !deletionVisible(sub, target) {
			continue
		}
		statuses[sub.ID()] = status
		kept = append(kept, sub)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].StartDate().After(kept[j].StartDate())
	})

	out := make([]*SubscriptionDTO, len(kept))
	for i, sub := range kept {
		out[i] = toSubscriptionDTO(sub, statuses[sub.ID()])
	}
	return out, nil
}

// Stats counts live subscriptions per current status and sums their amounts.
func (q *QueryService) Stats(ctx context.Context) (*StatsDTO, error) {
	subs, err := q.store.Subscriptions().ListVisible(ctx)
	if err != nil {
		return nil, err
	}
	activeSubscribers, err := q.store.Subscribers().CountActive(ctx)
	if err != nil {
		return nil, err
	}

	today := calendar.Today(q.now)
	stats := &StatsDTO{ActiveSubscribers: activeSubscribers, TotalAmount: decimal.Zero}
	for _, sub := range subs {
		switch sub.CurrentStatus(today) {
		case subDomain.StatusActive:
			stats.Active++
		case subDomain.StatusRenewalRequired:
			stats.RenewalRequired++
		case subDomain.StatusExpired:
			stats.Expired++
		}
		stats.TotalAmount = stats.TotalAmount.Add(sub.Amount())
	}
	return stats, nil
}

// matchesSearch keeps subscriptions without a loadable owner; there is
// nothing to search them by.
func matchesSearch(sub *subDomain.Subscription, search string) bool {
	if strings.TrimSpace(search) == "" {
		return true
	}
	owner := sub.Subscriber()
	return owner == nil || owner.MatchesSearch(search)
}

func matchesDate(start time.Time, f HistoryFilter) bool {
	if f.ExactDate != nil {
		return start.Equal(calendar.Date(*f.ExactDate))
	}
	if f.Year != nil && start.Year() != *f.Year {
		return false
	}
	if f.Month != nil && int(start.Month()) != *f.Month {
		return false
	}
	return true
}

// deletionVisible applies the history deletion filter to a normalized target.
func deletionVisible(sub *subDomain.Subscription, target string) bool {
	subscriptionDeleted := sub.Deleted()
	subscriberDeleted := sub.SubscriberDeleted()
	switch target {
	case DeletedTargetSubscription:
		return subscriptionDeleted
	case DeletedTargetSubscriber:
		return subscriberDeleted
	case DeletedTargetAny:
		return subscriptionDeleted || subscriberDeleted
	default:
		return !subscriptionDeleted && !subscriberDeleted
	}
}
