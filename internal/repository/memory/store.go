// Package memory provides an in-process uow.Store used by tests and by the
// memory store driver.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subtrack/service-subscription/internal/domain/subscriber"
	"github.com/subtrack/service-subscription/internal/domain/subscription"
	"github.com/subtrack/service-subscription/internal/domain/uow"
	"github.com/subtrack/service-subscription/internal/platform/domain"
)

type subscriberRow struct {
	id        int64
	firstName string
	lastName  string
	email     string
	code      string
	phone     *string
	createdAt time.Time
	deleted   bool
	deletedAt *time.Time
}

type subscriptionRow struct {
	id           int64
	startDate    time.Time
	endDate      time.Time
	amount       decimal.Decimal
	status       subscription.Status
	deleted      bool
	deletedAt    *time.Time
	subscriberID int64
}

type state struct {
	subscribers      map[int64]subscriberRow
	subscriptions    map[int64]subscriptionRow
	nextSubscriberID int64
	nextSubscription int64
}

func (s *state) clone() *state {
	c := &state{
		subscribers:      make(map[int64]subscriberRow, len(s.subscribers)),
		subscriptions:    make(map[int64]subscriptionRow, len(s.subscriptions)),
		nextSubscriberID: s.nextSubscriberID,
		nextSubscription: s.nextSubscription,
	}
	for k, v := range s.subscribers {
		c.subscribers[k] = v
	}
	for k, v := range s.subscriptions {
		c.subscriptions[k] = v
	}
	return c
}

// Store keeps subscribers and subscriptions in maps guarded by one mutex.
// Transactions are serialized and roll back by restoring a snapshot.
type Store struct {
	mu    *sync.Mutex
	inTx  bool
	state *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		mu: &sync.Mutex{},
		state: &state{
			subscribers:   map[int64]subscriberRow{},
			subscriptions: map[int64]subscriptionRow{},
		},
	}
}

// Subscribers returns the subscriber repository.
func (s *Store) Subscribers() subscriber.SubscriberRepository { return &subscriberRepo{store: s} }

// Subscriptions returns the subscription repository.
func (s *Store) Subscriptions() subscription.SubscriptionRepository {
	return &subscriptionRepo{store: s}
}

// RunInTx runs fn with exclusive access; state is restored if fn fails.
func (s *Store) RunInTx(_ context.Context, fn func(tx uow.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	tx := &Store{mu: s.mu, inTx: true, state: s.state}
	if err := fn(tx); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

// PingContext always succeeds.
func (s *Store) PingContext(context.Context) error { return nil }

// locked runs f under the lock unless already inside a transaction.
func (s *Store) locked(f func(st *state) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return f(s.state)
}

type subscriberRepo struct {
	store *Store
}

func (r *subscriberRepo) Save(_ context.Context, sub *subscriber.Subscriber) error {
	return r.store.locked(func(st *state) error {
		if sub.Code() != "" && codeTaken(st, sub.Code(), 0) {
			return subscriber.ErrCodeTaken
		}
		if emailTaken(st, sub.Email(), 0) {
			return subscriber.ErrEmailTaken
		}
		st.nextSubscriberID++
		sub.SetID(st.nextSubscriberID)
		st.subscribers[sub.ID()] = toSubscriberRow(sub)
		return nil
	})
}

func (r *subscriberRepo) Update(_ context.Context, sub *subscriber.Subscriber) error {
	return r.store.locked(func(st *state) error {
		if _, ok := st.subscribers[sub.ID()]; !ok {
			return domain.NewNotFoundError("Subscriber", strconv.FormatInt(sub.ID(), 10))
		}
		if sub.Code() != "" && codeTaken(st, sub.Code(), sub.ID()) {
			return subscriber.ErrCodeTaken
		}
		if !sub.Deleted() && emailTaken(st, sub.Email(), sub.ID()) {
			return subscriber.ErrEmailTaken
		}
		st.subscribers[sub.ID()] = toSubscriberRow(sub)
		return nil
	})
}

func (r *subscriberRepo) FindByID(_ context.Context, id int64) (*subscriber.Subscriber, error) {
	var out *subscriber.Subscriber
	err := r.store.locked(func(st *state) error {
		row, ok := st.subscribers[id]
		if !ok {
			return domain.NewNotFoundError("Subscriber", strconv.FormatInt(id, 10))
		}
		out = row.toDomain()
		return nil
	})
	return out, err
}

func (r *subscriberRepo) FindActiveByID(ctx context.Context, id int64) (*subscriber.Subscriber, error) {
	sub, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Deleted() {
		return nil, domain.NewNotFoundError("Subscriber", strconv.FormatInt(id, 10))
	}
	return sub, nil
}

func (r *subscriberRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	var found bool
	err := r.store.locked(func(st *state) error {
		found = codeTaken(st, code, 0)
		return nil
	})
	return found, err
}

func (r *subscriberRepo) EmailInUse(_ context.Context, email string, excludeID int64) (bool, error) {
	var found bool
	err := r.store.locked(func(st *state) error {
		found = emailTaken(st, email, excludeID)
		return nil
	})
	return found, err
}

func (r *subscriberRepo) ListActive(_ context.Context, search string) ([]*subscriber.Subscriber, error) {
	var out []*subscriber.Subscriber
	err := r.store.locked(func(st *state) error {
		for _, row := range sortedSubscribers(st) {
			if row.deleted {
				continue
			}
			sub := row.toDomain()
			if sub.MatchesSearch(search) {
				out = append(out, sub)
			}
		}
		return nil
	})
	return out, err
}

func (r *subscriberRepo) ListWithoutCode(_ context.Context) ([]*subscriber.Subscriber, error) {
	var out []*subscriber.Subscriber
	err := r.store.locked(func(st *state) error {
		for _, row := range sortedSubscribers(st) {
			if strings.TrimSpace(row.code) == "" {
				out = append(out, row.toDomain())
			}
		}
		return nil
	})
	return out, err
}

func (r *subscriberRepo) CountActive(_ context.Context) (int64, error) {
	var n int64
	err := r.store.locked(func(st *state) error {
		for _, row := range st.subscribers {
			if !row.deleted {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *subscriberRepo) Delete(_ context.Context, id int64) error {
	return r.store.locked(func(st *state) error {
		if _, ok := st.subscribers[id]; !ok {
			return domain.NewNotFoundError("Subscriber", strconv.FormatInt(id, 10))
		}
		delete(st.subscribers, id)
		return nil
	})
}

type subscriptionRepo struct {
	store *Store
}

func (r *subscriptionRepo) Save(_ context.Context, sub *subscription.Subscription) error {
	return r.store.locked(func(st *state) error {
		st.nextSubscription++
		sub.SetID(st.nextSubscription)
		st.subscriptions[sub.ID()] = toSubscriptionRow(sub)
		return nil
	})
}

func (r *subscriptionRepo) Update(_ context.Context, sub *subscription.Subscription) error {
	return r.store.locked(func(st *state) error {
		if _, ok := st.subscriptions[sub.ID()]; !ok {
			return domain.NewNotFoundError("Subscription", strconv.FormatInt(sub.ID(), 10))
		}
		st.subscriptions[sub.ID()] = toSubscriptionRow(sub)
		return nil
	})
}

func (r *subscriptionRepo) FindByID(_ context.Context, id int64) (*subscription.Subscription, error) {
	var out *subscription.Subscription
	err := r.store.locked(func(st *state) error {
		row, ok := st.subscriptions[id]
		if !ok {
			return domain.NewNotFoundError("Subscription", strconv.FormatInt(id, 10))
		}
		out = row.toDomain(st)
		return nil
	})
	return out, err
}

func (r *subscriptionRepo) FindActiveByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	sub, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Deleted() {
		return nil, domain.NewNotFoundError("Subscription", strconv.FormatInt(id, 10))
	}
	return sub, nil
}

func (r *subscriptionRepo) FindActiveBySubscriberID(_ context.Context, subscriberID int64) ([]*subscription.Subscription, error) {
	return r.filter(func(row subscriptionRow, _ *state) bool {
		return row.subscriberID == subscriberID && !row.deleted
	})
}

func (r *subscriptionRepo) ListVisible(context.Context) ([]*subscription.Subscription, error) {
	return r.filter(visible)
}

func (r *subscriptionRepo) ListAll(context.Context) ([]*subscription.Subscription, error) {
	return r.filter(func(subscriptionRow, *state) bool { return true })
}

func (r *subscriptionRepo) FindEndingBetween(_ context.Context, from, to time.Time) ([]*subscription.Subscription, error) {
	return r.filter(func(row subscriptionRow, st *state) bool {
		return visible(row, st) && !row.endDate.Before(from) && !row.endDate.After(to)
	})
}

func (r *subscriptionRepo) Delete(_ context.Context, id int64) error {
	return r.store.locked(func(st *state) error {
		if _, ok := st.subscriptions[id]; !ok {
			return domain.NewNotFoundError("Subscription", strconv.FormatInt(id, 10))
		}
		delete(st.subscriptions, id)
		return nil
	})
}

func (r *subscriptionRepo) DeleteBySubscriberID(_ context.Context, subscriberID int64) (int64, error) {
	var n int64
	err := r.store.locked(func(st *state) error {
		for id, row := range st.subscriptions {
			if row.subscriberID == subscriberID {
				delete(st.subscriptions, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *subscriptionRepo) filter(keep func(subscriptionRow, *state) bool) ([]*subscription.Subscription, error) {
	var out []*subscription.Subscription
	err := r.store.locked(func(st *state) error {
		ids := make([]int64, 0, len(st.subscriptions))
		for id := range st.subscriptions {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			row := st.subscriptions[id]
			if keep(row, st) {
				out = append(out, row.toDomain(st))
			}
		}
		return nil
	})
	return out, err
}

func visible(row subscriptionRow, st *state) bool {
	if row.deleted {
		return false
	}
	owner, ok := st.subscribers[row.subscriberID]
	return ok && !owner.deleted
}

func codeTaken(st *state, code string, excludeID int64) bool {
	for id, row := range st.subscribers {
		if id != excludeID && row.code == code {
			return true
		}
	}
	return false
}

func emailTaken(st *state, email string, excludeID int64) bool {
	for id, row := range st.subscribers {
		if id != excludeID && !row.deleted && row.email == email {
			return true
		}
	}
	return false
}

func sortedSubscribers(st *state) []subscriberRow {
	rows := make([]subscriberRow, 0, len(st.subscribers))
	for _, row := range st.subscribers {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	return rows
}
