package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subtrack/service-subscription/internal/domain/calendar"
	"github.com/subtrack/service-subscription/internal/platform/metrics"
	"github.com/subtrack/service-subscription/internal/repository/memory"
)

const testPin = "424242"

// testEnv wires every service on one in-memory store with a fixed clock.
type testEnv struct {
	store         *memory.Store
	metrics       *metrics.Metrics
	now           time.Time
	subscribers   *SubscriberService
	subscriptions *SubscriptionService
	queries       *QueryService
	notifications *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   memory.NewStore(),
		metrics: metrics.New(),
		now:     time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }
	logger := zap.NewNop()

	guard, err := NewAdminPinGuard(testPin, logger)
	require.NoError(t, err)
	codes := NewCodeGenerator(1000, env.metrics, logger)

	env.subscribers = NewSubscriberService(env.store, codes, guard, env.metrics, logger, clock)
	env.subscriptions = NewSubscriptionService(env.store, guard, env.metrics, logger, clock)
	env.queries = NewQueryService(env.store, clock)
	env.notifications = NewNotificationService(env.store, clock)
	return env
}

func (e *testEnv) today() time.Time {
	return calendar.Date(e.now)
}

func (e *testEnv) addSubscriber(t *testing.T, first, last, email string) *SubscriberDTO {
	t.Helper()
	dto, err := e.subscribers.CreateSubscriber(context.Background(), SubscriberRequest{
		FirstName: first, LastName: last, Email: email,
	})
	require.NoError(t, err)
	return dto
}

// addSubscription creates a subscription starting at start and ending
// endInDays days after the env's today.
func (e *testEnv) addSubscription(t *testing.T, subscriberID int64, start time.Time, endInDays int, amount string) *SubscriptionDTO {
	t.Helper()
	end := calendar.AddDays(e.today(), endInDays)
	if end.Before(start) {
		start = end
	}
	dto, err := e.subscriptions.CreateSubscription(context.Background(), SubscriptionRequest{
		StartDate:    start.Format(calendar.Layout),
		EndDate:      end.Format(calendar.Layout),
		Amount:       amountOf(amount),
		SubscriberID: subscriberID,
	})
	require.NoError(t, err)
	return dto
}

func ids(dtos []*SubscriptionDTO) []int64 {
	out := make([]int64, len(dtos))
	for i, d := range dtos {
		out[i] = d.ID
	}
	return out
}

func amountOf(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
