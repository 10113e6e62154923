//go:build integration

package main_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subtrack/service-subscription/internal/application"
	"github.com/subtrack/service-subscription/internal/domain/subscriber"
	"github.com/subtrack/service-subscription/internal/events"
	"github.com/subtrack/service-subscription/internal/platform/domain"
	"github.com/subtrack/service-subscription/internal/platform/kafka"
	"github.com/subtrack/service-subscription/internal/repository"
)

var integrationNow = time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)

func createSubscriber(t *testing.T, s *serviceStack, first, email string) *application.SubscriberDTO {
	t.Helper()
	dto, err := s.Subscribers.CreateSubscriber(context.Background(), application.SubscriberRequest{
		FirstName: first,
		LastName:  "Tester",
		Email:     email,
	})
	require.NoError(t, err)
	return dto
}

func createSubscription(t *testing.T, s *serviceStack, subscriberID int64, start, end, amount string) *application.SubscriptionDTO {
	t.Helper()
	value := decimal.RequireFromString(amount)
	dto, err := s.Subscriptions.CreateSubscription(context.Background(), application.SubscriptionRequest{
		StartDate:    start,
		EndDate:      end,
		Amount:       &value,
		SubscriberID: subscriberID,
	})
	require.NoError(t, err)
	return dto
}

// TestSubscriberCode_UniqueIndexRejectsDuplicates verifies that the database
// index backs code uniqueness even when the pre-check is bypassed.
func TestSubscriberCode_UniqueIndexRejectsDuplicates(t *testing.T) {
	infra := setupPostgres(t)
	defer infra.Cleanup()
	stack := setupServices(t, infra.Store, integrationNow)
	ctx := context.Background()

	created := createSubscriber(t, stack, "Ada", "ada@example.com")
	assert.Regexp(t, application.CodePattern, created.Code)

	dup := subscriber.NewSubscriber("Bob", "Tester", "bob@example.com", nil, created.Code, integrationNow)
	err := infra.Store.Subscribers().Save(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, subscriber.ErrCodeTaken))

	// The failed insert must not poison later work on the pool.
	other := createSubscriber(t, stack, "Bob", "bob@example.com")
	assert.NotEqual(t, created.Code, other.Code)
}

// TestSubscriberEmail_ReusableAfterSoftDelete verifies the partial unique index
// on live emails.
func TestSubscriberEmail_ReusableAfterSoftDelete(t *testing.T) {
	infra := setupPostgres(t)
	defer infra.Cleanup()
	stack := setupServices(t, infra.Store, integrationNow)
	ctx := context.Background()

	first := createSubscriber(t, stack, "Ada", "shared@example.com")

	_, err := stack.Subscribers.CreateSubscriber(ctx, application.SubscriberRequest{
		FirstName: "Eve", LastName: "Tester", Email: "shared@example.com",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, stack.Subscribers.SoftDeleteSubscriber(ctx, first.ID))

	second := createSubscriber(t, stack, "Eve", "shared@example.com")
	assert.NotEqual(t, first.ID, second.ID)

	// A raw insert that races the pre-check hits the partial index.
	clash := subscriber.NewSubscriber("Mal", "Tester", "shared@example.com", nil, "SUB-RACE01", integrationNow)
	err = infra.Store.Subscribers().Save(ctx, clash)
	require.Error(t, err)
	assert.True(t, errors.Is(err, subscriber.ErrEmailTaken))
}

// TestSoftDeleteSubscriber_CascadesAndShowsInHistory verifies the cascade and
// the deleted-target history views against PostgreSQL.
func TestSoftDeleteSubscriber_CascadesAndShowsInHistory(t *testing.T) {
	infra := setupPostgres(t)
	defer infra.Cleanup()
	stack := setupServices(t, infra.Store, integrationNow)
	ctx := context.Background()

	gone := createSubscriber(t, stack, "Ada", "ada@example.com")
	kept := createSubscriber(t, stack, "Bob", "bob@example.com")

	a := createSubscription(t, stack, gone.ID, "2024-01-01", "2024-12-31", "10.00")
	b := createSubscription(t, stack, gone.ID, "2024-02-01", "2024-06-15", "20.00")
	c := createSubscription(t, stack, kept.ID, "2024-03-01", "2024-06-05", "30.50")
	assert.Equal(t, "RENEWAL_REQUIRED", b.Status)
	assert.Equal(t, "EXPIRED", c.Status)

	require.NoError(t, stack.Subscriptions.SoftDeleteSubscription(ctx, c.ID))
	require.NoError(t, stack.Subscribers.SoftDeleteSubscriber(ctx, gone.ID))

	var count int64
	require.NoError(t, infra.DB.Model(&repository.SubscriptionModel{}).
		Where("subscriber_id = ? AND is_deleted = true", gone.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var stamps []time.Time
	require.NoError(t, infra.DB.Model(&repository.SubscriptionModel{}).
		Where("subscriber_id = ?", gone.ID).Pluck("deleted_at", &stamps).Error)
	require.Len(t, stamps, 2)
	assert.True(t, stamps[0].Equal(stamps[1]), "cascade must share one timestamp")

	live, err := stack.Queries.ListFiltered(ctx, application.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)

	bySubscriber, err := stack.Queries.History(ctx, application.HistoryFilter{DeletedTarget: "subscriber"})
	require.NoError(t, err)
	require.Len(t, bySubscriber, 2)
	assert.Equal(t, b.ID, bySubscriber[0].ID, "newest start date first")
	assert.Equal(t, a.ID, bySubscriber[1].ID)

	bySubscription, err := stack.Queries.History(ctx, application.HistoryFilter{DeletedTarget: application.DeletedTargetSubscription})
	require.NoError(t, err)
	assert.Len(t, bySubscription, 3)

	amount := decimal.RequireFromString("30.5")
	byAmount, err := stack.Queries.History(ctx, application.HistoryFilter{
		DeletedTarget: application.DeletedTargetAny,
		Amount:        &amount,
	})
	require.NoError(t, err)
	require.Len(t, byAmount, 1)
	assert.Equal(t, c.ID, byAmount[0].ID)
}

// TestPurgeSubscriber_RemovesAllRows verifies the admin pin gate and the hard
// delete of a subscriber with its subscriptions.
func TestPurgeSubscriber_RemovesAllRows(t *testing.T) {
	infra := setupPostgres(t)
	defer infra.Cleanup()
	stack := setupServices(t, infra.Store, integrationNow)
	ctx := context.Background()

	owner := createSubscriber(t, stack, "Ada", "ada@example.com")
	other := createSubscriber(t, stack, "Bob", "bob@example.com")
	createSubscription(t, stack, owner.ID, "2024-01-01", "2024-12-31", "10.00")
	createSubscription(t, stack, owner.ID, "2023-01-01", "2023-12-31", "12.00")
	survivor := createSubscription(t, stack, other.ID, "2024-01-01", "2024-12-31", "15.00")

	err := stack.Subscribers.PurgeSubscriber(ctx, owner.ID, "000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	require.NoError(t, stack.Subscribers.SoftDeleteSubscriber(ctx, owner.ID))
	require.NoError(t, stack.Subscribers.PurgeSubscriber(ctx, owner.ID, testAdminPin))

	var subscribers, subscriptions int64
	require.NoError(t, infra.DB.Model(&repository.SubscriberModel{}).Where("id = ?", owner.ID).Count(&subscribers).Error)
	require.NoError(t, infra.DB.Model(&repository.SubscriptionModel{}).Where("subscriber_id = ?", owner.ID).Count(&subscriptions).Error)
	assert.Zero(t, subscribers)
	assert.Zero(t, subscriptions)

	got, err := stack.Subscriptions.GetSubscription(ctx, survivor.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.SubscriberID)

	err = stack.Subscribers.PurgeSubscriber(ctx, owner.ID, testAdminPin)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// TestAssignMissingCodes_BackfillsLegacyRows verifies the startup backfill on
// rows stored without a code.
func TestAssignMissingCodes_BackfillsLegacyRows(t *testing.T) {
	infra := setupPostgres(t)
	defer infra.Cleanup()
	stack := setupServices(t, infra.Store, integrationNow)
	ctx := context.Background()

	coded := createSubscriber(t, stack, "Ada", "ada@example.com")
	legacy := repository.SubscriberModel{
		FirstName: "Old",
		LastName:  "Timer",
		Email:     "old@example.com",
		CreatedAt: integrationNow,
	}
	require.NoError(t, infra.DB.Create(&legacy).Error)

	n, err := stack.Subscribers.AssignMissingCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := stack.Subscribers.GetSubscriber(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Regexp(t, application.CodePattern, got.Code)
	assert.NotEqual(t, coded.Code, got.Code)

	again, err := stack.Subscribers.GetSubscriber(ctx, coded.ID)
	require.NoError(t, err)
	assert.Equal(t, coded.Code, again.Code)
}

// TestDailyDigest_PublishedToKafka verifies that the digest job computes the
// notification window from PostgreSQL and publishes one CloudEvent.
func TestDailyDigest_PublishedToKafka(t *testing.T) {
	infra := setupPostgres(t)
	defer infra.Cleanup()
	brokers, stopKafka := setupKafka(t, events.DefaultDigestTopic)
	defer stopKafka()

	stack := setupServices(t, infra.Store, integrationNow)
	ctx := context.Background()

	owner := createSubscriber(t, stack, "Ada", "ada@example.com")
	soon := createSubscription(t, stack, owner.ID, "2024-01-01", "2024-06-12", "10.00")
	lapsed := createSubscription(t, stack, owner.ID, "2024-01-01", "2024-06-08", "10.00")
	createSubscription(t, stack, owner.ID, "2024-01-01", "2024-09-30", "10.00")

	logger := zap.NewNop()
	producer := kafka.NewProducer(brokers, logger)
	defer producer.Close()

	publisher := events.NewDigestPublisher(stack.Notifications, producer, events.DefaultDigestTopic, stack.Metrics, logger)
	sent, err := publisher.PublishFor(ctx, integrationNow)
	require.NoError(t, err)
	require.True(t, sent)

	ce := consumeOneEvent(t, brokers, events.DefaultDigestTopic, events.DailyDigestType, 15*time.Second)
	assert.Equal(t, events.Source, ce.Source)

	var digest events.DailyDigest
	require.NoError(t, ce.ParseData(&digest))
	assert.Equal(t, "2024-06-10", digest.ReferenceDate)
	require.Len(t, digest.Entries, 2)
	assert.Equal(t, lapsed.ID, digest.Entries[0].SubscriptionID)
	assert.Equal(t, -2, digest.Entries[0].DaysUntilEnd)
	assert.Equal(t, "EXPIRED", digest.Entries[0].Status)
	assert.Equal(t, soon.ID, digest.Entries[1].SubscriptionID)
	assert.Equal(t, 2, digest.Entries[1].DaysUntilEnd)
	assert.Equal(t, "Ada Tester", digest.Entries[1].SubscriberName)
}
