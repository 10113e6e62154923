package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/subtrack/service-subscription/internal/application"
	"github.com/subtrack/service-subscription/internal/domain/calendar"
	"github.com/subtrack/service-subscription/internal/platform/kafka"
	"github.com/subtrack/service-subscription/internal/platform/metrics"
)

// Event identity for the daily digest.
const (
	Source             = "service-subscription"
	DailyDigestType    = "subscription.daily_digest"
	DefaultDigestTopic = "subscription.notifications"
)

// EventPublisher is the subset of the Kafka producer the digest needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, ce kafka.CloudEvent) error
}

// DailyDigest is the data of a subscription.daily_digest event.
type DailyDigest struct {
	ReferenceDate string                         `json:"reference_date"`
	Entries       []*application.NotificationDTO `json:"entries"`
}

// DigestPublisher computes the daily digest and publishes it as a CloudEvent.
type DigestPublisher struct {
	notifications *application.NotificationService
	publisher     EventPublisher
	topic         string
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewDigestPublisher creates a new DigestPublisher.
func NewDigestPublisher(
	notifications *application.NotificationService,
	publisher EventPublisher,
	topic string,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DigestPublisher {
	if topic == "" {
		topic = DefaultDigestTopic
	}
	return &DigestPublisher{
		notifications: notifications,
		publisher:     publisher,
		topic:         topic,
		metrics:       m,
		logger:        logger,
	}
}

// PublishFor publishes the digest for referenceDate. Nothing is sent when the
// digest is empty. It reports whether an event went out.
func (p *DigestPublisher) PublishFor(ctx context.Context, referenceDate time.Time) (bool, error) {
	entries, err := p.notifications.Daily(ctx, referenceDate)
	if err != nil {
		return false, fmt.Errorf("failed to compute daily digest: %w", err)
	}
	if len(entries) == 0 {
		p.logger.Debug("daily digest empty, nothing to publish")
		return false, nil
	}

	ce, err := kafka.NewCloudEvent(Source, DailyDigestType, DailyDigest{
		ReferenceDate: calendar.Date(referenceDate).Format(calendar.Layout),
		Entries:       entries,
	})
	if err != nil {
		return false, err
	}
	if err := p.publisher.PublishEvent(ctx, p.topic, ce); err != nil {
		return false, fmt.Errorf("failed to publish daily digest: %w", err)
	}

	p.metrics.DigestsPublished.Inc()
	p.logger.Info("daily digest published",
		zap.String("topic", p.topic),
		zap.String("event_id", ce.ID),
		zap.Int("entries", len(entries)),
	)
	return true, nil
}

// Run publishes today's digest. Failures are logged and not retried.
func (p *DigestPublisher) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := p.PublishFor(ctx, p.notifications.Today()); err != nil {
		p.logger.Error("daily digest job failed", zap.Error(err))
	}
}
