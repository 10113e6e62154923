package application

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subtrack/service-subscription/internal/domain/calendar"
	subscriberDomain "github.com/subtrack/service-subscription/internal/domain/subscriber"
	subscriptionDomain "github.com/subtrack/service-subscription/internal/domain/subscription"
	"github.com/subtrack/service-subscription/internal/platform/domain"
)

// SubscriberRequest holds the fields for creating or updating a subscriber.
type SubscriberRequest struct {
	FirstName string  `json:"first_name" binding:"required,max=100"`
	LastName  string  `json:"last_name" binding:"required,max=100"`
	Email     string  `json:"email" binding:"required,email,max=255"`
	Phone     *string `json:"phone" binding:"omitempty,max=50"`
}

// Validate rejects names that are blank once trimmed.
func (r SubscriberRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return domain.NewValidationError("first_name must not be blank")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return domain.NewValidationError("last_name must not be blank")
	}
	if strings.TrimSpace(r.Email) == "" {
		return domain.NewValidationError("email must not be blank")
	}
	return nil
}

// SubscriptionRequest holds the fields for creating or updating a subscription.
// Status is accepted for compatibility but always recomputed.
type SubscriptionRequest struct {
	StartDate    string           `json:"start_date" binding:"required"`
	EndDate      string           `json:"end_date" binding:"required"`
	Amount       *decimal.Decimal `json:"amount" binding:"required"`
	SubscriberID int64            `json:"subscriber_id" binding:"required,gt=0"`
	Status       *string          `json:"status,omitempty"`
}

// Terms parses and validates the request into subscription terms.
func (r SubscriptionRequest) Terms() (subscriptionDomain.Terms, error) {
	start, err := calendar.Parse(r.StartDate)
	if err != nil {
		return subscriptionDomain.Terms{}, domain.NewValidationError("start_date: " + err.Error())
	}
	end, err := calendar.Parse(r.EndDate)
	if err != nil {
		return subscriptionDomain.Terms{}, domain.NewValidationError("end_date: " + err.Error())
	}
	if end.Before(start) {
		return subscriptionDomain.Terms{}, domain.NewValidationError("end_date must not be before start_date")
	}
	if r.Amount == nil {
		return subscriptionDomain.Terms{}, domain.NewValidationError("amount is required")
	}
	if r.Amount.IsNegative() {
		return subscriptionDomain.Terms{}, domain.NewValidationError("amount must not be negative")
	}
	return subscriptionDomain.Terms{
		StartDate:    start,
		EndDate:      end,
		Amount:       *r.Amount,
		SubscriberID: r.SubscriberID,
	}, nil
}

// SubscriberDTO is the API representation of a subscriber.
type SubscriberDTO struct {
	ID        int64      `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Code      string     `json:"code"`
	Phone     *string    `json:"phone,omitempty"`
	CreatedAt string     `json:"created_at"`
	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// SubscriberSummary is the owner block embedded in subscription responses.
type SubscriberSummary struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Code     string `json:"code"`
	Deleted  bool   `json:"deleted"`
}

// SubscriptionDTO is the API representation of a subscription. Status is
// computed against the reference date of the request, not read from storage.
type SubscriptionDTO struct {
	ID           int64              `json:"id"`
	StartDate    string             `json:"start_date"`
	EndDate      string             `json:"end_date"`
	Amount       decimal.Decimal    `json:"amount"`
	Status       string             `json:"status"`
	Deleted      bool               `json:"deleted"`
	DeletedAt    *time.Time         `json:"deleted_at,omitempty"`
	SubscriberID int64              `json:"subscriber_id"`
	Subscriber   *SubscriberSummary `json:"subscriber,omitempty"`
}

// NotificationDTO is one entry of the daily renewal digest.
type NotificationDTO struct {
	SubscriptionID int64  `json:"subscription_id"`
	SubscriberID   *int64 `json:"subscriber_id"`
	SubscriberName string `json:"subscriber_name"`
	EndDate        string `json:"end_date"`
	DaysUntilEnd   int    `json:"days_until_end"`
	Status         string `json:"status"`
}

// StatsDTO summarizes visible subscriptions for dashboards.
type StatsDTO struct {
	Active            int             `json:"active"`
	RenewalRequired   int             `json:"renewal_required"`
	Expired           int             `json:"expired"`
	ActiveSubscribers int64           `json:"active_subscribers"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

func toSubscriberDTO(s *subscriberDomain.Subscriber) *SubscriberDTO {
	return &SubscriberDTO{
		ID: s.ID(), FirstName: s.FirstName(), LastName: s.LastName(),
		Email: s.Email(), Code: s.Code(), Phone: s.Phone(),
		CreatedAt: s.CreatedAt().Format(calendar.Layout),
		Deleted:   s.Deleted(), DeletedAt: s.DeletedAt(),
	}
}

func toSubscriptionDTO(s *subscriptionDomain.Subscription, status subscriptionDomain.Status) *SubscriptionDTO {
	dto := &SubscriptionDTO{
		ID:           s.ID(),
		StartDate:    s.StartDate().Format(calendar.Layout),
		EndDate:      s.EndDate().Format(calendar.Layout),
		Amount:       s.Amount(),
		Status:       string(status),
		Deleted:      s.Deleted(),
		DeletedAt:    s.DeletedAt(),
		SubscriberID: s.SubscriberID(),
	}
	if owner := s.Subscriber(); owner != nil {
		dto.Subscriber = &SubscriberSummary{
			ID: owner.ID(), FullName: owner.FullName(), Email: owner.Email(),
			Code: owner.Code(), Deleted: owner.Deleted(),
		}
	}
	return dto
}
