package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/subtrack/service-subscription/internal/domain/calendar"
)

// Status is the lifecycle state derived from the end date.
type Status string

const (
	StatusActive          Status = "ACTIVE"
	StatusRenewalRequired Status = "RENEWAL_REQUIRED"
	StatusExpired         Status = "EXPIRED"
)

// RenewalWindowDays is the inclusive number of days before the end date
// during which a subscription requires renewal.
const RenewalWindowDays = 7

// ParseStatus reads a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusActive, StatusRenewalRequired, StatusExpired:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// ResolveStatus maps an end date and a reference date to a status.
// A nil end date resolves to ACTIVE.
func ResolveStatus(endDate *time.Time, referenceDate time.Time) Status {
	if endDate == nil {
		return StatusActive
	}
	return StatusForDays(calendar.DaysBetween(referenceDate, *endDate))
}

// StatusForDays maps a signed day count until the end date to a status.
func StatusForDays(daysUntilEnd int) Status {
	switch {
	case daysUntilEnd < 0:
		return StatusExpired
	case daysUntilEnd <= RenewalWindowDays:
		return StatusRenewalRequired
	default:
		return StatusActive
	}
}
