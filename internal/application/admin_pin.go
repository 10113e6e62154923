package application

import (
	"crypto/rand"
	"crypto/subtle"
	"strings"

	"go.uber.org/zap"

	"github.com/subtrack/service-subscription/internal/platform/domain"
)

// AdminPinGuard gates purge operations behind one process-wide secret.
type AdminPinGuard struct {
	pin string
}

// NewAdminPinGuard uses the configured pin when set. Otherwise it generates
// six random digits and logs them once.
func NewAdminPinGuard(configured string, logger *zap.Logger) (*AdminPinGuard, error) {
	pin := strings.TrimSpace(configured)
	if pin != "" {
		return &AdminPinGuard{pin: pin}, nil
	}

	generated, err := randomDigits(rand.Reader, 6)
	if err != nil {
		return nil, err
	}
	logger.Warn("APP_ADMIN_PIN not set, generated a temporary admin pin",
		zap.String("admin_pin", generated),
	)
	return &AdminPinGuard{pin: generated}, nil
}

// ValidateOrThrow returns a Forbidden error unless candidate matches the pin.
func (g *AdminPinGuard) ValidateOrThrow(candidate string) error {
	c := strings.TrimSpace(candidate)
	if c == "" || subtle.ConstantTimeCompare([]byte(c), []byte(g.pin)) != 1 {
		return domain.NewForbiddenError("invalid admin pin")
	}
	return nil
}
