package application

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"regexp"

	"go.uber.org/zap"

	subscriberDomain "github.com/subtrack/service-subscription/internal/domain/subscriber"
	"github.com/subtrack/service-subscription/internal/platform/metrics"
)

const (
	codePrefix = "SUB-"
	codeDigits = 6
)

// CodePattern matches a well-formed subscriber code.
var CodePattern = regexp.MustCompile(`^SUB-\d{6}$`)

// ErrCodeSpaceExhausted is returned when no free code was found within the
// configured number of attempts.
var ErrCodeSpaceExhausted = errors.New("could not generate a unique subscriber code")

// CodeGenerator draws random SUB-###### codes and checks them against the store.
type CodeGenerator struct {
	random      io.Reader
	maxAttempts int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewCodeGenerator creates a generator backed by crypto/rand.
func NewCodeGenerator(maxAttempts int, m *metrics.Metrics, logger *zap.Logger) *CodeGenerator {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &CodeGenerator{random: rand.Reader, maxAttempts: maxAttempts, metrics: m, logger: logger}
}

// MaxAttempts is the bound shared by the pre-check loop and the insert retry loop.
func (g *CodeGenerator) MaxAttempts() int { return g.maxAttempts }

// Generate returns a code no stored subscriber holds, soft-deleted ones included.
// The check is optimistic; the store's unique index has the final say.
func (g *CodeGenerator) Generate(ctx context.Context, repo subscriberDomain.SubscriberRepository) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		code, err := g.candidate()
		if err != nil {
			return "", err
		}
		taken, err := repo.ExistsByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check subscriber code: %w", err)
		}
		if !taken {
			return code, nil
		}
		g.Collision(code, attempt)
	}
	return "", ErrCodeSpaceExhausted
}

// Collision records a code that turned out to be taken.
func (g *CodeGenerator) Collision(code string, attempt int) {
	g.metrics.CodeCollisions.Inc()
	g.logger.Warn("subscriber code collision",
		zap.String("code", code),
		zap.Int("attempt", attempt),
	)
}

func (g *CodeGenerator) candidate() (string, error) {
	digits, err := randomDigits(g.random, codeDigits)
	if err != nil {
		return "", fmt.Errorf("failed to draw subscriber code: %w", err)
	}
	return codePrefix + digits, nil
}

// randomDigits draws n independent decimal digits from r.
func randomDigits(r io.Reader, n int) (string, error) {
	ten := big.NewInt(10)
	buf := make([]byte, n)
	for i := range buf {
		d, err := rand.Int(r, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}
