package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/subtrack/service-subscription/internal/domain/calendar"
	subDomain "github.com/subtrack/service-subscription/internal/domain/subscription"
	"github.com/subtrack/service-subscription/internal/platform/domain"
)

// AdminPinHeader carries the purge secret.
const AdminPinHeader = "X-Admin-Pin"

func pathID(c *gin.Context, entity string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("invalid " + entity + " ID")
	}
	return id, nil
}

// queryParams reads optional query values, remembering the first parse error.
type queryParams struct {
	c   *gin.Context
	err error
}

func (q *queryParams) value(key string) (string, bool) {
	v := strings.TrimSpace(q.c.Query(key))
	return v, v != ""
}

func (q *queryParams) fail(key, reason string) {
	if q.err == nil {
		q.err = domain.NewValidationError(key + ": " + reason)
	}
}

func (q *queryParams) optDate(key string) *time.Time {
	v, ok := q.value(key)
	if !ok {
		return nil
	}
	t, err := calendar.Parse(v)
	if err != nil {
		q.fail(key, err.Error())
		return nil
	}
	return &t
}

func (q *queryParams) optInt64(key string) *int64 {
	v, ok := q.value(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		q.fail(key, "must be an integer")
		return nil
	}
	return &n
}

func (q *queryParams) optIntInRange(key string, lo, hi int) *int {
	n := q.optInt64(key)
	if n == nil {
		return nil
	}
	if *n < int64(lo) || *n > int64(hi) {
		q.fail(key, "out of range")
		return nil
	}
	v := int(*n)
	return &v
}

func (q *queryParams) optStatus(key string) *subDomain.Status {
	v, ok := q.value(key)
	if !ok {
		return nil
	}
	st, err := subDomain.ParseStatus(v)
	if err != nil {
		q.fail(key, err.Error())
		return nil
	}
	return &st
}

func (q *queryParams) optDecimal(key string) *decimal.Decimal {
	v, ok := q.value(key)
	if !ok {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		q.fail(key, "must be a decimal number")
		return nil
	}
	return &d
}
