package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subtrack/service-subscription/internal/application"
	"github.com/subtrack/service-subscription/internal/platform/auth"
	"github.com/subtrack/service-subscription/internal/platform/metrics"
	"github.com/subtrack/service-subscription/internal/platform/middleware"
	"github.com/subtrack/service-subscription/internal/repository/memory"
)

const (
	testPin    = "9876"
	testSecret = "test-secret"
)

var fixedNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func newRouter(t *testing.T, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	m := metrics.New()
	logger := zap.NewNop()
	clock := func() time.Time { return fixedNow }

	guard, err := application.NewAdminPinGuard(testPin, logger)
	require.NoError(t, err)
	codes := application.NewCodeGenerator(100, m, logger)

	jwtManager := auth.NewJWTManager(secret)
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	api := router.Group("/api/v1")

	NewSubscriberHandler(application.NewSubscriberService(store, codes, guard, m, logger, clock)).RegisterRoutes(api, jwtManager)
	NewSubscriptionHandler(
		application.NewSubscriptionService(store, guard, m, logger, clock),
		application.NewQueryService(store, clock),
	).RegisterRoutes(api, jwtManager)
	NewNotificationHandler(application.NewNotificationService(store, clock)).RegisterRoutes(api, jwtManager)
	return router
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func createSubscriber(t *testing.T, r http.Handler, first, email string) application.SubscriberDTO {
	t.Helper()
	w, env := do(t, r, http.MethodPost, "/api/v1/subscribers", map[string]interface{}{
		"first_name": first, "last_name": "Tester", "email": email,
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var dto application.SubscriberDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	return dto
}

func createSubscription(t *testing.T, r http.Handler, subscriberID int64, start, end, amount string) application.SubscriptionDTO {
	t.Helper()
	w, env := do(t, r, http.MethodPost, "/api/v1/subscriptions", map[string]interface{}{
		"start_date": start, "end_date": end, "amount": amount, "subscriber_id": subscriberID,
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var dto application.SubscriptionDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	return dto
}

func TestSubscriberRoutes(t *testing.T) {
	r := newRouter(t, "")

	alice := createSubscriber(t, r, "Alice", "alice@example.com")
	assert.Regexp(t, application.CodePattern, alice.Code)

	w, env := do(t, r, http.MethodPost, "/api/v1/subscribers", map[string]interface{}{
		"first_name": "Again", "last_name": "Alice", "email": "alice@example.com",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)

	w, _ = do(t, r, http.MethodPost, "/api/v1/subscribers", map[string]interface{}{
		"first_name": "No", "last_name": "Email",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/subscribers", map[string]interface{}{
		"first_name": "Bad", "last_name": "Email", "email": "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/subscribers", map[string]interface{}{
		"first_name": "   ", "last_name": "  ", "email": "blank@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPut, "/api/v1/subscribers/1", map[string]interface{}{
		"first_name": "Alice", "last_name": " ", "email": "alice@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, r, http.MethodPut, "/api/v1/subscribers/1", map[string]interface{}{
		"first_name": "Alicia", "last_name": "Tester", "email": "alicia@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var updated application.SubscriberDTO
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "Alicia", updated.FirstName)
	assert.Equal(t, alice.Code, updated.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/subscribers?search=alicia", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []application.SubscriberDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	w, _ = do(t, r, http.MethodGet, "/api/v1/subscribers/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/api/v1/subscribers/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/subscribers/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPurgeRoutes_RequireAdminPin(t *testing.T) {
	r := newRouter(t, "")
	alice := createSubscriber(t, r, "Alice", "alice@example.com")
	sub := createSubscription(t, r, alice.ID, "2024-06-01", "2024-07-01", "10.00")
	purgePath := fmt.Sprintf("/api/v1/subscriptions/%d/purge", sub.ID)

	w, _ := do(t, r, http.MethodDelete, purgePath, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodDelete, purgePath, nil, AdminPinHeader, "0000")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/subscriptions/%d", sub.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodDelete, purgePath, nil, AdminPinHeader, " "+testPin+" ")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = do(t, r, http.MethodDelete, purgePath, nil, AdminPinHeader, testPin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/subscribers/%d/purge", alice.ID), nil, AdminPinHeader, testPin)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSubscriptionRoutes_FiltersAndValidation(t *testing.T) {
	r := newRouter(t, "")
	alice := createSubscriber(t, r, "Alice", "alice@example.com")

	soon := createSubscription(t, r, alice.ID, "2024-06-01", "2024-06-13", "10.00")
	assert.Equal(t, "RENEWAL_REQUIRED", soon.Status)
	createSubscription(t, r, alice.ID, "2024-05-01", "2024-09-01", "25.50")

	w, env := do(t, r, http.MethodGet, "/api/v1/subscriptions?status=renewal_required", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []application.SubscriptionDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, soon.ID, list[0].ID)

	w, env = do(t, r, http.MethodGet, "/api/v1/subscriptions/history?year=2024&month=5&amount=25.5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	// Unrecognized deletion targets fall back to live records.
	w, env = do(t, r, http.MethodGet, "/api/v1/subscriptions/history?deletedTarget=everything", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 2)

	for _, path := range []string{
		"/api/v1/subscriptions?startDate=01-06-2024",
		"/api/v1/subscriptions?status=PAUSED",
		"/api/v1/subscriptions?subscriberId=x",
		"/api/v1/subscriptions/history?month=13",
		"/api/v1/subscriptions/history?amount=ten",
		"/api/v1/notifications/daily?date=tomorrow",
	} {
		w, _ := do(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}

	w, _ = do(t, r, http.MethodPost, "/api/v1/subscriptions", map[string]interface{}{
		"start_date": "2024-06-10", "end_date": "2024-06-01", "amount": "1", "subscriber_id": alice.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/subscriptions", map[string]interface{}{
		"start_date": "2024-06-01", "end_date": "2024-07-01", "subscriber_id": alice.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "amount is required")

	w, _ = do(t, r, http.MethodPost, "/api/v1/subscriptions", map[string]interface{}{
		"start_date": "2024-06-01", "end_date": "2024-07-01", "amount": "1", "subscriber_id": 999,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/subscriptions/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats application.StatsDTO
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.RenewalRequired)
	assert.Equal(t, int64(1), stats.ActiveSubscribers)
}

func TestDailyNotifications_DefaultsToToday(t *testing.T) {
	r := newRouter(t, "")
	alice := createSubscriber(t, r, "Alice", "alice@example.com")
	createSubscription(t, r, alice.ID, "2024-06-01", "2024-06-13", "10.00")

	w, env := do(t, r, http.MethodGet, "/api/v1/notifications/daily", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var digest []application.NotificationDTO
	require.NoError(t, json.Unmarshal(env.Data, &digest))
	require.Len(t, digest, 1)
	assert.Equal(t, 3, digest[0].DaysUntilEnd)
	assert.Equal(t, "Alice Tester", digest[0].SubscriberName)

	w, env = do(t, r, http.MethodGet, "/api/v1/notifications/daily?date=2024-07-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &digest))
	assert.Empty(t, digest)
}

func TestAuthMiddleware_RequiresBearerWhenSecretSet(t *testing.T) {
	r := newRouter(t, testSecret)

	w, _ := do(t, r, http.MethodGet, "/api/v1/subscribers", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/subscribers", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: "operator-1",
		Role:   "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	w, _ = do(t, r, http.MethodGet, "/api/v1/subscribers", nil, "Authorization", "Bearer "+signed)
	assert.Equal(t, http.StatusOK, w.Code)
}
