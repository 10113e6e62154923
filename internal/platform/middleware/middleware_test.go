package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/subtrack/service-subscription/internal/platform/auth"
)

const testSecret = "middleware-secret"

func signedToken(t *testing.T, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newLoggedRouter(secret string) (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(LoggerMiddleware(zap.New(core)))
	r.Use(AuthMiddleware(auth.NewJWTManager(secret)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, logs
}

func TestLoggerMiddleware_LogsAuthenticatedCaller(t *testing.T) {
	r, logs := newLoggedRouter(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-42", "admin"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "user-42", fields["user_id"])
	assert.Equal(t, "admin", fields["role"])
}

func TestLoggerMiddleware_OmitsCallerWhenAnonymous(t *testing.T) {
	r, logs := newLoggedRouter("")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap(), "user_id")
}
