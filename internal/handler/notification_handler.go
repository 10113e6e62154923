package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/subtrack/service-subscription/internal/application"
	"github.com/subtrack/service-subscription/internal/platform/auth"
	"github.com/subtrack/service-subscription/internal/platform/middleware"
	"github.com/subtrack/service-subscription/internal/platform/response"
)

// NotificationHandler serves the daily renewal digest.
type NotificationHandler struct {
	service *application.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(service *application.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// RegisterRoutes registers notification routes.
func (h *NotificationHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	n := r.Group("/notifications")
	n.Use(middleware.AuthMiddleware(jwtManager))
	{
		n.GET("/daily", h.Daily)
	}
}

// Daily handles GET /api/v1/notifications/daily. The date defaults to today.
func (h *NotificationHandler) Daily(c *gin.Context) {
	q := &queryParams{c: c}
	ref := q.optDate("date")
	if q.err != nil {
		response.Error(c, q.err)
		return
	}
	if ref == nil {
		today := h.service.Today()
		ref = &today
	}

	dtos, err := h.service.Daily(c.Request.Context(), *ref)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dtos)
}
