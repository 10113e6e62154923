package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/subtrack/service-subscription/internal/application"
	"github.com/subtrack/service-subscription/internal/platform/auth"
	"github.com/subtrack/service-subscription/internal/platform/middleware"
	"github.com/subtrack/service-subscription/internal/platform/response"
)

// SubscriptionHandler handles HTTP requests for subscription operations.
type SubscriptionHandler struct {
	service *application.SubscriptionService
	queries *application.QueryService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(service *application.SubscriptionService, queries *application.QueryService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, queries: queries}
}

// RegisterRoutes registers all subscription routes.
func (h *SubscriptionHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	subs := r.Group("/subscriptions")
	subs.Use(middleware.AuthMiddleware(jwtManager))
	{
		subs.POST("", h.CreateSubscription)
		subs.GET("", h.ListSubscriptions)
		subs.GET("/history", h.History)
		subs.GET("/stats", h.Stats)
		subs.GET("/:id", h.GetSubscription)
		subs.PUT("/:id", h.UpdateSubscription)
		subs.DELETE("/:id", h.DeleteSubscription)
		subs.DELETE("/:id/purge", h.PurgeSubscription)
	}
}

// CreateSubscription handles POST /api/v1/subscriptions.
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req application.SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.CreateSubscription(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// ListSubscriptions handles GET /api/v1/subscriptions.
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	q := &queryParams{c: c}
	filter := application.ListFilter{
		StartDate:    q.optDate("startDate"),
		EndDate:      q.optDate("endDate"),
		Status:       q.optStatus("status"),
		SubscriberID: q.optInt64("subscriberId"),
		Search:       c.Query("search"),
	}
	if q.err != nil {
		response.Error(c, q.err)
		return
	}

	dtos, err := h.queries.ListFiltered(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dtos)
}

// History handles GET /api/v1/subscriptions/history.
func (h *SubscriptionHandler) History(c *gin.Context) {
	q := &queryParams{c: c}
	filter := application.HistoryFilter{
		Year:          q.optIntInRange("year", 1, 9999),
		Month:         q.optIntInRange("month", 1, 12),
		ExactDate:     q.optDate("date"),
		Search:        c.Query("search"),
		Status:        q.optStatus("status"),
		Amount:        q.optDecimal("amount"),
		DeletedTarget: c.Query("deletedTarget"),
	}
	if q.err != nil {
		response.Error(c, q.err)
		return
	}

	dtos, err := h.queries.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dtos)
}

// Stats handles GET /api/v1/subscriptions/stats.
func (h *SubscriptionHandler) Stats(c *gin.Context) {
	stats, err := h.queries.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// GetSubscription handles GET /api/v1/subscriptions/:id.
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	id, err := pathID(c, "subscription")
	if err != nil {
		response.Error(c, err)
		return
	}

	dto, err := h.service.GetSubscription(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// UpdateSubscription handles PUT /api/v1/subscriptions/:id.
func (h *SubscriptionHandler) UpdateSubscription(c *gin.Context) {
	id, err := pathID(c, "subscription")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req application.SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.UpdateSubscription(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// DeleteSubscription handles DELETE /api/v1/subscriptions/:id.
func (h *SubscriptionHandler) DeleteSubscription(c *gin.Context) {
	id, err := pathID(c, "subscription")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.SoftDeleteSubscription(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// PurgeSubscription handles DELETE /api/v1/subscriptions/:id/purge.
func (h *SubscriptionHandler) PurgeSubscription(c *gin.Context) {
	id, err := pathID(c, "subscription")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.PurgeSubscription(c.Request.Context(), id, c.GetHeader(AdminPinHeader)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
