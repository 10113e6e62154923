package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/subtrack/service-subscription/internal/application"
	"github.com/subtrack/service-subscription/internal/platform/auth"
	"github.com/subtrack/service-subscription/internal/platform/middleware"
	"github.com/subtrack/service-subscription/internal/platform/response"
)

// SubscriberHandler handles HTTP requests for subscriber operations.
type SubscriberHandler struct {
	service *application.SubscriberService
}

// NewSubscriberHandler creates a new SubscriberHandler.
func NewSubscriberHandler(service *application.SubscriberService) *SubscriberHandler {
	return &SubscriberHandler{service: service}
}

// RegisterRoutes registers all subscriber routes.
func (h *SubscriberHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	subs := r.Group("/subscribers")
	subs.Use(middleware.AuthMiddleware(jwtManager))
	{
		subs.POST("", h.CreateSubscriber)
		subs.GET("", h.ListSubscribers)
		subs.GET("/:id", h.GetSubscriber)
		subs.PUT("/:id", h.UpdateSubscriber)
		subs.DELETE("/:id", h.DeleteSubscriber)
		subs.DELETE("/:id/purge", h.PurgeSubscriber)
	}
}

// CreateSubscriber handles POST /api/v1/subscribers.
func (h *SubscriberHandler) CreateSubscriber(c *gin.Context) {
	var req application.SubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.CreateSubscriber(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// ListSubscribers handles GET /api/v1/subscribers.
func (h *SubscriberHandler) ListSubscribers(c *gin.Context) {
	dtos, err := h.service.ListSubscribers(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dtos)
}

// GetSubscriber handles GET /api/v1/subscribers/:id.
func (h *SubscriberHandler) GetSubscriber(c *gin.Context) {
	id, err := pathID(c, "subscriber")
	if err != nil {
		response.Error(c, err)
		return
	}

	dto, err := h.service.GetSubscriber(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// UpdateSubscriber handles PUT /api/v1/subscribers/:id.
func (h *SubscriberHandler) UpdateSubscriber(c *gin.Context) {
	id, err := pathID(c, "subscriber")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req application.SubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.UpdateSubscriber(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// DeleteSubscriber handles DELETE /api/v1/subscribers/:id.
func (h *SubscriberHandler) DeleteSubscriber(c *gin.Context) {
	id, err := pathID(c, "subscriber")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.SoftDeleteSubscriber(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// PurgeSubscriber handles DELETE /api/v1/subscribers/:id/purge.
func (h *SubscriberHandler) PurgeSubscriber(c *gin.Context) {
	id, err := pathID(c, "subscriber")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.PurgeSubscriber(c.Request.Context(), id, c.GetHeader(AdminPinHeader)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
