package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentora/service-booking/internal/application"
	"github.com/rentora/service-booking/internal/platform/auth"
	"github.com/rentora/service-booking/internal/platform/middleware"
	"github.com/rentora/service-booking/internal/platform/response"
)

// ConditionHandler handles HTTP requests for condition reports.
type ConditionHandler struct {
	service *application.ConditionService
}

// NewConditionHandler creates a new ConditionHandler.
func NewConditionHandler(service *application.ConditionService) *ConditionHandler {
	return &ConditionHandler{service: service}
}

// RegisterRoutes registers condition report routes.
func (h *ConditionHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	conditions := r.Group("/api/v1/bookings/:id/conditions")
	conditions.Use(authMW)
	{
		conditions.POST("", h.RecordCondition)
		conditions.GET("", h.ListConditions)
	}
}

// RecordCondition handles POST /api/v1/bookings/:id/conditions.
func (h *ConditionHandler) RecordCondition(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.RecordConditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RecordCondition(c.Request.Context(), actor, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListConditions handles GET /api/v1/bookings/:id/conditions.
func (h *ConditionHandler) ListConditions(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.ListConditionReports(c.Request.Context(), actor, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
