package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentora/service-booking/internal/application"
	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/platform/auth"
	"github.com/rentora/service-booking/internal/platform/middleware"
	"github.com/rentora/service-booking/internal/platform/response"
)

// AdminBookingHandler handles admin HTTP requests for booking management.
type AdminBookingHandler struct {
	service *application.BookingService
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(service *application.BookingService) *AdminBookingHandler {
	return &AdminBookingHandler{service: service}
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.GET("/refunds/pending", h.PendingRefunds)
		admin.POST("/bookings/:id/cancel", h.CancelBooking)
		admin.POST("/bookings/:id/recalculate", h.RecalculatePricing)
		admin.POST("/bookings/:id/refund", h.ProcessRefund)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	page, limit := parsePagination(c)

	bookings, total, err := h.service.ListAllBookings(c.Request.Context(), filter, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// PendingRefunds handles GET /api/v1/admin/refunds/pending.
func (h *AdminBookingHandler) PendingRefunds(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	bookings, err := h.service.ListPendingRefunds(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, bookings)
}

// CancelBooking handles POST /api/v1/admin/bookings/:id/cancel.
func (h *AdminBookingHandler) CancelBooking(c *gin.Context) {
	var req application.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.run(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.AdminCancel(c.Request.Context(), actor, bookingID, req.Reason)
	})
}

// RecalculatePricing handles POST /api/v1/admin/bookings/:id/recalculate.
func (h *AdminBookingHandler) RecalculatePricing(c *gin.Context) {
	h.run(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.RecalculatePricing(c.Request.Context(), actor, bookingID)
	})
}

// ProcessRefund handles POST /api/v1/admin/bookings/:id/refund.
func (h *AdminBookingHandler) ProcessRefund(c *gin.Context) {
	h.run(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.ProcessRefund(c.Request.Context(), actor, bookingID)
	})
}

func (h *AdminBookingHandler) run(c *gin.Context, fn func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error)) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}
	actor, _ := actorFrom(c)

	result, err := fn(actor, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
