package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentora/service-booking/internal/application"
	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/platform/auth"
	"github.com/rentora/service-booking/internal/platform/middleware"
	"github.com/rentora/service-booking/internal/platform/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.DELETE("/:id", h.DeleteBooking)
		bookings.GET("/:id/history", h.GetHistory)
		bookings.POST("/:id/confirm", h.ConfirmBooking)
		bookings.POST("/:id/reject", h.RejectBooking)
		bookings.POST("/:id/check-in", h.CheckIn)
		bookings.POST("/:id/check-out", h.CheckOut)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/cancellation-request", h.RequestCancellation)
		bookings.POST("/:id/cancellation-review", h.ReviewCancellation)
		bookings.PATCH("/:id/insurance", h.UpdateInsurance)
		bookings.POST("/:id/repeat", h.RepeatBooking)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings?role=renter|owner.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filter, err := parseListFilter(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	page, limit := parsePagination(c)
	role := application.ListRole(c.DefaultQuery("role", string(application.ListAsRenter)))

	result, err := h.service.ListBookings(c.Request.Context(), actor, role, filter, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	h.withBooking(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.GetBooking(c.Request.Context(), actor, bookingID)
	})
}

// GetHistory handles GET /api/v1/bookings/:id/history.
func (h *BookingHandler) GetHistory(c *gin.Context) {
	h.withBooking(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.GetHistory(c.Request.Context(), actor, bookingID)
	})
}

// ConfirmBooking handles POST /api/v1/bookings/:id/confirm (owner).
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	h.withBooking(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.ConfirmBooking(c.Request.Context(), actor, bookingID)
	})
}

// RejectBooking handles POST /api/v1/bookings/:id/reject (owner).
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	var req application.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.withBooking(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.RejectBooking(c.Request.Context(), actor, bookingID, req.Reason)
	})
}

// CheckIn handles POST /api/v1/bookings/:id/check-in.
func (h *BookingHandler) CheckIn(c *gin.Context) {
	h.withBooking(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.CheckIn(c.Request.Context(), actor, bookingID)
	})
}

// CheckOut handles POST /api/v1/bookings/:id/check-out.
func (h *BookingHandler) CheckOut(c *gin.Context) {
	h.withBooking(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.CheckOut(c.Request.Context(), actor, bookingID)
	})
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req application.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.withBooking(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.CancelBooking(c.Request.Context(), actor, bookingID, req.Reason)
	})
}

// RequestCancellation handles POST /api/v1/bookings/:id/cancellation-request (renter).
func (h *BookingHandler) RequestCancellation(c *gin.Context) {
	var req application.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.withBooking(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.RequestCancellation(c.Request.Context(), actor, bookingID, req.Reason)
	})
}

// ReviewCancellation handles POST /api/v1/bookings/:id/cancellation-review (owner).
func (h *BookingHandler) ReviewCancellation(c *gin.Context) {
	var req application.ReviewCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.withBooking(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.ReviewCancellation(c.Request.Context(), actor, bookingID, req)
	})
}

// UpdateInsurance handles PATCH /api/v1/bookings/:id/insurance.
func (h *BookingHandler) UpdateInsurance(c *gin.Context) {
	var req application.UpdateInsuranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.withBooking(c, func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error) {
		return h.service.UpdateInsurance(c.Request.Context(), actor, bookingID, req)
	})
}

// RepeatBooking handles POST /api/v1/bookings/:id/repeat.
func (h *BookingHandler) RepeatBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.RepeatBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RepeatBooking(c.Request.Context(), userID, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// DeleteBooking handles DELETE /api/v1/bookings/:id.
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
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

	if err := h.service.DeleteBooking(c.Request.Context(), actor, bookingID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// withBooking parses the booking ID and caller, runs fn and writes its result.
func (h *BookingHandler) withBooking(c *gin.Context, fn func(actor bookingDomain.Actor, bookingID uuid.UUID) (interface{}, error)) {
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

	result, err := fn(actor, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// actorFrom builds the domain actor from the authenticated caller.
func actorFrom(c *gin.Context) (bookingDomain.Actor, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return bookingDomain.Actor{}, false
	}
	role, _ := middleware.GetUserRole(c)
	return bookingDomain.Actor{ID: userID, IsAdmin: role == auth.RoleAdmin}, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}

// parseListFilter reads the optional status, product_id, from and to query parameters.
func parseListFilter(c *gin.Context) (bookingDomain.ListFilter, error) {
	var f bookingDomain.ListFilter

	if v := c.Query("status"); v != "" {
		status, err := bookingDomain.ParseBookingStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &status
	}
	if v := c.Query("product_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errInvalidQuery("product_id")
		}
		f.ProductID = &id
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(bookingDomain.DateLayout, v)
		if err != nil {
			return f, errInvalidQuery("from")
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(bookingDomain.DateLayout, v)
		if err != nil {
			return f, errInvalidQuery("to")
		}
		f.To = &t
	}
	return f, nil
}

type errInvalidQuery string

func (e errInvalidQuery) Error() string { return "invalid " + string(e) + " query parameter" }
