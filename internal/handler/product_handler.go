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

// ProductHandler serves the availability calendar and price records of a product.
type ProductHandler struct {
	availability *application.AvailabilityService
	prices       *application.PriceService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(availability *application.AvailabilityService, prices *application.PriceService) *ProductHandler {
	return &ProductHandler{availability: availability, prices: prices}
}

// RegisterRoutes registers product calendar and pricing routes.
func (h *ProductHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	products := r.Group("/api/v1/products/:id")
	products.Use(authMW)
	{
		products.GET("/availability", h.Calendar)
		products.POST("/availability/remove", h.RemoveDates)
		products.POST("/availability/restore", h.RestoreDates)
		products.GET("/prices", h.ListPrices)
		products.POST("/prices", h.CreatePrice)
		products.GET("/quote", h.Quote)
	}

	prices := r.Group("/api/v1/prices")
	prices.Use(authMW)
	{
		prices.DELETE("/:id", h.DeactivatePrice)
	}
}

// Calendar handles GET /api/v1/products/:id/availability.
func (h *ProductHandler) Calendar(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product ID")
		return
	}

	var req application.DateRangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.availability.Calendar(c.Request.Context(), productID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RemoveDates handles POST /api/v1/products/:id/availability/remove (owner).
func (h *ProductHandler) RemoveDates(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product ID")
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.DateRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.availability.RemoveDates(c.Request.Context(), actor, productID, req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// RestoreDates handles POST /api/v1/products/:id/availability/restore (owner).
func (h *ProductHandler) RestoreDates(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product ID")
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.DateRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	restored, err := h.availability.RestoreDates(c.Request.Context(), actor, productID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"restored": restored})
}

// ListPrices handles GET /api/v1/products/:id/prices.
func (h *ProductHandler) ListPrices(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product ID")
		return
	}

	result, err := h.prices.ListPriceRecords(c.Request.Context(), productID, c.Query("country_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreatePrice handles POST /api/v1/products/:id/prices (owner).
func (h *ProductHandler) CreatePrice(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product ID")
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreatePriceRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.prices.CreatePriceRecord(c.Request.Context(), actor, productID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Quote handles GET /api/v1/products/:id/quote.
func (h *ProductHandler) Quote(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product ID")
		return
	}

	var req application.QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.prices.Quote(c.Request.Context(), productID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeactivatePrice handles DELETE /api/v1/prices/:id (owner).
func (h *ProductHandler) DeactivatePrice(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid price record ID")
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.prices.DeactivatePriceRecord(c.Request.Context(), actor, recordID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
