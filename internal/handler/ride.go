package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goride/internal/domain"
	"goride/internal/middleware"
	"goride/internal/service"
)

// RideHandler handles rider facing ride requests.
type RideHandler struct {
	rideService *service.RideService
	logger      *zap.Logger
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService, logger *zap.Logger) *RideHandler {
	return &RideHandler{rideService: rideService, logger: logger}
}

// CreateRideRequest is the HTTP request body for requesting a ride.
type CreateRideRequest struct {
	PickupLocation      LocationDTO     `json:"pickupLocation"`
	DestinationLocation LocationDTO     `json:"destinationLocation"`
	Fare                decimal.Decimal `json:"fare"`
	PaymentMethod       string          `json:"paymentMethod,omitempty"`
}

// RateRideRequest is the HTTP request body for rating a ride.
type RateRideRequest struct {
	Rating int `json:"rating"`
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.Create(c.Request.Context(), service.CreateRideRequest{
		RiderID:       middleware.UserID(c),
		Pickup:        req.PickupLocation.toDomain(),
		Destination:   req.DestinationLocation.toDomain(),
		Fare:          req.Fare,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusCreated, rideResponse(ride))
}

// MyRides handles GET /v1/rides/me
func (h *RideHandler) MyRides(c *gin.Context) {
	rides, err := h.rideService.ListRiderRides(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponses(rides))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	ride, err := h.rideService.Cancel(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// RateRide handles POST /v1/rides/:id/rate
func (h *RideHandler) RateRide(c *gin.Context) {
	var req RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.Rate(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Rating)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}
