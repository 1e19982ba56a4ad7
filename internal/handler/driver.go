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

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService   *service.DriverService
	rideService     *service.RideService
	matchingService *service.MatchingService
	logger          *zap.Logger
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(
	driverService *service.DriverService,
	rideService *service.RideService,
	matchingService *service.MatchingService,
	logger *zap.Logger,
) *DriverHandler {
	return &DriverHandler{
		driverService:   driverService,
		rideService:     rideService,
		matchingService: matchingService,
		logger:          logger,
	}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	VehicleType  string `json:"vehicleType"`
	VehiclePlate string `json:"vehiclePlate"`
}

// AvailabilityRequest is the HTTP request body for going online or offline.
type AvailabilityRequest struct {
	Online *bool `json:"online"`
}

// HistoryResponse is a driver's ride history with totals.
type HistoryResponse struct {
	TotalRides     int             `json:"totalRides"`
	CompletedRides int             `json:"completedRides"`
	TotalEarnings  decimal.Decimal `json:"totalEarnings"`
	AverageRating  float64         `json:"averageRating"`
	Rides          []RideResponse  `json:"rides"`
}

// EarningsResponse breaks a driver's earnings down by period.
type EarningsResponse struct {
	Today   service.EarningsWindow `json:"today"`
	Week    service.EarningsWindow `json:"week"`
	Month   service.EarningsWindow `json:"month"`
	AllTime service.EarningsWindow `json:"allTime"`
	Recent  []RideResponse         `json:"recentRides"`
}

// StatsResponse is the driver dashboard summary.
type StatsResponse struct {
	TodayEarnings decimal.Decimal `json:"todayEarnings"`
	TodayRides    int             `json:"todayRides"`
	TotalRides    int             `json:"totalRides"`
	AverageRating float64         `json:"averageRating"`
	RecentRides   []RideResponse  `json:"recentRides"`
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	driver, err := h.driverService.Register(c.Request.Context(), service.RegisterDriverRequest{
		UserID:  middleware.UserID(c),
		Vehicle: domain.Vehicle{Type: req.VehicleType, Plate: req.VehiclePlate},
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusCreated, driverResponse(driver))
}

// Profile handles GET /v1/drivers/me
func (h *DriverHandler) Profile(c *gin.Context) {
	driver, err := h.driverService.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, driverResponse(driver))
}

// SetAvailability handles PATCH /v1/drivers/availability
func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
		badRequest(c, "online is required")
		return
	}

	driver, err := h.driverService.SetAvailability(c.Request.Context(), middleware.UserID(c), *req.Online)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, driverResponse(driver))
}

// AvailableRides handles GET /v1/drivers/rides/available
func (h *DriverHandler) AvailableRides(c *gin.Context) {
	rides, err := h.rideService.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponses(rides))
}

// AcceptRide handles POST /v1/drivers/rides/:id/accept
func (h *DriverHandler) AcceptRide(c *gin.Context) {
	ride, err := h.matchingService.Accept(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// RejectRide handles POST /v1/drivers/rides/:id/reject
func (h *DriverHandler) RejectRide(c *gin.Context) {
	ride, err := h.matchingService.Reject(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// AdvanceRide handles POST /v1/drivers/rides/:id/advance
func (h *DriverHandler) AdvanceRide(c *gin.Context) {
	ride, err := h.rideService.Advance(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// History handles GET /v1/drivers/history
func (h *DriverHandler) History(c *gin.Context) {
	history, err := h.rideService.DriverHistory(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, HistoryResponse{
		TotalRides:     history.TotalRides,
		CompletedRides: history.CompletedRides,
		TotalEarnings:  history.TotalEarnings,
		AverageRating:  history.AverageRating,
		Rides:          rideResponses(history.Rides),
	})
}

// ActiveRides handles GET /v1/drivers/rides/active
func (h *DriverHandler) ActiveRides(c *gin.Context) {
	rides, err := h.rideService.DriverActiveRides(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponses(rides))
}

// Earnings handles GET /v1/drivers/earnings
func (h *DriverHandler) Earnings(c *gin.Context) {
	earnings, err := h.rideService.DriverEarnings(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, EarningsResponse{
		Today:   earnings.Today,
		Week:    earnings.Week,
		Month:   earnings.Month,
		AllTime: earnings.AllTime,
		Recent:  rideResponses(earnings.Recent),
	})
}

// Stats handles GET /v1/drivers/stats
func (h *DriverHandler) Stats(c *gin.Context) {
	stats, err := h.rideService.DriverStats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, StatsResponse{
		TodayEarnings: stats.TodayEarnings,
		TodayRides:    stats.TodayRides,
		TotalRides:    stats.TotalRides,
		AverageRating: stats.AverageRating,
		RecentRides:   rideResponses(stats.RecentRides),
	})
}
