package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goride/internal/domain"
	"goride/internal/handler"
	"goride/internal/middleware"
	"goride/internal/realtime"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	DriverHandler  *handler.DriverHandler
	AdminHandler   *handler.AdminHandler
	PaymentHandler *handler.PaymentHandler
	Hub            *realtime.Hub
	Tokens         *middleware.TokenParser
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	Logger         *zap.Logger
	AllowedOrigin  string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigin))
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Websocket clients authenticate with their first message.
	router.GET("/ws", gin.WrapF(deps.Hub.ServeWS))

	v1 := router.Group("/v1")

	// Gateway callbacks are unauthenticated and arrive as POST or GET.
	callbacks := v1.Group("/payments")
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		callbacks.Handle(method, "/success", deps.PaymentHandler.Success)
		callbacks.Handle(method, "/fail", deps.PaymentHandler.Fail)
		callbacks.Handle(method, "/cancel", deps.PaymentHandler.Cancel)
	}

	authed := v1.Group("")
	authed.Use(middleware.Auth(deps.Tokens))
	if deps.RedisClient != nil {
		authed.Use(middleware.Idempotency(deps.RedisClient, deps.Logger))
	}

	rider := middleware.RequireRole(string(domain.RoleRider))
	driver := middleware.RequireRole(string(domain.RoleDriver))
	admin := middleware.RequireRole(string(domain.RoleAdmin))

	rides := authed.Group("/rides", rider)
	{
		rides.POST("", deps.RideHandler.CreateRide)
		rides.GET("/me", deps.RideHandler.MyRides)
		rides.GET("/:id", deps.RideHandler.GetRide)
		rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
		rides.POST("/:id/rate", deps.RideHandler.RateRide)
	}

	// Any signed-in user may apply to drive.
	authed.POST("/drivers/register", deps.DriverHandler.Register)

	drivers := authed.Group("/drivers", driver)
	{
		drivers.GET("/me", deps.DriverHandler.Profile)
		drivers.PATCH("/availability", deps.DriverHandler.SetAvailability)
		drivers.GET("/rides/available", deps.DriverHandler.AvailableRides)
		drivers.GET("/rides/active", deps.DriverHandler.ActiveRides)
		drivers.POST("/rides/:id/accept", deps.DriverHandler.AcceptRide)
		drivers.POST("/rides/:id/reject", deps.DriverHandler.RejectRide)
		drivers.POST("/rides/:id/advance", deps.DriverHandler.AdvanceRide)
		drivers.GET("/history", deps.DriverHandler.History)
		drivers.GET("/earnings", deps.DriverHandler.Earnings)
		drivers.GET("/stats", deps.DriverHandler.Stats)
	}

	admins := authed.Group("/admin", admin)
	{
		admins.POST("/drivers/:userId/approve", deps.AdminHandler.ApproveDriver)
		admins.POST("/drivers/:userId/suspend", deps.AdminHandler.SuspendDriver)
		admins.POST("/drivers/:userId/block", deps.AdminHandler.BlockDriver)
	}

	payments := authed.Group("/payments")
	{
		payments.POST("/init/:rideId", rider, deps.PaymentHandler.InitPayment)
		payments.GET("/invoice/:paymentId", deps.PaymentHandler.GetInvoice)
	}

	return router
}
