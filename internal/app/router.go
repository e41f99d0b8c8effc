package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	OrderHandler  *handler.OrderHandler
	DriverHandler *handler.DriverHandler
	EventsHandler *handler.EventsHandler
	RedisClient   *redis.Client
	NewRelicApp   *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Order routes.
		orders := v1.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.CreateOrder)
			orders.GET("", deps.OrderHandler.ListOrders)
			orders.GET("/visible", deps.OrderHandler.ListVisibleOrders)
			orders.GET("/stream", deps.EventsHandler.Stream)
			orders.GET("/:id", deps.OrderHandler.GetOrder)
			orders.GET("/:id/history", deps.OrderHandler.GetHistory)
			orders.POST("/:id/accept", deps.OrderHandler.AcceptOrder)
			orders.POST("/:id/status", deps.OrderHandler.AdvanceStatus)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.GET("/nearby", deps.DriverHandler.NearbyDrivers)
			drivers.POST("/:id/location", deps.DriverHandler.ReportPosition)
			drivers.GET("/:id/location", deps.DriverHandler.GetPosition)
		}
	}

	return router
}
