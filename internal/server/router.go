package server

import (
	"time"

	"auction-house/internal/identity"
	handler "auction-house/services/bidding/handler"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// Deps are the collaborators the HTTP layer is built from
type Deps struct {
	Service  handler.BiddingServiceInterface
	Events   handler.Subscriber
	Identity identity.Provider

	// Redis enables per-user bid rate limiting when set
	Redis         *rd.Client
	BidRateLimit  int
	BidRateWindow time.Duration
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(deps Deps) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(deps.Service, deps.Events)
	auth := AuthMiddleware(deps.Identity)

	router.GET("/health", biddingHandler.HealthHandler)

	bidChain := []gin.HandlerFunc{auth}
	if deps.Redis != nil {
		bidChain = append(bidChain, RedisRateLimit(deps.Redis, deps.BidRateLimit, deps.BidRateWindow))
	}
	bidChain = append(bidChain, biddingHandler.SubmitBidHandler)

	auctions := router.Group("/auctions")
	{
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.ListBidsHandler)
		auctions.POST("/:auction_id/bids", bidChain...)
		auctions.GET("/:auction_id/events", biddingHandler.AuctionEventsHandler)
	}

	me := router.Group("/me", auth)
	{
		me.GET("/notifications", biddingHandler.ListNotificationsHandler)
		me.GET("/events", biddingHandler.UserEventsHandler)
	}

	return router
}
