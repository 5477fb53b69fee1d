package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	bidding "auction-house/internal/biddingService"
	"auction-house/internal/biddingerrors"
	model "auction-house/internal/models"
	"auction-house/internal/notify"
	"auction-house/services/bidding/helpers"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_handler.go -package=handler

const sseHeartbeat = 15 * time.Second

type BiddingServiceInterface interface {
	SubmitBid(ctx context.Context, auctionID string, bidder model.User, amount float64) (model.BidResult, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	ListRecentBids(ctx context.Context, auctionID string, limit int) ([]model.Bid, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	Ping(ctx context.Context) error
}

// Subscriber hands out live event streams for a channel
type Subscriber interface {
	Subscribe(channel string) (<-chan notify.Envelope, func())
}

type BiddingHandler struct {
	service BiddingServiceInterface
	events  Subscriber
}

func NewBiddingHandler(service BiddingServiceInterface, events Subscriber) *BiddingHandler {
	return &BiddingHandler{service: service, events: events}
}

// SubmitBidHandler handles POST /auctions/:auction_id/bids
func (h *BiddingHandler) SubmitBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	user, ok := helpers.CurrentUser(c)
	if !ok {
		helpers.WriteServiceError(c, biddingerrors.ErrIdentityRequired)
		return
	}

	var req helpers.SubmitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "SubmitBidHandler", err)
		return
	}

	result, err := h.service.SubmitBid(c.Request.Context(), auctionID, user, req.Amount)
	if err != nil {
		helpers.WriteServiceError(c, err)
		status, _ := helpers.MapErrorToHTTP(err)
		fields := map[string]any{
			"handler":    "SubmitBidHandler",
			"auction_id": auctionID,
			"user_id":    user.UserID,
			"amount":     req.Amount,
			"error":      err.Error(),
		}
		if status >= http.StatusInternalServerError {
			utils.Error("SubmitBidHandler: failed to submit bid", fields)
		} else {
			utils.Info("SubmitBidHandler: bid rejected", fields)
		}
		return
	}

	resp := helpers.BidResponse{
		BidID:     result.BidID,
		AuctionID: result.AuctionID,
		Amount:    result.Amount,
		Username:  result.Username,
		BidCount:  result.BidCount,
		CreatedAt: result.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid placed successfully")
	helpers.LogSuccess("SubmitBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     result.BidID,
		"auction_id": result.AuctionID,
		"user_id":    user.UserID,
		"amount":     result.Amount,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.WriteServiceError(c, err)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	bids, err := h.service.ListRecentBids(c.Request.Context(), auctionID, bidding.AuctionDetailBids)
	if err != nil {
		helpers.WriteServiceError(c, err)
		utils.Warn("GetAuctionHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}
	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, helpers.AuctionDetailResponse{Auction: auction, RecentBids: bids}, "auction retrieved successfully")
}

// ListBidsHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) ListBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	limit, err := helpers.ParseLimit(c)
	if err != nil {
		helpers.WriteServiceError(c, err)
		return
	}

	bids, err := h.service.ListRecentBids(c.Request.Context(), auctionID, limit)
	if err != nil {
		helpers.WriteServiceError(c, err)
		utils.Warn("ListBidsHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
	helpers.LogSuccess("ListBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// ListNotificationsHandler handles GET /me/notifications
func (h *BiddingHandler) ListNotificationsHandler(c *gin.Context) {
	user, ok := helpers.CurrentUser(c)
	if !ok {
		helpers.WriteServiceError(c, biddingerrors.ErrIdentityRequired)
		return
	}

	limit, err := helpers.ParseLimit(c)
	if err != nil {
		helpers.WriteServiceError(c, err)
		return
	}

	notifications, err := h.service.ListNotifications(c.Request.Context(), user.UserID, limit)
	if err != nil {
		helpers.WriteServiceError(c, err)
		utils.Warn("ListNotificationsHandler: error retrieving notifications", map[string]any{"user_id": user.UserID, "error": err.Error()})
		return
	}

	if notifications == nil {
		notifications = []model.Notification{}
	}

	utils.JSONResponse(c, http.StatusOK, notifications, "notifications retrieved successfully")
}

// AuctionEventsHandler handles GET /auctions/:auction_id/events
func (h *BiddingHandler) AuctionEventsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	// 404 before opening a stream nobody will ever write to
	if _, err := h.service.GetAuction(c.Request.Context(), auctionID); err != nil {
		helpers.WriteServiceError(c, err)
		return
	}
	h.stream(c, notify.AuctionChannel(auctionID))
}

// UserEventsHandler handles GET /me/events
func (h *BiddingHandler) UserEventsHandler(c *gin.Context) {
	user, ok := helpers.CurrentUser(c)
	if !ok {
		helpers.WriteServiceError(c, biddingerrors.ErrIdentityRequired)
		return
	}
	h.stream(c, notify.UserChannel(user.UserID))
}

// stream relays a channel as server-sent events until the client goes away
func (h *BiddingHandler) stream(c *gin.Context, channel string) {
	events, cancel := h.events.Subscribe(channel)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(env.Event, env.Payload)
			c.Writer.Flush()
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC().Format(time.RFC3339)})
			c.Writer.Flush()
		}
	}
}

// HealthHandler handles GET /health
func (h *BiddingHandler) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, fmt.Errorf("store ping: %w", err), "store unavailable")
		utils.Error("HealthHandler: store ping failed", map[string]any{"error": err.Error()})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.HealthResponse{Store: "ok"}, "healthy")
}
