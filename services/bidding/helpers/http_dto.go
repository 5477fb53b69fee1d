package helpers

import model "auction-house/internal/models"

// Request/Response DTOs
type SubmitBidRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type BidResponse struct {
	BidID     string  `json:"bid_id"`
	AuctionID string  `json:"auction_id"`
	Amount    float64 `json:"amount"`
	Username  string  `json:"username"`
	BidCount  int64   `json:"bid_count"`
	CreatedAt string  `json:"created_at"`
}

type AuctionDetailResponse struct {
	Auction    model.Auction `json:"auction"`
	RecentBids []model.Bid   `json:"recent_bids"`
}

type HealthResponse struct {
	Store string `json:"store"`
}
