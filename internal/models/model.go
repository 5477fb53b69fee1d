package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionPending AuctionStatus = "pending"
	AuctionActive  AuctionStatus = "active"
	AuctionEnded   AuctionStatus = "ended"
)

// BidStatus tells whether a bid currently leads its auction
type BidStatus string

const (
	BidWinning BidStatus = "winning"
	BidOutbid  BidStatus = "outbid"
)

// NotificationOutbid is the only durable notification type produced by settlement
const NotificationOutbid = "outbid"

// User represents a participant in the auction
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Auction represents a time-boxed listing accepting bids.
// CurrentHighestBid and BidCount are written only by a bid commit.
type Auction struct {
	AuctionID         string        `gorm:"primaryKey;size:64" json:"auction_id"`
	Title             string        `gorm:"size:256;not null" json:"title"`
	Description       string        `json:"description"`
	Category          string        `gorm:"size:64;index" json:"category"`
	StartingBid       float64       `gorm:"not null" json:"starting_bid"`
	CurrentHighestBid float64       `gorm:"not null" json:"current_highest_bid"`
	ReservePrice      *float64      `json:"reserve_price,omitempty"`
	BuyNowPrice       *float64      `json:"buy_now_price,omitempty"`
	Status            AuctionStatus `gorm:"size:16;not null;index" json:"status"`
	StartTime         time.Time     `gorm:"not null" json:"start_time"`
	EndTime           time.Time     `gorm:"not null;index" json:"end_time"`
	BidCount          int64         `gorm:"not null;default:0" json:"bid_count"`
	SellerID          string        `gorm:"size:64;not null" json:"seller_id"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (Auction) TableName() string { return "auctions" }

// Bid represents a user's accepted bid on an auction.
// Only Status changes after the bid is recorded.
type Bid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Amount    float64   `json:"amount"`
	Status    BidStatus `json:"status"`
	IsAutoBid bool      `json:"is_auto_bid"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is a durable message addressed to one user
type Notification struct {
	NotificationID string         `gorm:"primaryKey;size:64" json:"notification_id"`
	UserID         string         `gorm:"size:64;not null;index" json:"user_id"`
	Type           string         `gorm:"size:32;not null" json:"type"`
	Title          string         `gorm:"size:256" json:"title"`
	Message        string         `json:"message"`
	Data           datatypes.JSON `json:"data"`
	IsRead         bool           `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// OutbidData is the structured payload of an outbid notification and event
type OutbidData struct {
	AuctionID     string  `json:"auction_id"`
	AuctionTitle  string  `json:"auction_title"`
	NewHighestBid float64 `json:"new_highest_bid"`
	YourBid       float64 `json:"your_bid"`
}

// BidResult is returned to the bidder once a bid has been committed
type BidResult struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	Amount    float64   `json:"amount"`
	Username  string    `json:"username"`
	BidCount  int64     `json:"bid_count"`
	CreatedAt time.Time `json:"created_at"`
}
