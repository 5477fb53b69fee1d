// Package notify fans settlement outcomes out to live subscribers, message
// brokers and the durable notification inbox.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

//go:generate mockgen -source=publisher.go -destination=mock_publisher.go -package=notify

const (
	EventNewBid = "new-bid"
	EventOutbid = "outbid"
)

// AuctionChannel is the public channel every viewer of an auction listens on
func AuctionChannel(auctionID string) string {
	return fmt.Sprintf("auction-%s", auctionID)
}

// UserChannel is a user's private channel
func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// Publisher delivers one event to one channel. Delivery is at-most-once and
// nothing is persisted.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// Envelope is the wire form of a published event
type Envelope struct {
	Channel     string    `json:"channel"`
	Event       string    `json:"event"`
	Payload     any       `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}

// NewBidEvent is published on the auction channel for every accepted bid
type NewBidEvent struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Amount    float64   `json:"amount"`
	BidCount  int64     `json:"bid_count"`
	Timestamp time.Time `json:"timestamp"`
}

// Multi publishes to every publisher and joins their errors.
// One failing transport does not stop the others.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, channel, event string, payload any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, channel, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
