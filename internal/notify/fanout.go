package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:generate mockgen -source=fanout.go -destination=mock_fanout.go -package=notify

const (
	outbidTitle           = "You've been outbid!"
	defaultDeliverTimeout = 5 * time.Second
)

var amountPrinter = message.NewPrinter(language.English)

// Outcome is a committed bid together with the bid it displaced
type Outcome struct {
	Auction  models.Auction
	Bid      models.Bid
	Previous *models.Bid
}

// Notifier is told about every committed bid. It must not block the caller.
type Notifier interface {
	BidAccepted(ctx context.Context, outcome Outcome)
}

// Fanout broadcasts accepted bids and informs the outbid bidder.
// Delivery runs in the background and failures never reach the bidder.
type Fanout struct {
	publisher Publisher
	inbox     repository.NotificationStore
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewFanout(publisher Publisher, inbox repository.NotificationStore, timeout time.Duration) *Fanout {
	if timeout <= 0 {
		timeout = defaultDeliverTimeout
	}
	return &Fanout{publisher: publisher, inbox: inbox, timeout: timeout}
}

// BidAccepted schedules delivery and returns at once.
// The request context is detached so a closed client connection does not cancel delivery.
func (f *Fanout) BidAccepted(ctx context.Context, outcome Outcome) {
	ctx = context.WithoutCancel(ctx)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		f.deliver(ctx, outcome)
	}()
}

// Wait blocks until every scheduled delivery has finished
func (f *Fanout) Wait() {
	f.wg.Wait()
}

func (f *Fanout) deliver(ctx context.Context, o Outcome) {
	newBid := NewBidEvent{
		BidID:     o.Bid.BidID,
		AuctionID: o.Auction.AuctionID,
		UserID:    o.Bid.UserID,
		Username:  o.Bid.Username,
		Amount:    o.Bid.Amount,
		BidCount:  o.Auction.BidCount,
		Timestamp: o.Bid.CreatedAt,
	}
	if err := f.publisher.Publish(ctx, AuctionChannel(o.Auction.AuctionID), EventNewBid, newBid); err != nil {
		utils.Error("fanout: new-bid publish failed", map[string]any{
			"auction_id": o.Auction.AuctionID,
			"bid_id":     o.Bid.BidID,
			"error":      err.Error(),
		})
	}

	// a bidder raising their own winning bid is not outbid
	if o.Previous == nil || o.Previous.UserID == o.Bid.UserID {
		return
	}

	data := models.OutbidData{
		AuctionID:     o.Auction.AuctionID,
		AuctionTitle:  o.Auction.Title,
		NewHighestBid: o.Bid.Amount,
		YourBid:       o.Previous.Amount,
	}
	f.persistOutbid(ctx, o, data)

	if err := f.publisher.Publish(ctx, UserChannel(o.Previous.UserID), EventOutbid, data); err != nil {
		utils.Error("fanout: outbid publish failed", map[string]any{
			"auction_id": o.Auction.AuctionID,
			"user_id":    o.Previous.UserID,
			"error":      err.Error(),
		})
	}
}

func (f *Fanout) persistOutbid(ctx context.Context, o Outcome, data models.OutbidData) {
	raw, err := json.Marshal(data)
	if err != nil {
		utils.Error("fanout: marshal outbid data", map[string]any{"error": err.Error()})
		return
	}

	n := models.Notification{
		NotificationID: utils.GenerateID(),
		UserID:         o.Previous.UserID,
		Type:           models.NotificationOutbid,
		Title:          outbidTitle,
		Message:        OutbidMessage(o.Bid.Amount, o.Auction.Title),
		Data:           raw,
		CreatedAt:      time.Now().UTC(),
	}
	if err := f.inbox.CreateNotification(ctx, n); err != nil {
		utils.Error("fanout: persist outbid notification failed", map[string]any{
			"auction_id": o.Auction.AuctionID,
			"user_id":    o.Previous.UserID,
			"error":      err.Error(),
		})
	}
}

// OutbidMessage renders the human-readable outbid text, e.g.
// Someone placed a higher bid of $1,250.5 on "Vintage Camera"
func OutbidMessage(amount float64, title string) string {
	return amountPrinter.Sprintf("Someone placed a higher bid of $%v on \"%s\"", amount, title)
}
