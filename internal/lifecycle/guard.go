// Package lifecycle decides whether an auction accepts bids and moves
// expired auctions to the ended state.
package lifecycle

import (
	"fmt"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"
)

// CheckBiddable returns nil when the auction is open to bidding at now.
// Rules are evaluated in order: existence, status, end time.
// It has no side effects and is safe to call while a store holds a lock.
func CheckBiddable(auction *models.Auction, now time.Time) error {
	if auction == nil {
		return biddingerrors.ErrAuctionNotFound
	}
	if auction.Status != models.AuctionActive {
		return fmt.Errorf("%w: status is %s", biddingerrors.ErrAuctionNotActive, auction.Status)
	}
	if !now.Before(auction.EndTime) {
		return fmt.Errorf("%w: ended at %s", biddingerrors.ErrAuctionEnded, auction.EndTime.UTC().Format(time.RFC3339))
	}
	return nil
}

// Expired reports whether an active auction is past its end time and should be
// moved to ended by the sweeper.
func Expired(auction models.Auction, now time.Time) bool {
	return auction.Status == models.AuctionActive && !now.Before(auction.EndTime)
}
