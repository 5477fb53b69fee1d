package biddingerrors

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrCommitConflict  = errors.New("auction changed since it was read")
)

// business logic errors
var (
	ErrInvalidBid       = errors.New("invalid bid")
	ErrIdentityRequired = errors.New("authentication required")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrAuctionEnded     = errors.New("auction has ended")
	ErrSelfBid          = errors.New("cannot bid on your own auction")
	ErrBidTooLow        = errors.New("bid amount too low")
)

// BidTooLowError reports the value a rejected bid has to beat.
// It matches ErrBidTooLow with errors.Is.
type BidTooLowError struct {
	CurrentHighestBid float64
}

func NewBidTooLow(current float64) *BidTooLowError {
	return &BidTooLowError{CurrentHighestBid: current}
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: bid must be higher than current highest bid of %.2f", ErrBidTooLow, e.CurrentHighestBid)
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }
