package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/identity"
	"auction-house/internal/lifecycle"
	"auction-house/internal/models"
	"auction-house/internal/notify"
	"auction-house/internal/repository"
	"auction-house/utils"
)

const (
	DefaultBidHistoryLimit = 20
	MaxBidHistoryLimit     = 100
	AuctionDetailBids      = 10

	// a conflicting commit is retried once against a fresh read
	maxCommitAttempts = 2
)

// BiddingService settles bids: it validates a submission, commits it through the
// store's conditional commit and hands the outcome to the notifier.
type BiddingService struct {
	repo     repository.AuctionDB
	notifier notify.Notifier
	now      func() time.Time
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, notifier notify.Notifier) *BiddingService {
	return &BiddingService{
		repo:     repo,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitBid validates and commits a bid by bidder on an auction.
// Rejections leave the auction and its bids untouched.
func (s *BiddingService) SubmitBid(ctx context.Context, auctionID string, bidder models.User, amount float64) (models.BidResult, error) {
	if err := validateSubmission(auctionID, bidder, amount); err != nil {
		return models.BidResult{}, err
	}
	amount = lifecycle.RoundAmount(amount)

	bid := models.Bid{
		BidID:     utils.GenerateID(),
		AuctionID: auctionID,
		UserID:    bidder.UserID,
		Username:  bidder.Username,
		Amount:    amount,
	}

	for attempt := 1; ; attempt++ {
		auction, err := s.repo.GetAuction(ctx, auctionID)
		if err != nil {
			return models.BidResult{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
		}

		now := s.now()
		if err := checkEligible(auction, bidder, amount, now); err != nil {
			return models.BidResult{}, err
		}

		bid.CreatedAt = now
		res, err := s.repo.CommitBid(ctx, repository.BidCommit{
			Bid:              bid,
			ExpectedBidCount: auction.BidCount,
			Now:              now,
		})
		if err == nil {
			s.notifier.BidAccepted(ctx, notify.Outcome{Auction: res.Auction, Bid: res.Bid, Previous: res.Previous})
			utils.Info("bid accepted", map[string]any{
				"auction_id": auctionID,
				"bid_id":     res.Bid.BidID,
				"user_id":    bidder.UserID,
				"amount":     res.Bid.Amount,
				"bid_count":  res.Auction.BidCount,
			})
			return models.BidResult{
				BidID:     res.Bid.BidID,
				AuctionID: res.Auction.AuctionID,
				Amount:    res.Bid.Amount,
				Username:  res.Bid.Username,
				BidCount:  res.Auction.BidCount,
				CreatedAt: res.Bid.CreatedAt,
			}, nil
		}

		switch {
		case isStateError(err):
			return models.BidResult{}, fmt.Errorf("service: %w", err)
		case !errors.Is(err, biddingerrors.ErrCommitConflict):
			return models.BidResult{}, fmt.Errorf("service: failed to commit bid on auction %s: %w", auctionID, err)
		}

		utils.Debug("bid commit conflict", map[string]any{"auction_id": auctionID, "attempt": attempt})
		if attempt >= maxCommitAttempts {
			return models.BidResult{}, s.settleConflict(ctx, auctionID, bidder, amount)
		}
	}
}

// settleConflict tells the loser of a repeated race why it lost, using the value
// it lost to. If the bid would still lead, the race is reported as a conflict.
func (s *BiddingService) settleConflict(ctx context.Context, auctionID string, bidder models.User, amount float64) error {
	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	if err := checkEligible(auction, bidder, amount, s.now()); err != nil {
		return err
	}
	return fmt.Errorf("service: %w - auction %s is receiving bids too quickly, retry", biddingerrors.ErrCommitConflict, auctionID)
}

// validateSubmission rejects malformed input before the store is touched
func validateSubmission(auctionID string, bidder models.User, amount float64) error {
	if bidder.UserID == "" {
		return fmt.Errorf("service: %w", biddingerrors.ErrIdentityRequired)
	}
	if auctionID == "" {
		return fmt.Errorf("service: %w - missing auction ID", biddingerrors.ErrInvalidBid)
	}
	if !lifecycle.ValidAmount(amount) {
		return fmt.Errorf("service: %w - amount must be a positive number no greater than %.2f", biddingerrors.ErrInvalidBid, lifecycle.MaxAmount)
	}
	return nil
}

// checkEligible applies the state rules in order: lifecycle, ownership, amount
func checkEligible(auction models.Auction, bidder models.User, amount float64, now time.Time) error {
	if err := lifecycle.CheckBiddable(&auction, now); err != nil {
		return fmt.Errorf("service: %w", err)
	}
	if identity.OwnsAuction(bidder, auction) {
		return fmt.Errorf("service: %w", biddingerrors.ErrSelfBid)
	}
	if !lifecycle.Exceeds(amount, auction.CurrentHighestBid) {
		return fmt.Errorf("service: %w", biddingerrors.NewBidTooLow(auction.CurrentHighestBid))
	}
	return nil
}

func isStateError(err error) bool {
	return errors.Is(err, biddingerrors.ErrAuctionNotFound) ||
		errors.Is(err, biddingerrors.ErrAuctionNotActive) ||
		errors.Is(err, biddingerrors.ErrAuctionEnded) ||
		errors.Is(err, biddingerrors.ErrBidTooLow)
}

// GetAuction returns an auction with its latest committed state
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// ListRecentBids returns an auction's bids, most recent first.
// A non-positive limit means the default, larger limits are capped.
func (s *BiddingService) ListRecentBids(ctx context.Context, auctionID string, limit int) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.ListRecentBids(ctx, auctionID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// ListNotifications returns a user's durable notifications, newest first
func (s *BiddingService) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w", biddingerrors.ErrIdentityRequired)
	}

	notifications, err := s.repo.ListNotifications(ctx, userID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("service: failed to get notifications for user %s: %w", userID, err)
	}
	return notifications, nil
}

// Ping checks that the store is reachable
func (s *BiddingService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultBidHistoryLimit
	case limit > MaxBidHistoryLimit:
		return MaxBidHistoryLimit
	default:
		return limit
	}
}
