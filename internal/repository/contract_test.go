package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"
	"auction-house/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// storeUnderTest is what every AuctionDB implementation is checked against
type storeUnderTest interface {
	AuctionDB
	Seeder
}

// seedAuction adds an active auction owned by "seller" ending in one hour
func seedAuction(t *testing.T, store storeUnderTest, startingBid float64) models.Auction {
	t.Helper()
	auction := models.Auction{
		AuctionID:   utils.GenerateID(),
		Title:       "Vintage camera",
		Description: "Vintage camera description",
		Category:    "electronics",
		StartingBid: startingBid,
		Status:      models.AuctionActive,
		EndTime:     time.Now().UTC().Add(time.Hour),
		SellerID:    "seller",
	}
	require.NoError(t, store.AddAuction(context.Background(), auction))
	got, err := store.GetAuction(context.Background(), auction.AuctionID)
	require.NoError(t, err)
	return got
}

// newCommit builds a commit for amount by userID against the auction's current bid count
func newCommit(auction models.Auction, userID string, amount float64) BidCommit {
	now := time.Now().UTC()
	return BidCommit{
		Bid: models.Bid{
			BidID:     utils.GenerateID(),
			AuctionID: auction.AuctionID,
			UserID:    userID,
			Username:  "name-" + userID,
			Amount:    amount,
			CreatedAt: now,
		},
		ExpectedBidCount: auction.BidCount,
		Now:              now,
	}
}

func runLedgerContract(t *testing.T, newStore func(t *testing.T) storeUnderTest) {
	ctx := context.Background()

	t.Run("add_auction_starts_at_starting_bid", func(t *testing.T) {
		store := newStore(t)
		auction := seedAuction(t, store, 10000)
		require.Equal(t, 10000.0, auction.CurrentHighestBid)
		require.Equal(t, int64(0), auction.BidCount)
		require.Equal(t, models.AuctionActive, auction.Status)
	})

	t.Run("get_unknown_auction", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetAuction(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)

		_, err = store.ListRecentBids(ctx, "missing", 10)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})

	t.Run("commit_sequence_demotes_previous_winner", func(t *testing.T) {
		store := newStore(t)
		auction := seedAuction(t, store, 10000)

		first, err := store.CommitBid(ctx, newCommit(auction, "alice", 10500))
		require.NoError(t, err)
		require.Nil(t, first.Previous)
		require.Equal(t, models.BidWinning, first.Bid.Status)
		require.Equal(t, 10500.0, first.Auction.CurrentHighestBid)
		require.Equal(t, int64(1), first.Auction.BidCount)

		second, err := store.CommitBid(ctx, newCommit(first.Auction, "bob", 11000))
		require.NoError(t, err)
		require.NotNil(t, second.Previous)
		require.Equal(t, first.Bid.BidID, second.Previous.BidID)
		require.Equal(t, "alice", second.Previous.UserID)
		require.Equal(t, 10500.0, second.Previous.Amount)
		require.Equal(t, models.BidOutbid, second.Previous.Status)
		require.Equal(t, int64(2), second.Auction.BidCount)

		stored, err := store.GetAuction(ctx, auction.AuctionID)
		require.NoError(t, err)
		require.Equal(t, 11000.0, stored.CurrentHighestBid)
		require.Equal(t, int64(2), stored.BidCount)

		bids, err := store.ListRecentBids(ctx, auction.AuctionID, 10)
		require.NoError(t, err)
		require.Len(t, bids, 2)
		require.Equal(t, second.Bid.BidID, bids[0].BidID)
		require.Equal(t, models.BidWinning, bids[0].Status)
		require.Equal(t, first.Bid.BidID, bids[1].BidID)
		require.Equal(t, models.BidOutbid, bids[1].Status)
	})

	t.Run("stale_bid_count_conflicts_without_mutation", func(t *testing.T) {
		store := newStore(t)
		auction := seedAuction(t, store, 100)

		_, err := store.CommitBid(ctx, newCommit(auction, "alice", 150))
		require.NoError(t, err)

		// auction is the pre-commit snapshot, so its bid count is stale
		_, err = store.CommitBid(ctx, newCommit(auction, "bob", 500))
		require.ErrorIs(t, err, biddingerrors.ErrCommitConflict)

		stored, err := store.GetAuction(ctx, auction.AuctionID)
		require.NoError(t, err)
		require.Equal(t, 150.0, stored.CurrentHighestBid)
		require.Equal(t, int64(1), stored.BidCount)

		bids, err := store.ListRecentBids(ctx, auction.AuctionID, 0)
		require.NoError(t, err)
		require.Len(t, bids, 1)
	})

	t.Run("equal_amount_rejected_with_current_value", func(t *testing.T) {
		store := newStore(t)
		auction := seedAuction(t, store, 10000)

		_, err := store.CommitBid(ctx, newCommit(auction, "alice", 10000))
		require.ErrorIs(t, err, biddingerrors.ErrBidTooLow)
		var tooLow *biddingerrors.BidTooLowError
		require.True(t, errors.As(err, &tooLow))
		require.Equal(t, 10000.0, tooLow.CurrentHighestBid)

		stored, err := store.GetAuction(ctx, auction.AuctionID)
		require.NoError(t, err)
		require.Equal(t, int64(0), stored.BidCount)
	})

	t.Run("commit_rechecks_end_time", func(t *testing.T) {
		store := newStore(t)
		auction := seedAuction(t, store, 100)

		commit := newCommit(auction, "alice", 200)
		commit.Now = auction.EndTime.Add(time.Second)
		_, err := store.CommitBid(ctx, commit)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionEnded)

		bids, err := store.ListRecentBids(ctx, auction.AuctionID, 0)
		require.NoError(t, err)
		require.Empty(t, bids)
	})

	t.Run("commit_rechecks_status", func(t *testing.T) {
		store := newStore(t)
		auction := models.Auction{
			AuctionID:   utils.GenerateID(),
			Title:       "Pending lot",
			StartingBid: 100,
			Status:      models.AuctionPending,
			EndTime:     time.Now().UTC().Add(time.Hour),
			SellerID:    "seller",
		}
		require.NoError(t, store.AddAuction(ctx, auction))
		stored, err := store.GetAuction(ctx, auction.AuctionID)
		require.NoError(t, err)

		_, err = store.CommitBid(ctx, newCommit(stored, "alice", 200))
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotActive)
	})

	t.Run("commit_unknown_auction", func(t *testing.T) {
		store := newStore(t)
		_, err := store.CommitBid(ctx, newCommit(models.Auction{AuctionID: "missing"}, "alice", 200))
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})

	t.Run("list_recent_bids_limit", func(t *testing.T) {
		store := newStore(t)
		auction := seedAuction(t, store, 0)

		var lastID string
		for i := 1; i <= 5; i++ {
			res, err := store.CommitBid(ctx, newCommit(auction, fmt.Sprintf("user-%d", i), float64(i*10)))
			require.NoError(t, err)
			auction = res.Auction
			lastID = res.Bid.BidID
		}

		bids, err := store.ListRecentBids(ctx, auction.AuctionID, 3)
		require.NoError(t, err)
		require.Len(t, bids, 3)
		require.Equal(t, lastID, bids[0].BidID)
		require.Equal(t, 50.0, bids[0].Amount)
		require.Equal(t, 40.0, bids[1].Amount)
		require.Equal(t, 30.0, bids[2].Amount)
	})

	t.Run("concurrent_commits_linearize", func(t *testing.T) {
		store := newStore(t)
		auction := seedAuction(t, store, 100)

		var wg sync.WaitGroup
		var mu sync.Mutex
		var accepted []float64
		concurrentCount := 20

		for i := 0; i < concurrentCount; i++ {
			wg.Add(1)
			i := i
			go func() {
				defer wg.Done()
				snapshot, err := store.GetAuction(ctx, auction.AuctionID)
				require.NoError(t, err)
				amount := float64(200 + i)
				res, err := store.CommitBid(ctx, newCommit(snapshot, fmt.Sprintf("user-%d", i), amount))
				if err != nil {
					if !errors.Is(err, biddingerrors.ErrCommitConflict) && !errors.Is(err, biddingerrors.ErrBidTooLow) {
						t.Errorf("unexpected commit error: %v", err)
					}
					return
				}
				mu.Lock()
				accepted = append(accepted, res.Bid.Amount)
				mu.Unlock()
			}()
		}
		wg.Wait()

		require.NotEmpty(t, accepted)
		stored, err := store.GetAuction(ctx, auction.AuctionID)
		require.NoError(t, err)
		require.Equal(t, int64(len(accepted)), stored.BidCount)

		maxAccepted := accepted[0]
		for _, a := range accepted {
			if a > maxAccepted {
				maxAccepted = a
			}
		}
		require.Equal(t, maxAccepted, stored.CurrentHighestBid)

		bids, err := store.ListRecentBids(ctx, auction.AuctionID, 0)
		require.NoError(t, err)
		require.Len(t, bids, len(accepted))
		winners := 0
		for _, b := range bids {
			if b.Status == models.BidWinning {
				winners++
				require.Equal(t, maxAccepted, b.Amount)
			}
		}
		require.Equal(t, 1, winners)
	})

	t.Run("end_expired_auctions", func(t *testing.T) {
		store := newStore(t)
		live := seedAuction(t, store, 100)

		past := models.Auction{
			AuctionID:   utils.GenerateID(),
			Title:       "Expired lot",
			StartingBid: 100,
			Status:      models.AuctionActive,
			StartTime:   time.Now().UTC().Add(-2 * time.Hour),
			EndTime:     time.Now().UTC().Add(-time.Hour),
			SellerID:    "seller",
		}
		require.NoError(t, store.AddAuction(ctx, past))

		n, err := store.EndExpiredAuctions(ctx, time.Now().UTC())
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, int64(1))

		ended, err := store.GetAuction(ctx, past.AuctionID)
		require.NoError(t, err)
		require.Equal(t, models.AuctionEnded, ended.Status)

		stillLive, err := store.GetAuction(ctx, live.AuctionID)
		require.NoError(t, err)
		require.Equal(t, models.AuctionActive, stillLive.Status)
	})

	t.Run("notifications_newest_first", func(t *testing.T) {
		store := newStore(t)
		userID := utils.GenerateID()
		base := time.Now().UTC().Truncate(time.Second)

		for i := 0; i < 3; i++ {
			require.NoError(t, store.CreateNotification(ctx, models.Notification{
				NotificationID: utils.GenerateID(),
				UserID:         userID,
				Type:           models.NotificationOutbid,
				Title:          "You've been outbid!",
				Message:        fmt.Sprintf("message %d", i),
				Data:           datatypes.JSON(fmt.Sprintf(`{"your_bid": %d}`, i)),
				CreatedAt:      base.Add(time.Duration(i) * time.Second),
			}))
		}

		got, err := store.ListNotifications(ctx, userID, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "message 2", got[0].Message)
		require.Equal(t, "message 1", got[1].Message)
		require.JSONEq(t, `{"your_bid": 2}`, string(got[0].Data))

		empty, err := store.ListNotifications(ctx, "nobody-"+userID, 10)
		require.NoError(t, err)
		require.Empty(t, empty)
	})
}
