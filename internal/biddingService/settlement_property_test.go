package bidding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-house/internal/biddingerrors"
	model "auction-house/internal/models"
	"auction-house/internal/notify"
	"auction-house/internal/repository"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type settlementFixture struct {
	repo    *repository.MemoryRepo
	fanout  *notify.Fanout
	service *BiddingService
}

func newSettlementFixture(t require.TestingT, startingBid float64) settlementFixture {
	repo := repository.NewMemoryRepo()
	fanout := notify.NewFanout(notify.NewHub(), repo, time.Second)
	err := repo.AddAuction(context.Background(), model.Auction{
		AuctionID:   "auction1",
		Title:       "Vintage Camera",
		StartingBid: startingBid,
		SellerID:    "seller",
		EndTime:     time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)
	return settlementFixture{repo: repo, fanout: fanout, service: NewBiddingService(repo, fanout)}
}

func (f settlementFixture) auction(t require.TestingT) model.Auction {
	a, err := f.repo.GetAuction(context.Background(), "auction1")
	require.NoError(t, err)
	return a
}

func requireTooLow(t require.TestingT, err error, current float64) {
	var tooLow *biddingerrors.BidTooLowError
	require.True(t, errors.As(err, &tooLow), "expected BidTooLow, got %v", err)
	require.Equal(t, current, tooLow.CurrentHighestBid)
}

func TestSubmitBid_OutbidScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newSettlementFixture(t, 10000)
	a := model.User{UserID: "userA", Username: "A"}
	b := model.User{UserID: "userB", Username: "B"}

	_, err := f.service.SubmitBid(ctx, "auction1", a, 10000)
	requireTooLow(t, err, 10000)

	res, err := f.service.SubmitBid(ctx, "auction1", a, 10500)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.BidCount)
	require.Equal(t, 10500.0, f.auction(t).CurrentHighestBid)

	_, err = f.service.SubmitBid(ctx, "auction1", b, 10500)
	requireTooLow(t, err, 10500)

	res, err = f.service.SubmitBid(ctx, "auction1", b, 11000)
	require.NoError(t, err)
	require.Equal(t, int64(2), res.BidCount)
	require.Equal(t, "B", res.Username)

	f.fanout.Wait()

	auction := f.auction(t)
	require.Equal(t, 11000.0, auction.CurrentHighestBid)
	require.Equal(t, int64(2), auction.BidCount)

	bids, err := f.service.ListRecentBids(ctx, "auction1", 0)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "userB", bids[0].UserID)
	require.Equal(t, model.BidWinning, bids[0].Status)
	require.Equal(t, "userA", bids[1].UserID)
	require.Equal(t, model.BidOutbid, bids[1].Status)

	inbox, err := f.service.ListNotifications(ctx, "userA", 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, model.NotificationOutbid, inbox[0].Type)

	inbox, err = f.service.ListNotifications(ctx, "userB", 0)
	require.NoError(t, err)
	require.Empty(t, inbox)
}

func TestSubmitBid_SubCentAmountsSettleAtCents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newSettlementFixture(t, 100)
	alice := model.User{UserID: "alice", Username: "Alice"}
	bob := model.User{UserID: "bob", Username: "Bob"}

	res, err := f.service.SubmitBid(ctx, "auction1", alice, 100.006)
	require.NoError(t, err)
	require.Equal(t, 100.01, res.Amount)
	require.Equal(t, 100.01, f.auction(t).CurrentHighestBid)

	// 100.009 is the same cent as the standing bid
	_, err = f.service.SubmitBid(ctx, "auction1", bob, 100.009)
	requireTooLow(t, err, 100.01)
	require.Contains(t, err.Error(), "100.01")

	res, err = f.service.SubmitBid(ctx, "auction1", bob, 100.016)
	require.NoError(t, err)
	require.Equal(t, 100.02, res.Amount)
	f.fanout.Wait()

	bids, err := f.service.ListRecentBids(ctx, "auction1", 0)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, 100.02, bids[0].Amount)
	require.Equal(t, 100.01, bids[1].Amount)
	require.Equal(t, 100.02, f.auction(t).CurrentHighestBid)
}

func TestSubmitBid_SimultaneousBids(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		f := newSettlementFixture(t, 10000)
		_, err := f.service.SubmitBid(context.Background(), "auction1", model.User{UserID: "opener"}, 10500)
		require.NoError(t, err)

		amounts := []float64{11000, 11200}
		errs := make([]error, len(amounts))
		var wg sync.WaitGroup
		for j, amount := range amounts {
			wg.Add(1)
			go func(j int, amount float64) {
				defer wg.Done()
				_, errs[j] = f.service.SubmitBid(context.Background(), "auction1", model.User{UserID: fmt.Sprintf("bidder%d", j)}, amount)
			}(j, amount)
		}
		wg.Wait()
		f.fanout.Wait()

		// 11200 always ends up leading; 11000 is either rejected against it or outbid by it
		require.NoError(t, errs[1])
		if errs[0] != nil {
			requireTooLow(t, errs[0], 11200)
		}

		auction := f.auction(t)
		require.Equal(t, 11200.0, auction.CurrentHighestBid)

		bids, err := f.repo.ListRecentBids(context.Background(), "auction1", 0)
		require.NoError(t, err)
		winners := 0
		for _, bid := range bids {
			if bid.Status == model.BidWinning {
				winners++
				require.Equal(t, 11200.0, bid.Amount)
			}
		}
		require.Equal(t, 1, winners)
		require.Equal(t, int64(len(bids)), auction.BidCount)
	}
}

func TestSubmitBid_ConcurrentBiddersLinearize(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(t, 100)

	const bidders = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []float64
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := float64(101 + (i*37)%bidders)
			_, err := f.service.SubmitBid(context.Background(), "auction1", model.User{UserID: fmt.Sprintf("user%d", i)}, amount)
			switch {
			case err == nil:
				mu.Lock()
				accepted = append(accepted, amount)
				mu.Unlock()
			case errors.Is(err, biddingerrors.ErrBidTooLow), errors.Is(err, biddingerrors.ErrCommitConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	f.fanout.Wait()

	require.NotEmpty(t, accepted)
	maxAccepted := accepted[0]
	for _, a := range accepted {
		if a > maxAccepted {
			maxAccepted = a
		}
	}

	auction := f.auction(t)
	require.Equal(t, maxAccepted, auction.CurrentHighestBid)
	require.Equal(t, int64(len(accepted)), auction.BidCount)

	bids, err := f.repo.ListRecentBids(context.Background(), "auction1", 0)
	require.NoError(t, err)
	require.Len(t, bids, len(accepted))

	winners := 0
	for i, bid := range bids {
		if bid.Status == model.BidWinning {
			winners++
			require.Equal(t, maxAccepted, bid.Amount)
		}
		// most recent first, so amounts strictly decrease down the list
		if i > 0 {
			require.Greater(t, bids[i-1].Amount, bid.Amount)
		}
	}
	require.Equal(t, 1, winners)
}

func TestSubmitBid_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		startingBid := float64(rapid.IntRange(1, 500).Draw(rt, "startingBid"))
		f := newSettlementFixture(rt, startingBid)

		users := []string{"alice", "bob", "carol", "seller"}
		expectedInbox := map[string]int{}
		var accepted []float64
		var leader string

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			user := rapid.SampledFrom(users).Draw(rt, "user")
			amount := float64(rapid.IntRange(1, 1000).Draw(rt, "amount"))

			before := f.auction(rt)
			_, err := f.service.SubmitBid(ctx, "auction1", model.User{UserID: user, Username: user}, amount)
			after := f.auction(rt)

			switch {
			case user == "seller":
				require.ErrorIs(rt, err, biddingerrors.ErrSelfBid)
				require.Equal(rt, before, after)
			case amount <= before.CurrentHighestBid:
				requireTooLow(rt, err, before.CurrentHighestBid)
				require.Equal(rt, before, after)
			default:
				require.NoError(rt, err)
				require.Equal(rt, amount, after.CurrentHighestBid)
				require.Equal(rt, before.BidCount+1, after.BidCount)
				if leader != "" && leader != user {
					expectedInbox[leader]++
				}
				leader = user
				accepted = append(accepted, amount)
			}
			require.GreaterOrEqual(rt, after.CurrentHighestBid, before.CurrentHighestBid)
			require.GreaterOrEqual(rt, after.CurrentHighestBid, after.StartingBid)
		}
		f.fanout.Wait()

		bids, err := f.repo.ListRecentBids(ctx, "auction1", 0)
		require.NoError(rt, err)
		require.Len(rt, bids, len(accepted))

		winners := 0
		for _, bid := range bids {
			if bid.Status == model.BidWinning {
				winners++
				require.Equal(rt, f.auction(rt).CurrentHighestBid, bid.Amount)
			}
		}
		if len(accepted) == 0 {
			require.Equal(rt, 0, winners)
			require.Equal(rt, startingBid, f.auction(rt).CurrentHighestBid)
		} else {
			require.Equal(rt, 1, winners)
			require.Equal(rt, accepted[len(accepted)-1], f.auction(rt).CurrentHighestBid)
		}

		for _, user := range users {
			inbox, err := f.service.ListNotifications(ctx, user, MaxBidHistoryLimit)
			require.NoError(rt, err)
			require.Len(rt, inbox, expectedInbox[user], "notifications for %s", user)
		}
	})
}

func TestSubmitBid_ClosedAuctionRejectsAnyAmount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newSettlementFixture(rt, 100)
		amount := float64(rapid.IntRange(1, 1_000_000).Draw(rt, "amount"))
		ended := rapid.Bool().Draw(rt, "ended")

		var want error
		if ended {
			f.service.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
			want = biddingerrors.ErrAuctionEnded
		} else {
			_, err := f.repo.EndExpiredAuctions(context.Background(), time.Now().UTC().Add(2*time.Hour))
			require.NoError(rt, err)
			want = biddingerrors.ErrAuctionNotActive
		}

		before := f.auction(rt)
		_, err := f.service.SubmitBid(context.Background(), "auction1", model.User{UserID: "alice"}, amount)
		require.ErrorIs(rt, err, want)
		require.Equal(rt, before, f.auction(rt))
	})
}
