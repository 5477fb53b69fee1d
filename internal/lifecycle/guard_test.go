package lifecycle

import (
	"errors"
	"math"
	"testing"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"

	"github.com/peterldowns/testy/check"
)

func TestCheckBiddable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		auction *models.Auction
		wantErr error
	}{
		{
			name:    "missing_auction",
			auction: nil,
			wantErr: biddingerrors.ErrAuctionNotFound,
		},
		{
			name:    "active_before_end",
			auction: &models.Auction{Status: models.AuctionActive, EndTime: now.Add(time.Minute)},
			wantErr: nil,
		},
		{
			name:    "pending",
			auction: &models.Auction{Status: models.AuctionPending, EndTime: now.Add(time.Minute)},
			wantErr: biddingerrors.ErrAuctionNotActive,
		},
		{
			// status is checked before time
			name:    "ended_status_and_past_end",
			auction: &models.Auction{Status: models.AuctionEnded, EndTime: now.Add(-time.Minute)},
			wantErr: biddingerrors.ErrAuctionNotActive,
		},
		{
			name:    "active_exactly_at_end",
			auction: &models.Auction{Status: models.AuctionActive, EndTime: now},
			wantErr: biddingerrors.ErrAuctionEnded,
		},
		{
			name:    "active_after_end",
			auction: &models.Auction{Status: models.AuctionActive, EndTime: now.Add(-time.Second)},
			wantErr: biddingerrors.ErrAuctionEnded,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := CheckBiddable(tc.auction, now)
			if tc.wantErr == nil {
				check.NoError(t, err)
				return
			}
			check.Error(t, err)
			check.True(t, errors.Is(err, tc.wantErr))
		})
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()

	check.True(t, Expired(models.Auction{Status: models.AuctionActive, EndTime: now}, now))
	check.False(t, Expired(models.Auction{Status: models.AuctionActive, EndTime: now.Add(time.Hour)}, now))
	check.False(t, Expired(models.Auction{Status: models.AuctionEnded, EndTime: now.Add(-time.Hour)}, now))
}

func TestExceeds(t *testing.T) {
	check.True(t, Exceeds(10500, 10000))
	check.False(t, Exceeds(10000, 10000))
	check.False(t, Exceeds(9999.99, 10000))

	// float noise below a cent does not count as a higher bid
	check.False(t, Exceeds(0.1+0.2, 0.3))
	check.True(t, Exceeds(0.31, 0.3))
}

func TestValidAmount(t *testing.T) {
	check.True(t, ValidAmount(0.01))
	check.True(t, ValidAmount(MaxAmount))
	check.False(t, ValidAmount(MaxAmount+1))
	check.False(t, ValidAmount(math.MaxFloat64))
	check.False(t, ValidAmount(0))
	check.False(t, ValidAmount(-5))
	check.False(t, ValidAmount(0.001))
	check.False(t, ValidAmount(math.NaN()))
	check.False(t, ValidAmount(math.Inf(1)))
}

func TestRoundAmount(t *testing.T) {
	check.Equal(t, 100.01, RoundAmount(100.006))
	check.Equal(t, 100.0, RoundAmount(100.004))
	check.Equal(t, 0.3, RoundAmount(0.1+0.2))
	check.Equal(t, 12500.0, RoundAmount(12500))
}
