package lifecycle

import (
	"context"
	"time"

	"auction-house/utils"
)

// Expirer transitions every active auction whose end time has passed to ended
type Expirer interface {
	EndExpiredAuctions(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically ends expired auctions. The bid path checks end time on
// its own, so a late or skipped sweep never lets a bid through.
type Sweeper struct {
	store    Expirer
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(store Expirer, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		now:      time.Now,
	}
}

// Start blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				utils.Error("sweeper: failed to end expired auctions", map[string]any{"error": err.Error()})
			}
		}
	}
}

// RunOnce ends expired auctions and returns how many were transitioned.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.store.EndExpiredAuctions(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		utils.Info("sweeper: ended expired auctions", map[string]any{"count": n})
	}
	return n, nil
}
