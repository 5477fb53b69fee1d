package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type fakeExpirer struct {
	calls atomic.Int64
	ended int64
	err   error
	seen  atomic.Value
}

func (f *fakeExpirer) EndExpiredAuctions(_ context.Context, now time.Time) (int64, error) {
	f.calls.Add(1)
	f.seen.Store(now)
	return f.ended, f.err
}

func TestSweeper_RunOnce(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := &fakeExpirer{ended: 3}
	s := NewSweeper(store, time.Minute)
	s.now = func() time.Time { return fixed }

	n, err := s.RunOnce(context.Background())
	assert.NoError(t, err)
	check.Equal(t, int64(3), n)
	check.Equal(t, fixed, store.seen.Load().(time.Time))
}

func TestSweeper_RunOnceError(t *testing.T) {
	store := &fakeExpirer{err: errors.New("db down")}
	s := NewSweeper(store, time.Minute)

	n, err := s.RunOnce(context.Background())
	check.Error(t, err)
	check.Equal(t, int64(0), n)
}

func TestSweeper_StartStopsOnCancel(t *testing.T) {
	store := &fakeExpirer{}
	s := NewSweeper(store, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	check.True(t, store.calls.Load() > 0)
}
