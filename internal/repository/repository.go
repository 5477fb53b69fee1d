package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/lifecycle"
	"auction-house/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// BidCommit is a conditional commit of one bid. It applies only if the
// auction's bid count still equals ExpectedBidCount.
type BidCommit struct {
	Bid              models.Bid
	ExpectedBidCount int64
	Now              time.Time
}

// CommitResult is the state produced by a successful commit
type CommitResult struct {
	Auction  models.Auction
	Bid      models.Bid
	Previous *models.Bid // demoted winner, nil on the first bid
}

// LedgerStore owns auction and bid persistence.
// CommitBid is the only path that writes CurrentHighestBid, BidCount or a bid status.
type LedgerStore interface {
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListRecentBids(ctx context.Context, auctionID string, limit int) ([]models.Bid, error)
	CommitBid(ctx context.Context, commit BidCommit) (CommitResult, error)
	EndExpiredAuctions(ctx context.Context, now time.Time) (int64, error)
}

// NotificationStore persists durable user notifications
type NotificationStore interface {
	CreateNotification(ctx context.Context, n models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

// AuctionDB defines the storage interface for the auction system
type AuctionDB interface {
	LedgerStore
	NotificationStore
	Ping(ctx context.Context) error
}

// Seeder loads auctions created elsewhere (listing creation, demo data, tests)
type Seeder interface {
	AddAuction(ctx context.Context, auction models.Auction) error
}

// auctionEntry holds one auction and its bid set behind its own lock,
// so commits on different auctions never contend.
type auctionEntry struct {
	mu      sync.Mutex
	auction models.Auction
	bids    []models.Bid // acceptance order
	winning int          // index into bids, -1 when there are none
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]*auctionEntry // key: auctionID

	notifMu       sync.RWMutex
	notifications map[string][]models.Notification // key: userID
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:      make(map[string]*auctionEntry),
		notifications: make(map[string][]models.Notification),
	}
}

func (r *MemoryRepo) entry(auctionID string) (*auctionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.auctions[auctionID]
	return e, ok
}

// GetAuction returns the latest committed state of an auction
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (models.Auction, error) {
	e, ok := r.entry(auctionID)
	if !ok {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.auction, nil
}

// ListRecentBids returns up to limit bids, most recent first
func (r *MemoryRepo) ListRecentBids(_ context.Context, auctionID string, limit int) ([]models.Bid, error) {
	e, ok := r.entry(auctionID)
	if !ok {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.bids)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Bid, 0, n)
	for i := len(e.bids) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, e.bids[i])
	}
	return out, nil
}

// CommitBid demotes the previous winner, appends the new winning bid and
// advances the auction, all under the auction's lock.
func (r *MemoryRepo) CommitBid(_ context.Context, commit BidCommit) (CommitResult, error) {
	auctionID := commit.Bid.AuctionID
	e, ok := r.entry(auctionID)
	if !ok {
		return CommitResult{}, fmt.Errorf("commit bid on auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.auction.BidCount != commit.ExpectedBidCount {
		return CommitResult{}, fmt.Errorf("commit bid on auction %s: %w", auctionID, biddingerrors.ErrCommitConflict)
	}
	if err := lifecycle.CheckBiddable(&e.auction, commit.Now); err != nil {
		return CommitResult{}, fmt.Errorf("commit bid on auction %s: %w", auctionID, err)
	}
	if !lifecycle.Exceeds(commit.Bid.Amount, e.auction.CurrentHighestBid) {
		return CommitResult{}, biddingerrors.NewBidTooLow(e.auction.CurrentHighestBid)
	}

	var previous *models.Bid
	if e.winning >= 0 {
		e.bids[e.winning].Status = models.BidOutbid
		prev := e.bids[e.winning]
		previous = &prev
	}

	bid := commit.Bid
	bid.Status = models.BidWinning
	e.bids = append(e.bids, bid)
	e.winning = len(e.bids) - 1

	e.auction.CurrentHighestBid = bid.Amount
	e.auction.BidCount++
	e.auction.UpdatedAt = commit.Now

	return CommitResult{Auction: e.auction, Bid: bid, Previous: previous}, nil
}

// EndExpiredAuctions moves active auctions past their end time to ended
func (r *MemoryRepo) EndExpiredAuctions(_ context.Context, now time.Time) (int64, error) {
	r.mu.RLock()
	entries := make([]*auctionEntry, 0, len(r.auctions))
	for _, e := range r.auctions {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var ended int64
	for _, e := range entries {
		e.mu.Lock()
		if lifecycle.Expired(e.auction, now) {
			e.auction.Status = models.AuctionEnded
			e.auction.UpdatedAt = now
			ended++
		}
		e.mu.Unlock()
	}
	return ended, nil
}

// CreateNotification stores a notification in the recipient's inbox
func (r *MemoryRepo) CreateNotification(_ context.Context, n models.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("create notification: empty recipient")
	}
	r.notifMu.Lock()
	defer r.notifMu.Unlock()
	r.notifications[n.UserID] = append(r.notifications[n.UserID], n)
	return nil
}

// ListNotifications returns a user's notifications, newest first
func (r *MemoryRepo) ListNotifications(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	r.notifMu.RLock()
	defer r.notifMu.RUnlock()

	inbox := append([]models.Notification(nil), r.notifications[userID]...)
	sort.SliceStable(inbox, func(i, j int) bool { return inbox[i].CreatedAt.After(inbox[j].CreatedAt) })
	if limit > 0 && len(inbox) > limit {
		inbox = inbox[:limit]
	}
	return inbox, nil
}

// Ping always succeeds for the in-memory store
func (r *MemoryRepo) Ping(context.Context) error { return nil }

// AddAuction adds an auction to the repository. Listing creation lives outside
// this service, so this is used for seeding and tests.
func (r *MemoryRepo) AddAuction(_ context.Context, auction models.Auction) error {
	auction, err := normalizeNewAuction(auction)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.auctions[auction.AuctionID]; exists {
		return fmt.Errorf("add auction %s: already exists", auction.AuctionID)
	}
	r.auctions[auction.AuctionID] = &auctionEntry{auction: auction, winning: -1}
	return nil
}

// normalizeNewAuction applies the creation rules shared by every store:
// a new auction starts with no bids and its highest bid at the starting bid.
func normalizeNewAuction(auction models.Auction) (models.Auction, error) {
	if auction.AuctionID == "" {
		return models.Auction{}, fmt.Errorf("add auction: empty auction id")
	}
	if auction.StartingBid < 0 {
		return models.Auction{}, fmt.Errorf("add auction %s: negative starting bid", auction.AuctionID)
	}
	if auction.Status == "" {
		auction.Status = models.AuctionActive
	}
	auction.CurrentHighestBid = auction.StartingBid
	auction.BidCount = 0

	now := time.Now().UTC()
	if auction.CreatedAt.IsZero() {
		auction.CreatedAt = now
	}
	auction.UpdatedAt = auction.CreatedAt
	if auction.StartTime.IsZero() {
		auction.StartTime = auction.CreatedAt
	}
	return auction, nil
}
