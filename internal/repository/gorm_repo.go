package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/lifecycle"
	"auction-house/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// bidRow is the bids table. Seq is the acceptance position of the bid within
// its auction; the unique index rejects two commits claiming the same slot.
type bidRow struct {
	BidID     string           `gorm:"primaryKey;size:64"`
	AuctionID string           `gorm:"size:64;not null;uniqueIndex:idx_bids_auction_seq,priority:1"`
	Seq       int64            `gorm:"not null;uniqueIndex:idx_bids_auction_seq,priority:2"`
	UserID    string           `gorm:"size:64;not null;index"`
	Username  string           `gorm:"size:128"`
	Amount    float64          `gorm:"not null"`
	Status    models.BidStatus `gorm:"size:16;not null;index"`
	IsAutoBid bool             `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (bidRow) TableName() string { return "bids" }

func newBidRow(b models.Bid, seq int64) bidRow {
	return bidRow{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		Seq:       seq,
		UserID:    b.UserID,
		Username:  b.Username,
		Amount:    b.Amount,
		Status:    b.Status,
		IsAutoBid: b.IsAutoBid,
		CreatedAt: b.CreatedAt,
	}
}

func (row bidRow) toModel() models.Bid {
	return models.Bid{
		BidID:     row.BidID,
		AuctionID: row.AuctionID,
		UserID:    row.UserID,
		Username:  row.Username,
		Amount:    row.Amount,
		Status:    row.Status,
		IsAutoBid: row.IsAutoBid,
		CreatedAt: row.CreatedAt,
	}
}

// GormRepo is an AuctionDB backed by gorm. Every bid commit runs in one
// transaction guarded by a compare-and-set on the auction's bid count.
type GormRepo struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a SQLite database and migrates the schema.
// SQLite has a single writer, so the pool is limited to one connection and
// transactions queue instead of failing with SQLITE_BUSY.
func OpenSQLite(path string) (*GormRepo, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)

	return NewGormRepo(db)
}

// NewGormRepo wraps an open gorm connection and migrates the schema
func NewGormRepo(db *gorm.DB) (*GormRepo, error) {
	if err := db.AutoMigrate(&models.Auction{}, &bidRow{}, &models.Notification{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &GormRepo{db: db}, nil
}

// Close releases the underlying connection pool
func (r *GormRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetAuction returns the latest committed state of an auction
func (r *GormRepo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	var auction models.Auction
	err := r.db.WithContext(ctx).First(&auction, "auction_id = ?", auctionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// ListRecentBids returns up to limit bids, most recent first
func (r *GormRepo) ListRecentBids(ctx context.Context, auctionID string, limit int) ([]models.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []bidRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
	}

	bids := make([]models.Bid, 0, len(rows))
	for _, row := range rows {
		bids = append(bids, row.toModel())
	}
	return bids, nil
}

// CommitBid demotes the previous winner, inserts the new winning bid and
// advances the auction in a single transaction.
func (r *GormRepo) CommitBid(ctx context.Context, commit BidCommit) (CommitResult, error) {
	auctionID := commit.Bid.AuctionID
	var result CommitResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var auction models.Auction
		if err := tx.First(&auction, "auction_id = ?", auctionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return biddingerrors.ErrAuctionNotFound
			}
			return err
		}

		if auction.BidCount != commit.ExpectedBidCount {
			return biddingerrors.ErrCommitConflict
		}
		if err := lifecycle.CheckBiddable(&auction, commit.Now); err != nil {
			return err
		}
		if !lifecycle.Exceeds(commit.Bid.Amount, auction.CurrentHighestBid) {
			return biddingerrors.NewBidTooLow(auction.CurrentHighestBid)
		}

		var previous []bidRow
		if err := tx.Where("auction_id = ? AND status = ?", auctionID, models.BidWinning).
			Find(&previous).Error; err != nil {
			return err
		}
		if len(previous) > 0 {
			if err := tx.Model(&bidRow{}).
				Where("auction_id = ? AND status = ?", auctionID, models.BidWinning).
				Update("status", models.BidOutbid).Error; err != nil {
				return err
			}
			prev := previous[0].toModel()
			prev.Status = models.BidOutbid
			result.Previous = &prev
		}

		bid := commit.Bid
		bid.Status = models.BidWinning
		row := newBidRow(bid, auction.BidCount+1)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Auction{}).
			Where("auction_id = ? AND bid_count = ?", auctionID, commit.ExpectedBidCount).
			Updates(map[string]any{
				"current_highest_bid": bid.Amount,
				"bid_count":           gorm.Expr("bid_count + 1"),
				"updated_at":          commit.Now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return biddingerrors.ErrCommitConflict
		}

		auction.CurrentHighestBid = bid.Amount
		auction.BidCount++
		auction.UpdatedAt = commit.Now
		result.Auction = auction
		result.Bid = bid
		return nil
	})
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit bid on auction %s: %w", auctionID, err)
	}
	return result, nil
}

// EndExpiredAuctions moves active auctions past their end time to ended
func (r *GormRepo) EndExpiredAuctions(ctx context.Context, now time.Time) (int64, error) {
	var expired []string
	err := r.db.WithContext(ctx).Model(&models.Auction{}).
		Where("status = ?", models.AuctionActive).
		Pluck("auction_id", &expired).Error
	if err != nil {
		return 0, fmt.Errorf("find expired auctions: %w", err)
	}

	var ended int64
	for _, id := range expired {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var auction models.Auction
			if err := tx.First(&auction, "auction_id = ?", id).Error; err != nil {
				return err
			}
			if !lifecycle.Expired(auction, now) {
				return nil
			}
			res := tx.Model(&models.Auction{}).
				Where("auction_id = ? AND status = ?", id, models.AuctionActive).
				Updates(map[string]any{"status": models.AuctionEnded, "updated_at": now})
			ended += res.RowsAffected
			return res.Error
		})
		if err != nil {
			return ended, fmt.Errorf("end auction %s: %w", id, err)
		}
	}
	return ended, nil
}

// CreateNotification stores a notification in the recipient's inbox
func (r *GormRepo) CreateNotification(ctx context.Context, n models.Notification) error {
	if err := r.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("create notification for user %s: %w", n.UserID, err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first
func (r *GormRepo) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Notification
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications for user %s: %w", userID, err)
	}
	return out, nil
}

// Ping checks the database connection
func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AddAuction inserts a new auction with no bids
func (r *GormRepo) AddAuction(ctx context.Context, auction models.Auction) error {
	auction, err := normalizeNewAuction(auction)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&auction).Error; err != nil {
		return fmt.Errorf("add auction %s: %w", auction.AuctionID, err)
	}
	return nil
}
