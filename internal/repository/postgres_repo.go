package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/lifecycle"
	"auction-house/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var (
	auctionColumns = []string{
		"auction_id", "title", "description", "category", "starting_bid", "current_highest_bid",
		"reserve_price", "buy_now_price", "status", "start_time", "end_time", "bid_count",
		"seller_id", "created_at", "updated_at",
	}
	bidColumns = []string{
		"bid_id", "auction_id", "user_id", "username", "amount", "status", "is_auto_bid", "created_at",
	}
	notificationColumns = []string{
		"notification_id", "user_id", "type", "title", "message", "data", "is_read", "created_at",
	}
)

// PostgresRepo is an AuctionDB backed by PostgreSQL. A bid commit locks the
// auction row for the length of its transaction, so commits on one auction
// are serialized while different auctions proceed in parallel.
type PostgresRepo struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// OpenPostgres connects to PostgreSQL and applies pending migrations
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresRepo, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := MigratePostgres(databaseURL); err != nil {
		pool.Close()
		return nil, err
	}

	return NewPostgresRepo(pool), nil
}

// NewPostgresRepo wraps an existing pool. The schema must already exist.
func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// MigratePostgres applies the embedded schema migrations
func MigratePostgres(databaseURL string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(databaseURL))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// pgx5URL rewrites a postgres:// URL to the scheme the migrate pgx driver registers
func pgx5URL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

// Close releases the connection pool
func (r *PostgresRepo) Close() error {
	r.pool.Close()
	return nil
}

func scanAuction(row pgx.Row) (models.Auction, error) {
	var a models.Auction
	err := row.Scan(&a.AuctionID, &a.Title, &a.Description, &a.Category, &a.StartingBid, &a.CurrentHighestBid,
		&a.ReservePrice, &a.BuyNowPrice, &a.Status, &a.StartTime, &a.EndTime, &a.BidCount,
		&a.SellerID, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanBid(row pgx.Row) (models.Bid, error) {
	var b models.Bid
	err := row.Scan(&b.BidID, &b.AuctionID, &b.UserID, &b.Username, &b.Amount, &b.Status, &b.IsAutoBid, &b.CreatedAt)
	return b, err
}

func (r *PostgresRepo) selectAuction(ctx context.Context, q pgx.Tx, auctionID string, forUpdate bool) (models.Auction, error) {
	builder := r.sb.Select(auctionColumns...).From("auctions").Where(sq.Eq{"auction_id": auctionID})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return models.Auction{}, err
	}

	var row pgx.Row
	if q != nil {
		row = q.QueryRow(ctx, query, args...)
	} else {
		row = r.pool.QueryRow(ctx, query, args...)
	}

	a, err := scanAuction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Auction{}, biddingerrors.ErrAuctionNotFound
	}
	return a, err
}

// GetAuction returns the latest committed state of an auction
func (r *PostgresRepo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	a, err := r.selectAuction(ctx, nil, auctionID, false)
	if err != nil {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// ListRecentBids returns up to limit bids, most recent first
func (r *PostgresRepo) ListRecentBids(ctx context.Context, auctionID string, limit int) ([]models.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	builder := r.sb.Select(bidColumns...).From("bids").
		Where(sq.Eq{"auction_id": auctionID}).
		OrderBy("seq DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	bids := make([]models.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// CommitBid demotes the previous winner, inserts the new winning bid and
// advances the auction in a single transaction holding the auction row lock.
func (r *PostgresRepo) CommitBid(ctx context.Context, commit BidCommit) (CommitResult, error) {
	result, err := r.commitBid(ctx, commit)
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit bid on auction %s: %w", commit.Bid.AuctionID, err)
	}
	return result, nil
}

func (r *PostgresRepo) commitBid(ctx context.Context, commit BidCommit) (CommitResult, error) {
	auctionID := commit.Bid.AuctionID

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return CommitResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op once committed
	defer tx.Rollback(ctx)

	auction, err := r.selectAuction(ctx, tx, auctionID, true)
	if err != nil {
		return CommitResult{}, err
	}
	if auction.BidCount != commit.ExpectedBidCount {
		return CommitResult{}, biddingerrors.ErrCommitConflict
	}
	if err := lifecycle.CheckBiddable(&auction, commit.Now); err != nil {
		return CommitResult{}, err
	}
	if !lifecycle.Exceeds(commit.Bid.Amount, auction.CurrentHighestBid) {
		return CommitResult{}, biddingerrors.NewBidTooLow(auction.CurrentHighestBid)
	}

	var result CommitResult

	demote, args, err := r.sb.Update("bids").
		Set("status", models.BidOutbid).
		Where(sq.Eq{"auction_id": auctionID, "status": models.BidWinning}).
		Suffix("RETURNING " + strings.Join(bidColumns, ", ")).
		ToSql()
	if err != nil {
		return CommitResult{}, err
	}
	prev, err := scanBid(tx.QueryRow(ctx, demote, args...))
	switch {
	case err == nil:
		result.Previous = &prev
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return CommitResult{}, fmt.Errorf("failed to demote winning bid: %w", err)
	}

	bid := commit.Bid
	bid.Status = models.BidWinning
	insert, args, err := r.sb.Insert("bids").
		Columns("bid_id", "auction_id", "seq", "user_id", "username", "amount", "status", "is_auto_bid", "created_at").
		Values(bid.BidID, bid.AuctionID, auction.BidCount+1, bid.UserID, bid.Username, bid.Amount, bid.Status, bid.IsAutoBid, bid.CreatedAt).
		ToSql()
	if err != nil {
		return CommitResult{}, err
	}
	if _, err := tx.Exec(ctx, insert, args...); err != nil {
		return CommitResult{}, fmt.Errorf("failed to insert bid: %w", err)
	}

	update, args, err := r.sb.Update("auctions").
		Set("current_highest_bid", bid.Amount).
		Set("bid_count", sq.Expr("bid_count + 1")).
		Set("updated_at", commit.Now).
		Where(sq.Eq{"auction_id": auctionID, "bid_count": commit.ExpectedBidCount}).
		ToSql()
	if err != nil {
		return CommitResult{}, err
	}
	tag, err := tx.Exec(ctx, update, args...)
	if err != nil {
		return CommitResult{}, fmt.Errorf("failed to update auction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return CommitResult{}, biddingerrors.ErrCommitConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return CommitResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	auction.CurrentHighestBid = bid.Amount
	auction.BidCount++
	auction.UpdatedAt = commit.Now
	result.Auction = auction
	result.Bid = bid
	return result, nil
}

// EndExpiredAuctions moves active auctions past their end time to ended
func (r *PostgresRepo) EndExpiredAuctions(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := r.sb.Update("auctions").
		Set("status", models.AuctionEnded).
		Set("updated_at", now).
		Where(sq.Eq{"status": models.AuctionActive}).
		Where(sq.LtOrEq{"end_time": now}).
		ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("end expired auctions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CreateNotification stores a notification in the recipient's inbox
func (r *PostgresRepo) CreateNotification(ctx context.Context, n models.Notification) error {
	query, args, err := r.sb.Insert("notifications").
		Columns(notificationColumns...).
		Values(n.NotificationID, n.UserID, n.Type, n.Title, n.Message, n.Data, n.IsRead, n.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create notification for user %s: %w", n.UserID, err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first
func (r *PostgresRepo) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	builder := r.sb.Select(notificationColumns...).From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications for user %s: %w", userID, err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.NotificationID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("list notifications for user %s: %w", userID, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Ping checks the database connection
func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// AddAuction inserts a new auction with no bids
func (r *PostgresRepo) AddAuction(ctx context.Context, auction models.Auction) error {
	auction, err := normalizeNewAuction(auction)
	if err != nil {
		return err
	}
	query, args, err := r.sb.Insert("auctions").
		Columns(auctionColumns...).
		Values(auction.AuctionID, auction.Title, auction.Description, auction.Category, auction.StartingBid,
			auction.CurrentHighestBid, auction.ReservePrice, auction.BuyNowPrice, auction.Status, auction.StartTime,
			auction.EndTime, auction.BidCount, auction.SellerID, auction.CreatedAt, auction.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("add auction %s: %w", auction.AuctionID, err)
	}
	return nil
}
