package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	bidding "auction-house/internal/biddingService"
	"auction-house/internal/config"
	"auction-house/internal/identity"
	"auction-house/internal/lifecycle"
	model "auction-house/internal/models"
	"auction-house/internal/notify"
	"auction-house/internal/repository"
	"auction-house/internal/server"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// ledger is what every store backend provides
type ledger interface {
	repository.AuctionDB
	repository.Seeder
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatal("invalid configuration", map[string]any{"error": err.Error()})
	}
	utils.SetLevel(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		utils.Fatal("failed to open store", map[string]any{"driver": cfg.StoreDriver, "error": err.Error()})
	}
	var closers []io.Closer
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}

	var rdb *rd.Client
	if cfg.RedisAddr != "" {
		rdb = rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			utils.Fatal("failed to connect to redis", map[string]any{"addr": cfg.RedisAddr, "error": err.Error()})
		}
		closers = append(closers, rdb)
	}

	hub := notify.NewHub()
	publishers, brokerClosers, err := buildPublishers(cfg, hub, rdb)
	if err != nil {
		utils.Fatal("failed to set up event publishers", map[string]any{"error": err.Error()})
	}
	closers = append(closers, brokerClosers...)

	fanout := notify.NewFanout(publishers, store, cfg.NotifyTimeout)
	biddingSvc := bidding.NewBiddingService(store, fanout)

	var sessions identity.Provider
	if rdb != nil {
		sessions = identity.NewRedisProvider(rdb)
	} else {
		sessions = identity.NewMemoryProvider()
	}

	if cfg.SeedDemo {
		prepopulateAuctions(ctx, store)
		prepopulateSessions(ctx, sessions)
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		lifecycle.NewSweeper(store, cfg.SweepInterval).Start(sweepCtx)
	}()

	router := server.SetupRouter(server.Deps{
		Service:       biddingSvc,
		Events:        hub,
		Identity:      sessions,
		Redis:         rdb,
		BidRateLimit:  cfg.BidRateLimit,
		BidRateWindow: cfg.BidRateWindow,
	})

	httpServer := server.NewHTTPServer(router, cfg.HTTPAddr)
	httpServer.OnShutdown(hub.Close)
	utils.Info("auction server started", map[string]any{
		"addr":   cfg.HTTPAddr,
		"store":  cfg.StoreDriver,
		"redis":  rdb != nil,
		"kafka":  len(cfg.KafkaBrokers) > 0,
		"amqp":   cfg.AMQPURL != "",
		"codec":  cfg.EventCodec,
		"seeded": cfg.SeedDemo,
	})

	select {
	case <-ctx.Done():
		utils.Info("shutdown signal received", nil)
	case err := <-httpServer.Notify():
		utils.Error("http server stopped", map[string]any{"error": fmt.Sprint(err)})
	}

	if err := httpServer.Shutdown(15 * time.Second); err != nil {
		utils.Error("http shutdown failed", map[string]any{"error": err.Error()})
	}
	stopSweeper()
	<-sweeperDone
	fanout.Wait()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			utils.Warn("close failed", map[string]any{"error": err.Error()})
		}
	}
	utils.Info("shutdown complete", nil)
}

func openStore(ctx context.Context, cfg config.AppConfig) (ledger, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return repository.OpenSQLite(cfg.DBPath)
	case config.DriverPostgres:
		return repository.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return repository.NewMemoryRepo(), nil
	}
}

// buildPublishers always includes the in-process hub that feeds the SSE
// endpoints, plus every broker that is configured.
func buildPublishers(cfg config.AppConfig, hub *notify.Hub, rdb *rd.Client) (notify.Multi, []io.Closer, error) {
	pubs := notify.Multi{hub}
	var closers []io.Closer

	codec, err := notify.NewCodec(cfg.EventCodec)
	if err != nil {
		return nil, nil, err
	}

	if rdb != nil {
		pubs = append(pubs, notify.NewRedisPublisher(rdb, codec))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, codec)
		pubs = append(pubs, kp)
		closers = append(closers, kp)
	}
	if cfg.AMQPURL != "" {
		rp, err := notify.NewRabbitMQPublisher(cfg.AMQPURL, cfg.AMQPExchange, codec)
		if err != nil {
			return nil, nil, err
		}
		pubs = append(pubs, rp)
		closers = append(closers, rp)
	}
	return pubs, closers, nil
}

// prepopulateAuctions adds sample auctions. Existing ones are left as they are.
func prepopulateAuctions(ctx context.Context, store repository.Seeder) {
	now := time.Now().UTC()
	reserve := 12000.0
	auctions := []model.Auction{
		{AuctionID: "auction1", Title: "Vintage Camera", Description: "Rangefinder, fully serviced", Category: "electronics", StartingBid: 10000, ReservePrice: &reserve, SellerID: "seller", EndTime: now.Add(24 * time.Hour)},
		{AuctionID: "auction2", Title: "Oak Writing Desk", Description: "Early 1900s", Category: "furniture", StartingBid: 200, SellerID: "seller", EndTime: now.Add(2 * time.Hour)},
		{AuctionID: "auction3", Title: "Signed Poster", Description: "Limited print", Category: "collectibles", StartingBid: 150, SellerID: "seller", EndTime: now.Add(10 * time.Minute)},
	}

	for _, a := range auctions {
		if err := store.AddAuction(ctx, a); err != nil {
			utils.Warn("seed: auction not added", map[string]any{"auction_id": a.AuctionID, "error": err.Error()})
		}
	}
}

// prepopulateSessions issues fixed demo tokens, e.g. "Authorization: Bearer demo-alice"
func prepopulateSessions(ctx context.Context, sessions identity.Provider) {
	users := []model.User{
		{UserID: "alice", Username: "Alice"},
		{UserID: "bob", Username: "Bob"},
		{UserID: "seller", Username: "Seller"},
	}

	for _, u := range users {
		token := "demo-" + u.UserID
		switch p := sessions.(type) {
		case *identity.MemoryProvider:
			p.AddSession(token, u)
		case *identity.RedisProvider:
			if err := p.PutSession(ctx, token, u, 24*time.Hour); err != nil {
				utils.Warn("seed: session not stored", map[string]any{"user_id": u.UserID, "error": err.Error()})
			}
		}
	}
}
