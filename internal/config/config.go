package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AppConfig holds runtime settings, read from the environment with defaults.
type AppConfig struct {
	HTTPAddr string
	LogLevel string

	// ledger backend
	StoreDriver string
	DBPath      string
	DatabaseURL string

	// empty RedisAddr runs without Redis sessions, pub/sub and rate limiting
	RedisAddr string
	RedisDB   int

	// empty broker lists disable the transport
	KafkaBrokers []string
	KafkaTopic   string
	AMQPURL      string
	AMQPExchange string
	EventCodec   string

	BidRateLimit  int
	BidRateWindow time.Duration
	SweepInterval time.Duration
	NotifyTimeout time.Duration

	SeedDemo bool
}

// Load reads and validates the configuration.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		DBPath:        getEnv("DB_PATH", "auction_house.db"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		KafkaBrokers:  splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "auction-events"),
		AMQPURL:       getEnv("AMQP_URL", ""),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "auction.events"),
		EventCodec:    strings.ToLower(getEnv("EVENT_CODEC", "json")),
		BidRateLimit:  20,
		BidRateWindow: time.Second,
		SweepInterval: 5 * time.Second,
		NotifyTimeout: 5 * time.Second,
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if redisDB < 0 {
		return AppConfig{}, fmt.Errorf("REDIS_DB must be >= 0")
	}
	cfg.RedisDB = redisDB

	if cfg.BidRateLimit, err = getPositiveInt("BID_RATE_LIMIT", cfg.BidRateLimit); err != nil {
		return AppConfig{}, err
	}

	windowSec, err := getPositiveInt("BID_RATE_WINDOW_SEC", int(cfg.BidRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.BidRateWindow = time.Duration(windowSec) * time.Second

	sweepSec, err := getPositiveInt("SWEEP_INTERVAL_SEC", int(cfg.SweepInterval.Seconds()))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.SweepInterval = time.Duration(sweepSec) * time.Second

	notifyMs, err := getPositiveInt("NOTIFY_TIMEOUT_MS", int(cfg.NotifyTimeout.Milliseconds()))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.NotifyTimeout = time.Duration(notifyMs) * time.Millisecond

	if cfg.SeedDemo, err = getEnvBool("SEED_DEMO", true); err != nil {
		return AppConfig{}, fmt.Errorf("invalid SEED_DEMO: %w", err)
	}

	switch cfg.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return AppConfig{}, fmt.Errorf("DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	default:
		return AppConfig{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.EventCodec != "json" && cfg.EventCodec != "cbor" {
		return AppConfig{}, fmt.Errorf("EVENT_CODEC must be json or cbor")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.AMQPURL != "" && cfg.AMQPExchange == "" {
		return AppConfig{}, fmt.Errorf("AMQP_EXCHANGE must not be empty")
	}

	return cfg, nil
}

// getEnv returns the trimmed value of key, or fallback when unset.
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getPositiveInt(key string, fallback int) (int, error) {
	v, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return v, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// splitCSV splits a comma separated list, dropping empty entries.
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
