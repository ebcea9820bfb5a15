package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"OutcomeLedger/internal/ledger"
	"OutcomeLedger/internal/observability"
	"OutcomeLedger/internal/persistence"
	"OutcomeLedger/internal/publish"
	"OutcomeLedger/internal/query"
	"OutcomeLedger/internal/server"
	"OutcomeLedger/internal/store"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Config holds all application configuration, loaded from environment
// variables. Empty Postgres/Redis/NATS settings degrade gracefully: no
// DSN means the in-memory store (development only), no Redis means no
// market cache, no NATS means no outbound events.
type Config struct {
	PostgresDSN string
	RedisURL    string
	NATSURL     string

	HTTPAddr    string
	MetricsAddr string

	MigrationsDir  string
	PublishBuffer  int
	MarketCacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		PostgresDSN:    os.Getenv("LEDGER_POSTGRES_DSN"),
		RedisURL:       os.Getenv("LEDGER_REDIS_URL"),
		NATSURL:        os.Getenv("LEDGER_NATS_URL"),
		HTTPAddr:       envOrDefault("LEDGER_HTTP_ADDR", ":8080"),
		MetricsAddr:    envOrDefault("LEDGER_METRICS_ADDR", ":9091"),
		MigrationsDir:  envOrDefault("LEDGER_MIGRATIONS_DIR", "migrations"),
		PublishBuffer:  envIntOrDefault("LEDGER_PUBLISH_BUFFER", 4096),
		MarketCacheTTL: time.Duration(envIntOrDefault("LEDGER_MARKET_CACHE_TTL_SECONDS", 300)) * time.Second,
	}
}

func main() {
	log := observability.NewLogger("outcomeledger")
	log.Info().Msg("OutcomeLedger starting")

	cfg := DefaultConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Store ---
	var st store.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres open")
		}
		defer db.Close()

		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping")
		}
		log.Info().Msg("postgres connected")

		migrator := persistence.NewMigrator(db, cfg.MigrationsDir, log)
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}
		log.Info().Msg("migrations applied")

		st = store.NewPostgresStore(db)
	} else {
		log.Warn().Msg("no LEDGER_POSTGRES_DSN set, using in-memory store (state is not durable)")
		st = store.NewMemoryStore()
	}

	// --- Redis market cache ---
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse redis url")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis ping")
		}
		log.Info().Msg("redis connected")

		st = store.NewCachedStore(st, rdb, cfg.MarketCacheTTL, metrics)
	}

	// --- NATS outbound publisher ---
	var events server.EventSink
	var publisher *publish.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Close()
		log.Info().Msg("nats connected")

		js, err := jetstream.New(nc)
		if err != nil {
			log.Fatal().Err(err).Msg("jetstream init")
		}
		if err := publish.EnsureStream(ctx, js); err != nil {
			log.Fatal().Err(err).Msg("ensure outbound stream")
		}

		publisher = publish.NewPublisher(js, cfg.PublishBuffer, metrics, log)
		events = publisher
	} else {
		log.Warn().Msg("no LEDGER_NATS_URL set, outbound events disabled")
	}

	// --- Services ---
	engine := ledger.NewEngine(st, st, metrics, log)
	queries := query.NewService(st)
	srv := server.NewServer(engine, queries, st, events, healthChecker, metrics, log)

	errChan := make(chan error, 4)

	if publisher != nil {
		go func() {
			errChan <- publisher.Run(ctx)
		}()
	}

	// --- HTTP API server ---
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Router(),
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// --- Prometheus metrics server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	healthChecker.SetReady(true)
	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("OutcomeLedger ready")

	// --- Wait for shutdown ---
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errChan:
		log.Error().Err(err).Msg("fatal server error")
	}

	healthChecker.SetReady(false)
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := httpServer.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	metricsServer.Shutdown(shutCtx)

	log.Info().Msg("OutcomeLedger stopped")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
