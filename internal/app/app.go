package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ddramp/exchange/internal/api"
	"github.com/ddramp/exchange/internal/config"
	"github.com/ddramp/exchange/internal/db"
	"github.com/ddramp/exchange/internal/idempotency"
	"github.com/ddramp/exchange/internal/ledger"
	"github.com/ddramp/exchange/internal/observability"
	"github.com/ddramp/exchange/internal/release"
	"github.com/ddramp/exchange/internal/repository"
	"github.com/ddramp/exchange/internal/service"
	"github.com/ddramp/exchange/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds configuration and the logger shared by the CLI commands.
type App struct {
	Config *config.Config
	Logger *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *App {
	return &App{Config: cfg, Logger: logger}
}

// engine is the wired settlement pipeline.
type engine struct {
	pool   *pgxpool.Pool
	store  *repository.Store
	oracle *ledger.RPCOracle
	worker *worker.CycleWorker
}

func (e *engine) close() {
	e.oracle.Close()
	e.pool.Close()
}

func (a *App) openEngine(ctx context.Context) (*engine, error) {
	cfg := a.Config
	if missing := cfg.MissingLedgerKeys(); len(missing) > 0 {
		a.Logger.Warn("ledger configuration incomplete; dependent stages will idle",
			zap.Strings("missing", missing))
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	store := repository.NewStore(pool)

	oracle := ledger.NewRPCOracle(ledger.RPCOptions{
		URL:        cfg.Ledger.RPCURL,
		Commitment: cfg.Ledger.Commitment,
		Timeout:    cfg.Ledger.Timeout,
	})
	releaser := release.NewCommandReleaser(release.CommandOptions{
		Command:      cfg.Ledger.ReleaseCommand,
		TokenProgram: keyString(cfg.Ledger.TokenProgram),
		DDMint:       keyString(cfg.Ledger.DDMint),
		Treasurer:    cfg.Ledger.TreasurerKey,
		Timeout:      cfg.Ledger.ReleaseTimeout,
	})

	cycle := worker.NewCycleWorker(worker.Cycle{
		Promotion: service.NewPromotionService(store, oracle, cfg.Ledger.ProgramID),
		Matching:  service.NewMatchingService(store, cfg.MatchingLockKey),
		Release: service.NewReleaseService(store, releaser, service.ReleaseConfig{
			TokenProgram:           cfg.Ledger.TokenProgram,
			AssociatedTokenProgram: cfg.Ledger.AssociatedTokenProgram,
			DDMint:                 cfg.Ledger.DDMint,
		}),
		Interval: cfg.CycleInterval,
	})

	return &engine{pool: pool, store: store, oracle: oracle, worker: cycle}, nil
}

// keyString renders an unset key as empty so the releaser reports it as
// not configured.
func keyString(pk ledger.PublicKey) string {
	if pk.IsZero() {
		return ""
	}
	return pk.String()
}

// Migrate applies the embedded schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	pool, err := db.Connect(ctx, a.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return db.Migrate(ctx, pool)
}

// RunCycle runs promotion, matching and release once.
func (a *App) RunCycle(ctx context.Context) (worker.CycleResult, error) {
	observability.Init()
	eng, err := a.openEngine(ctx)
	if err != nil {
		return worker.CycleResult{}, err
	}
	defer eng.close()
	return eng.worker.RunOnce(ctx), nil
}

// Serve runs the HTTP API and the engine loop until SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := a.Config
	logger := a.Logger
	observability.Init()

	eng, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := db.Migrate(ctx, eng.pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	redisClient, err := newRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	repo := repository.NewRepository(eng.pool)
	router := api.NewRouter(
		cfg,
		logger,
		repo,
		idempotency.NewStore(redisClient, eng.pool, cfg.IdempotencyTTL),
		redisClient,
		service.NewOfferService(eng.store),
		service.NewReadoutService(eng.store, cfg.ReadoutHMACKey, cfg.ReadoutSkipSig),
		service.NewAuditService(eng.store),
	)
	if cfg.ReadoutSkipSig {
		logger.Warn("readout signature verification disabled")
	}

	stopWorker := eng.worker.Run(ctx)
	logger.Info("engine worker started", zap.Duration("interval", cfg.CycleInterval))

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping engine worker")
	stopWorker()
	logger.Info("engine worker drained")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return runErr
}

// NewLogger builds the production logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return cfg.Build()
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
