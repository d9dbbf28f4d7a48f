package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/johnnysally/SmartCare360-sub000/internal/config"
	"github.com/johnnysally/SmartCare360-sub000/internal/domain/analytics"
	"github.com/johnnysally/SmartCare360-sub000/internal/domain/notification"
	"github.com/johnnysally/SmartCare360-sub000/internal/domain/queue"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/auth"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/db"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/events"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/metrics"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/middleware"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/outbox"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/validation"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/websocket"
)

// metricsObserver adapts the Prometheus registry to queue.Observer, keeping
// the metrics package free of domain types.
type metricsObserver struct {
	reg *metrics.Registry
}

func (o metricsObserver) CheckedIn(dept queue.Department) {
	o.reg.ObserveCheckIn(string(dept))
}

func (o metricsObserver) Called(dept queue.Department, claimed bool, wait time.Duration) {
	o.reg.ObserveCall(string(dept), claimed, wait)
}

func (o metricsObserver) Completed(dept queue.Department, routed bool) {
	o.reg.ObserveCompletion(string(dept), routed)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "smartcare-server",
		Short: "SmartCare department queue API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the queue API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func openMigrator(ctx context.Context, cmd *cobra.Command) (*db.Migrator, func(), error) {
	schema, _ := cmd.Flags().GetString("schema")
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns, Timezone: cfg.Timezone})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, os.DirFS(dir), schema), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("schema", "public", "Target schema for migrations")
		c.Flags().String("dir", "./migrations", "Path to migrations directory")
		cmd.AddCommand(c)
	}
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// app is the wired server: HTTP surface plus the background consumers that
// serve() has to start and stop.
type app struct {
	echo   *echo.Echo
	outbox *outbox.Outbox[queue.Event]
	relay  *events.Relay
}

func buildApp(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	reg := metrics.New()
	ob := outbox.New[queue.Event](cfg.OutboxBuffer, logger, reg)

	// Queue store and services
	queueRepo := queue.NewRepoPG(pool)
	opts := queue.Options{
		Events:   ob,
		Observer: metricsObserver{reg: reg},
		Location: loc,
		Logger:   logger.With().Str("component", "queue").Logger(),
	}
	checkIn := queue.NewCheckInService(queueRepo, opts)
	dispatch := queue.NewDispatchService(queueRepo, checkIn, opts)

	// Side-effect consumers
	notifRepo := notification.NewRepoPG(pool)
	emitter := notification.NewEmitter(notifRepo,
		notification.NewLogSMSSender(logger.With().Str("component", "sms").Logger()),
		logger.With().Str("component", "notification").Logger())
	aggregator := analytics.NewAggregator(queueRepo, analytics.NewRepoPG(pool), loc,
		logger.With().Str("component", "analytics").Logger())

	hub := websocket.NewHub(logger.With().Str("component", "board").Logger())
	var board websocket.EventPublisher = hub
	var relay *events.Relay
	if rdb != nil {
		relay = events.NewRelay(rdb, events.DefaultChannel, hub, logger)
		board = relay
	}

	ob.Subscribe("notification", emitter.HandleQueueEvent)
	ob.Subscribe("analytics", aggregator.HandleQueueEvent)
	ob.Subscribe("board", queue.BoardHandler(board))

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
		Skipper:           auth.AuthSkipper,
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Probes and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
	e.GET("/metrics", echo.WrapHandler(reg.Handler()))

	// API groups
	queueGroup := e.Group("/api/v1/queue")
	queue.NewHandler(checkIn, dispatch).RegisterRoutes(queueGroup)
	notification.NewHandler(notifRepo).RegisterRoutes(queueGroup)
	analytics.NewHandler(aggregator).RegisterRoutes(queueGroup)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(queueGroup.Group("", auth.RequireAuthenticated()))

	return &app{echo: e, outbox: ob, relay: relay}, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		bootLogger := newLogger(nil)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns, Timezone: cfg.Timezone})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis is optional; without it the board is served from this instance only.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		logger.Info().Msg("connected to redis")
	}

	a, err := buildApp(cfg, logger, pool, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Background consumers stop when ctx is cancelled.
	bgCtx, cancelBg := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.outbox.Run(bgCtx)
	}()
	if a.relay != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.relay.Listen(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("redis relay stopped")
			}
		}()
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	// Graceful shutdown: stop taking requests, then drain queued side effects.
	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	cancelBg()
	wg.Wait()
	logger.Info().Int("outbox_pending", a.outbox.Len()).Msg("server stopped")
	return nil
}
