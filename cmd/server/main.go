package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"cadence.app/outreach/common/id"
	"cadence.app/outreach/common/logger"
	"cadence.app/outreach/common/otel"
	"cadence.app/outreach/core/config"
	"cadence.app/outreach/core/db"
	"cadence.app/outreach/internal/gateway"
	"cadence.app/outreach/internal/http/middleware"
	httprouter "cadence.app/outreach/internal/http/router"
	"cadence.app/outreach/internal/ledger"
	"cadence.app/outreach/internal/poller"
	"cadence.app/outreach/internal/queue"
	"cadence.app/outreach/internal/schedule"
	"cadence.app/outreach/internal/scheduler"
	"cadence.app/outreach/internal/sequence"
	"cadence.app/outreach/internal/service"
	"cadence.app/outreach/internal/store"
)

const tickLockKey = "outreach:scheduler:tick"

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "outreach server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
	defer producer.Close()

	stores := store.NewStores(database.Queries())
	txRunner := store.NewTxRunner(database)
	gw := gateway.New(cfg.Gateway)

	sched, err := newScheduler(cfg, stores, txRunner, gw, redisClient)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build scheduler", "error", err)
		os.Exit(1)
	}
	if cfg.Scheduler.Autostart {
		if err := sched.Start(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	services := service.NewServices(stores, txRunner, gw, producer, slog.Default())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, sched)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := sched.Close(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "scheduler shutdown error", "error", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func newScheduler(cfg config.Config, stores *store.Stores, txRunner store.TxRunner, gw gateway.Gateway, redisClient *redis.Client) (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Limits.Timezone)
	if err != nil {
		slog.Warn("invalid default timezone, using UTC", "timezone", cfg.Limits.Timezone, "error", err)
		loc = time.UTC
	}
	window, err := schedule.NewWindow(loc, cfg.Limits.WorkStartHour, cfg.Limits.WorkEndHour)
	if err != nil {
		return nil, err
	}

	rateLedger := ledger.New(stores.RateUsage(), ledger.Limits{
		Invites:             cfg.Limits.DailyInvites,
		Messages:            cfg.Limits.DailyMessages,
		FirstDegreeMessages: cfg.Limits.DailyFirstDegreeMessage,
	}, cfg.Scheduler.UsageRetentionDays)

	executor := sequence.NewExecutor(stores, txRunner, rateLedger, gw, sequence.Config{
		Window:               window,
		BackoffBase:          cfg.Scheduler.BackoffBase,
		BackoffMax:           cfg.Scheduler.BackoffMax,
		MaxTransientFailures: cfg.Scheduler.MaxTransientFailures,
	})

	connPoller := poller.New(stores, txRunner, gw, cfg.Scheduler.PollMaxPages)

	return scheduler.New(stores, executor, connPoller, rateLedger, scheduler.Config{
		TickInterval: cfg.Scheduler.TickInterval,
		PoolSize:     cfg.Scheduler.PoolSize,
		BatchSize:    cfg.Scheduler.BatchSize,
		PollInterval: cfg.Scheduler.PollInterval,
		LockTTL:      cfg.Scheduler.LockTTL,
	}, scheduler.WithLock(scheduler.NewRedisLock(redisClient, tickLockKey))), nil
}

func setupRouter(cfg config.Config, services *service.Services, sched *scheduler.Scheduler) *gin.Engine {
	router := gin.New()

	// otelgin first so Recovery and Logger see the request span.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, sched, httprouter.RouterConfig{
		TraceHeaderName:        cfg.Pipeline.TraceHeaderName,
		AdminAPIKey:            cfg.AdminAPIKey,
		WebhookSecret:          cfg.Webhook.Secret,
		WebhookSignatureHeader: cfg.Webhook.SignatureHeader,
	})

	return router
}

const banner = `
 ██████╗ ██╗   ██╗████████╗██████╗ ███████╗ █████╗  ██████╗██╗  ██╗
██╔═══██╗██║   ██║╚══██╔══╝██╔══██╗██╔════╝██╔══██╗██╔════╝██║  ██║
██║   ██║██║   ██║   ██║   ██████╔╝█████╗  ███████║██║     ███████║
██║   ██║██║   ██║   ██║   ██╔══██╗██╔══╝  ██╔══██║██║     ██╔══██║
╚██████╔╝╚██████╔╝   ██║   ██║  ██║███████╗██║  ██║╚██████╗██║  ██║
 ╚═════╝  ╚═════╝    ╚═╝   ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝
                                                             server
`
