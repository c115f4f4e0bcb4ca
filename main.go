package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"realtime-chat/internal/config"
	"realtime-chat/internal/db"
	"realtime-chat/internal/handlers"
	"realtime-chat/internal/logging"
	"realtime-chat/internal/middleware"
	"realtime-chat/internal/observability"
	"realtime-chat/internal/presence"
	"realtime-chat/internal/rabbitmq"
	"realtime-chat/internal/repositories"
	"realtime-chat/internal/session"
	"realtime-chat/internal/telemetry"
	"realtime-chat/internal/typing"
	"realtime-chat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	stores, closeStores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger)
	logger.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))

	hub := ws.NewHub(logger.Named("hub"))
	coord := session.NewCoordinator(stores, presence.New(), typing.New(), hub,
		session.WithLogger(logger.Named("session")),
		session.WithAuditor(audit),
		session.WithStoreTimeout(cfg.StoreTimeout),
		session.WithHistoryLimit(cfg.HistoryLimit),
		session.WithMaxMessageLength(cfg.MaxMessageLen),
	)
	if err := coord.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go coord.RunTypingJanitor(janitorCtx, cfg.TypingTTL/2, cfg.TypingTTL)

	wsHandler := ws.NewHandler(hub, coord, ws.Options{
		EventRate:     cfg.EventRate,
		EventBurst:    cfg.EventBurst,
		SendBuffer:    cfg.SendBuffer,
		MaxFrameBytes: int64(cfg.MaxMessageLen)*4 + 4096,
	}, logger.Named("ws"))

	router := newRouter(cfg, logger, coord, wsHandler, audit)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("backend", cfg.Backend()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	stopJanitor()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	hub.CloseAll()
	n, err := coord.MarkAllOffline(shutdownCtx)
	if err != nil {
		logger.Warn("mark users offline", zap.Error(err))
	} else {
		logger.Info("users marked offline", zap.Int("count", n))
	}
	return nil
}

func newRouter(cfg config.Config, logger *zap.Logger, coord *session.Coordinator, wsHandler *ws.Handler, audit *telemetry.AuditEmitter) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		middleware.RequestLogger(logger.Named("http"), "/ws", "/metrics"),
		observability.HTTPMetricsMiddleware(),
	)

	handlers.NewQueryHandler(coord, cfg.Backend(), logger.Named("http")).Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHandler.Handle)
	handlers.RegisterDebugRoutes(router, audit, coord.Lookup, cfg.DebugRoutes)
	return router
}

// buildStores picks the storage backend: Postgres when DB_DSN is set,
// memory otherwise. REDIS_ADDR moves the reaction ledger to Redis.
func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (session.Stores, func(), error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("close store", zap.Error(err))
			}
		}
	}

	var stores session.Stores
	if cfg.Backend() == "postgres" {
		database, err := db.Connect(ctx, cfg.DatabaseDSN, logger)
		if err != nil {
			return stores, nil, err
		}
		closers = append(closers, database.Close)
		stores = session.Stores{
			Messages:  repositories.NewMessageRepo(database),
			Reactions: repositories.NewReactionRepo(database),
			Rooms:     repositories.NewRoomRepo(database),
			Users:     repositories.NewUserRepo(database),
		}
	} else {
		logger.Warn("DB_DSN not set, state is kept in memory")
		stores = session.Stores{
			Messages:  repositories.NewMemoryMessageRepo(),
			Reactions: repositories.NewMemoryReactionRepo(),
			Rooms:     repositories.NewMemoryRoomRepo(),
			Users:     repositories.NewMemoryUserRepo(),
		}
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			closeAll()
			return stores, nil, fmt.Errorf("redis ping: %w", err)
		}
		closers = append(closers, client.Close)
		stores.Reactions = repositories.NewRedisReactionRepo(client)
		logger.Info("reaction ledger on redis", zap.String("addr", cfg.RedisAddr))
	}
	return stores, closeAll, nil
}
