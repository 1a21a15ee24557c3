package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"ephemeral-chat/internal/config"
	"ephemeral-chat/internal/handlers"
	"ephemeral-chat/internal/logging"
	"ephemeral-chat/internal/middleware"
	"ephemeral-chat/internal/observability"
	"ephemeral-chat/internal/rabbitmq"
	"ephemeral-chat/internal/realtime"
	"ephemeral-chat/internal/repositories"
	"ephemeral-chat/internal/services"
	"ephemeral-chat/internal/store"
	"ephemeral-chat/internal/telemetry"
	"ephemeral-chat/internal/tracing"
	"ephemeral-chat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment, log)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	kv, err := store.Connect(connectCtx, store.Options{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		MaxRetries: cfg.MutationRetries,
	}, log)
	cancel()
	if err != nil {
		log.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	log.Info("audit publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)),
	)
	audit := telemetry.NewAuditEmitter(publisher, "audit.rooms", cfg.ServiceName, cfg.Environment, log)

	roomRepo := repositories.NewRoomRepo(kv)
	messageRepo := repositories.NewMessageRepo(kv)
	presenceRepo := repositories.NewPresenceRepo(kv)

	broadcaster := realtime.NewBroadcaster(kv, log)
	hub := ws.NewHub(broadcaster, log)

	roomService := services.NewRoomService(roomRepo, broadcaster, services.RoomConfig{
		TTL:      cfg.RoomTTL,
		Capacity: cfg.RoomCapacity,
	}, log)
	messageService := services.NewMessageService(roomRepo, messageRepo, broadcaster, log)
	presenceService := services.NewPresenceService(roomRepo, presenceRepo, broadcaster, cfg.PresenceWindow, log)
	guard := services.NewGuard(roomRepo)

	hub.OnLeave(func(roomID string, info ws.ConnInfo) {
		if err := roomService.LeaveRoom(context.Background(), roomID, info.Username); err != nil {
			log.Warn("leave notice failed", zap.String("room_id", roomID), zap.String("username", info.Username), zap.Error(err))
		}
	})

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	handlers.RegisterRoutes(router, handlers.Routes{
		Rooms:       handlers.NewRoomHandler(roomService, audit, log),
		Messages:    handlers.NewMessageHandler(messageService, log),
		Presence:    handlers.NewPresenceHandler(presenceService, log),
		WebSocket:   ws.NewRoomWebSocketHandler(hub, guard, audit, log).Handle,
		RoomAuth:    middleware.RoomAuth(guard),
		DestroyAuth: middleware.DestroyAuth(guard),
		Health:      handlers.Healthz(kv),
		Metrics:     promhttp.Handler(),
		Audit:       audit,
		Debug:       cfg.DebugRoutes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr), zap.Duration("room_ttl", cfg.RoomTTL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
		"websocket-hub": func(ctx context.Context) error {
			return hub.Close(ctx)
		},
		"audit-publisher": func(ctx context.Context) error {
			return publisher.Close()
		},
		"tracing": func(ctx context.Context) error {
			return shutdownTracing(ctx)
		},
	})

	exitCode := <-wait
	if err := kv.Close(); err != nil {
		log.Warn("redis close failed", zap.Error(err))
	}
	log.Info("service stopped", zap.Int("exit_code", exitCode))
	_ = log.Sync()
	os.Exit(exitCode)
}
