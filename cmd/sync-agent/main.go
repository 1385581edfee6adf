package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordersync/internal/api/handlers"
	"ordersync/internal/config"
	"ordersync/internal/domain"
	"ordersync/internal/infrastructure/audio"
	"ordersync/internal/infrastructure/push"
	redisinfra "ordersync/internal/infrastructure/redis"
	"ordersync/internal/infrastructure/stream"
	"ordersync/internal/services"
	"ordersync/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting order sync agent")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log.Info("Configuration loaded", "config", cfg.GetConfigString())

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize infrastructure
	readModels := redisinfra.NewReadModelCache(rdb, log)
	player := audio.NewCommandPlayer(cfg.Alerts.PlayerCommand, cfg.Alerts.Sound, cfg.Alerts.Volume, log)

	var notifier domain.NotificationProvider
	if cfg.Notify.Enabled && cfg.Notify.Command != "" {
		notifier = push.NewDesktopProvider(cfg.Notify.Command, cfg.Notify.Enabled, log)
	} else {
		notifier = push.NewLogProvider(log)
	}

	// Initialize services
	store := services.NewNotificationStore(log)
	classifier := services.NewClassifier(cfg.Roles(), cfg.Session.StoreID, log)
	alerts := services.NewAlertManager(player, log)
	dispatcher := services.NewCacheDispatcher(readModels, log)

	engine := services.NewSyncEngine(classifier, alerts, dispatcher, store, notifier, log)
	engine.Start()

	// Initialize the event-stream connection
	var transport domain.StreamTransport
	switch cfg.Stream.Transport {
	case "websocket":
		transport = stream.NewWebsocketTransport(cfg.StreamEndpoint(), log)
	default:
		transport = stream.NewPollingTransport(cfg.StreamEndpoint(), cfg.Stream.PollTimeout, log)
	}

	manager := stream.NewManager(transport, stream.Config{
		ReconnectDelay:       cfg.Stream.ReconnectDelay,
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
	}, engine.HandleEvent, log)
	manager.OnDisconnected(func() {
		log.Warn("Event stream disconnected")
	})

	if err := manager.Connect(cfg.Session.Token); err != nil {
		log.Error("Failed to start stream connection", "error", err)
	}

	// Heartbeat watchdog
	watchdog := services.NewWatchdog(manager, store, readModels, cfg.Heartbeat.Interval, log)
	if err := watchdog.Start(); err != nil {
		log.Error("Failed to start watchdog", "error", err)
		os.Exit(1)
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
	}))

	// API routes
	api := e.Group("/api/v1")
	notificationHandler := handlers.NewNotificationHandler(store, alerts, log)
	notificationHandler.Register(api)

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "order-sync-agent",
			"connected": manager.Connected(),
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
		})
	})

	// Start server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting sync agent server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down sync agent...")

	watchdog.Stop()
	manager.Disconnect()
	engine.Stop()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Sync agent stopped")
}
