package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	kafkaadapter "github.com/i474232898/easy-homey/internal/adapter/kafka"
	mqttadapter "github.com/i474232898/easy-homey/internal/adapter/mqtt"
	httpapi "github.com/i474232898/easy-homey/internal/api/http"
	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/integration"
	"github.com/i474232898/easy-homey/internal/location"
	"github.com/i474232898/easy-homey/internal/observability"
	"github.com/i474232898/easy-homey/internal/setup"
	"github.com/i474232898/easy-homey/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg)
	slog.SetDefault(log)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Location references: Home Assistant entities and geocoded addresses are optional.
	resolver := &location.Router{}
	if cfg.HAURL != "" {
		resolver.Entities = location.NewHomeAssistant(cfg.HAURL, cfg.HAToken, nil)
	}
	if cfg.GeocoderAPIKey != "" {
		resolver.Addresses = location.NewGeocoder(cfg.GeocoderAPIKey)
	}

	// Publication sinks.
	var sinks []integration.Sink
	if cfg.MQTT.Broker != "" {
		pub := mqttadapter.NewPublisher(cfg.MQTT, log)
		pub.Start(ctx)
		defer pub.Close()
		sinks = append(sinks, pub)
	}
	if len(cfg.KafkaBrokers) > 0 {
		w := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer w.Close()
		sinks = append(sinks, w)
	}

	entry := integration.New(integration.Deps{
		EntryID:    cfg.EntryID,
		APITimeout: cfg.APITimeout,
		Resolver:   resolver,
		Store:      store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge),
		Sinks:      sinks,
		Metrics:    metrics,
		Logger:     log,
	})
	if err := entry.Setup(ctx, cfg.Settings()); err != nil {
		log.Error("failed to set up integration", "error", err)
		os.Exit(1)
	}
	defer entry.Unload()

	flow := setup.NewFlow(cfg, func(s config.Settings) setup.Client { return entry.NewClient(s) }, resolver, entry.Reload, log)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "easy-homey",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * time.Minute,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "easy-homey",
			"entry_id": cfg.EntryID,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, entry, flow)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()
	log.Info("easy-homey started", "port", cfg.Port, "entry_id", cfg.EntryID)

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
