package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/4000degrees/airmq-wind-server/internal/api/http"
	"github.com/4000degrees/airmq-wind-server/internal/config"
	"github.com/4000degrees/airmq-wind-server/internal/metrics"
	"github.com/4000degrees/airmq-wind-server/internal/scheduler"
	"github.com/4000degrees/airmq-wind-server/internal/store"
	"github.com/4000degrees/airmq-wind-server/internal/wind"
	"github.com/4000degrees/airmq-wind-server/internal/wind/convert"
	"github.com/4000degrees/airmq-wind-server/internal/wind/gfs"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound GFS calls.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}

	// On-disk cycle cache.
	diskStore := store.NewDiskStore(cfg.DatasetDir())

	collector := metrics.NewCollector()

	source := gfs.NewClient(httpClient, cfg.GFSBaseURL)
	converter := convert.NewGrib2JSON(cfg.Grib2JSONPath, cfg.ConvertTimeout)

	// Core pipeline service over the disk store.
	service := wind.NewService(diskStore, source, converter, cfg.WorkDir(), cfg.PublishDelay, collector)

	// Scheduler that keeps the retention window stocked.
	sched := scheduler.New(service, diskStore, collector, scheduler.Config{
		Interval:       cfg.RefreshInterval,
		Retention:      cfg.RetentionCycles,
		PublishDelay:   cfg.PublishDelay,
		AttemptTimeout: cfg.FetchTimeout + cfg.ConvertTimeout + 30*time.Second,
	})
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Prometheus endpoint on its own port.
	go func() {
		if err := metrics.StartServer(cfg.MetricsPort, collector); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "airmq-wind-server",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "airmq-wind-server",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
