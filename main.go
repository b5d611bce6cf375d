package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"conecte/config"
	"conecte/middleware"
	"conecte/routes"
	"conecte/store"
	"conecte/worker"
)

func main() {
	logger := log.New(os.Stdout, "CONECTE: ", log.Ldate|log.Ltime|log.Lshortfile)

	slog := logrus.New()
	slog.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	st, err := openStore()
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}

	// Sentry DSN lives in the stored config so operators can change it
	// without a redeploy
	if cfg, err := st.GetConfig(); err == nil && cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry init failed: %v", err)
		}
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 20 << 20,
	})

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Campaign scheduler: picks up scheduled and interrupted campaigns
	registry := worker.NewRegistry()
	runner := worker.NewRunner(st, registry, log.New(os.Stdout, "RUNNER: ", log.LstdFlags), slog)
	poller := worker.NewPoller(st, registry, log.New(os.Stdout, "POLLER: ", log.LstdFlags), slog)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, st, registry, runner, slog)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

func openStore() (store.Store, error) {
	if config.AppConfig.StoreDriver == config.StoreDriverPostgres {
		if err := config.ConnectDB(); err != nil {
			return nil, err
		}
		return store.NewGormStore(config.DB)
	}
	return store.NewFileStore(config.AppConfig.DataPath, log.New(os.Stdout, "STORE: ", log.LstdFlags))
}
