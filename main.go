package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabforcause/config"
	"collabforcause/middleware"
	"collabforcause/relay"
	"collabforcause/routes"
	"collabforcause/utils"
	"collabforcause/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	utils.InitLogger(config.AppConfig.Environment, config.AppConfig.LogLevel)
	logger := utils.Log
	if err := utils.InitSentry(config.AppConfig.SentryDSN, config.AppConfig.Environment); err != nil {
		logger.WithError(err).Warn("sentry disabled")
	}
	defer utils.FlushSentry()

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := fiber.New(fiber.Config{
		AppName:      "CollabForCause API",
		ErrorHandler: utils.FiberErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.CORS(middleware.DefaultCORSConfig(config.AppConfig.ClientURL)))

	hub := relay.NewHub(logger)
	var limiterStorage fiber.Storage
	if config.AppConfig.Redis.Enabled {
		client := middleware.NewRedisClient(config.AppConfig.Redis)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("redis unreachable")
		}
		limiterStorage = middleware.NewRedisStorage(client)

		bridge := relay.NewRedisBridge(client, hub)
		hub.Publisher = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.WithError(err).Error("relay redis bridge stopped")
			}
		}()
	}

	if config.AppConfig.SMTP.Enabled() {
		notificationWorker := worker.NewNotificationWorker(
			config.DB,
			utils.NewSMTPMailer(config.AppConfig.SMTP),
			logger,
			config.AppConfig.NotifyInterval,
		)
		go notificationWorker.Start(ctx)
	} else {
		logger.Warn("SMTP not configured, notifications will stay pending")
	}

	routes.SetupRoutes(app, routes.Deps{
		DB:             config.DB,
		Hub:            hub,
		Logger:         logger,
		LimiterStorage: limiterStorage,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down server")
		cancel()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Error("graceful shutdown failed")
		}
	}()

	logger.Infof("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
