package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/config"
	"autorepair-shop-server/internal/jobs"
	"autorepair-shop-server/internal/logging"
	"autorepair-shop-server/internal/mailer"
	"autorepair-shop-server/internal/middleware"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/policy"
	"autorepair-shop-server/internal/routes"
	"autorepair-shop-server/internal/storage"
	"autorepair-shop-server/internal/utils"
)

func main() {
	// A missing .env is fine; the process environment is used as is.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger := logging.New(cfg.LogFile, !cfg.IsProduction())
	slog.SetDefault(logger)

	db, err := models.InitDB(models.DatabaseConfig{
		DSN:   cfg.Database.DSN,
		Debug: !cfg.IsProduction(),
	})
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}

	utils.RegisterValidators()

	// Rate limiting needs Redis; without it every request is allowed.
	var limiter redis.Cmdable
	if cfg.RateLimit.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		limiter = client
	} else {
		logger.Warn("REDIS_URL not set, rate limiting disabled")
	}

	var sender mailer.Sender = mailer.LogSender{Logger: logger}
	if cfg.Mailer.Host != "" {
		smtp, err := mailer.NewSMTPSender(cfg.Mailer)
		if err != nil {
			log.Fatalf("Error configuring SMTP: %v", err)
		}
		sender = smtp
	} else {
		logger.Warn("SMTP_HOST not set, emails are only logged")
	}
	notifier := mailer.NewNotifier(sender, logger, cfg.Mailer.AdminEmail)

	store, err := storage.New(context.Background(), cfg.Storage)
	if err != nil {
		logger.Warn("file storage unavailable, uploads disabled", slog.String("error", err.Error()))
		store = nil
	}

	now := clock.Real()

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(cfg.ShopLocation))
	if err != nil {
		log.Fatalf("Error creating scheduler: %v", err)
	}
	if _, err := jobs.Schedule(scheduler, cfg.Reminders.Interval, &jobs.ReminderDispatcher{
		DB:       db,
		Sender:   notifier,
		Now:      now,
		Location: cfg.ShopLocation,
		Logger:   logger,
	}); err != nil {
		log.Fatalf("Error scheduling reminders: %v", err)
	}
	scheduler.Start()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestLogger(logger),
		middleware.ErrorHandler(),
		middleware.Recovery(),
		middleware.Locale(),
	)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Accept-Language", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Deps{
		DB:         db,
		Config:     cfg,
		Redis:      limiter,
		Notifier:   notifier,
		Storage:    store,
		Authorizer: policy.New(nil),
		Now:        now,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr), slog.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", slog.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Error("scheduler shutdown failed", slog.String("error", err.Error()))
	}
	notifier.Wait()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("server stopped")
}
