package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"formaflix-backend/internal/config"
	"formaflix-backend/internal/database"
	"formaflix-backend/internal/handlers"
	"formaflix-backend/internal/middleware"
	"formaflix-backend/internal/repository"
	"formaflix-backend/internal/router"
	"formaflix-backend/internal/services"
	"formaflix-backend/internal/stream"
	"formaflix-backend/internal/websocket"
	"formaflix-backend/internal/worker"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.Info("Starting Formaflix Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if cfg.Env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	log.Info("Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("PostgreSQL connection failed")
	}
	defer pool.Close()
	log.Info("PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("Redis connection failed")
	}
	defer redisClients.Close()
	log.Info("Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsDir); err != nil {
		log.WithError(err).Fatal("Database migration failed")
	}
	log.Info("Database migrations applied")

	// ──── Initialize Repositories ────
	courseRepo := repository.NewCourseRepo(pool)
	lessonRepo := repository.NewLessonRepo(pool)
	enrollmentRepo := repository.NewEnrollmentRepo(pool)
	progressRepo := repository.NewProgressRepo(pool)

	// ──── Initialize Streaming Platform Components ────
	streamCfg := cfg.StreamConfig()
	streamClient := stream.NewClient(streamCfg)
	signer := stream.NewSigner(streamCfg)
	urlBuilder := stream.NewURLBuilder(streamCfg)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	reconciler := services.NewReconciler(redisClients.PubSub, log, lessonRepo, courseRepo)
	ingestionService := services.NewIngestionService(streamClient, reconciler, streamCfg, log, lessonRepo, courseRepo)
	playbackService := services.NewPlaybackService(signer, urlBuilder, cfg.PlaybackTokenTTL)
	learningService := services.NewLearningService(courseRepo, lessonRepo, enrollmentRepo, progressRepo, playbackService)

	// ──── Initialize Handlers ────
	webhookHandler := handlers.NewWebhookHandler(cfg.StreamWebhookSecret, reconciler, log)
	courseHandler := handlers.NewCourseHandler(courseRepo, lessonRepo, learningService)
	lessonHandler := handlers.NewLessonHandler(learningService)
	progressHandler := handlers.NewProgressHandler(learningService)
	streamAdminHandler := handlers.NewStreamAdminHandler(ingestionService)

	// ──── Step 5: Start Refresh Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, ingestionService, cfg.WorkerCount, log)
	workerPool.Start()

	refreshScheduler := services.NewRefreshScheduler(ingestionService, redisClients.Queue, cfg.StreamRefreshInterval, log)
	refreshScheduler.Start()

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret, log)
	log.Info("WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		webhookHandler,
		courseHandler,
		lessonHandler,
		progressHandler,
		streamAdminHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		workerPool.Stop()
		refreshScheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Infof("Formaflix Backend ready on http://localhost:%s", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server error")
	}
}
