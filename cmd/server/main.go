package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"studybuddy-backend/internal/config"
	"studybuddy-backend/internal/database"
	"studybuddy-backend/internal/handlers"
	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/metrics"
	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/repository"
	"studybuddy-backend/internal/router"
	"studybuddy-backend/internal/services"
	"studybuddy-backend/internal/storage"
	"studybuddy-backend/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("starting StudyBuddy backend", "env", cfg.Env)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	// ──── Step 3: Run Database Migrations ────
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("database migrations applied")

	// ──── Step 4: Initialize Redis Clients ────
	rdb, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()
	log.Info("redis connected")

	// ──── Step 5: Metrics ────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(reg)

	// ──── Step 6: Document Storage ────
	files, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	log.Info("document storage ready", "type", cfg.StorageType)

	// ──── Step 7: Initialize Gemini Client ────
	completer, err := services.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, recorder)
	if err != nil {
		return fmt.Errorf("gemini: %w", err)
	}
	defer completer.Close()
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not set, AI tutor replies with the fallback message")
	} else {
		log.Info("gemini client initialized", "model", cfg.GeminiModel)
	}

	// ──── Initialize Repositories ────
	txManager := repository.NewTxManager(pool)
	userRepo := repository.NewUserRepo(pool)
	roomRepo := repository.NewRoomRepo(pool)
	sessionRepo := repository.NewStudySessionRepo(pool)
	flashcardRepo := repository.NewFlashcardRepo(pool)
	practiceTestRepo := repository.NewPracticeTestRepo(pool)
	conversationRepo := repository.NewConversationRepo(pool)
	documentRepo := repository.NewDocumentRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := websocket.NewRedisPublisher(rdb.RoomEvents)

	authService := services.NewAuthService(userRepo, services.NewRedisTokenStore(rdb.Tokens), jwtAuth)
	roomService := services.NewRoomService(txManager, roomRepo, sessionRepo, userRepo, publisher, recorder)
	flashcardService := services.NewFlashcardService(flashcardRepo, recorder)
	tutorService := services.NewTutorService(txManager, conversationRepo, flashcardRepo, practiceTestRepo, documentRepo, completer)
	documentService := services.NewDocumentService(documentRepo, files, services.NewTextExtractor(), services.NewYouTubeService(), roomRepo)
	paymentService := services.NewPaymentService(txManager, userRepo, paymentRepo, services.NewSandboxGateway(cfg.IntaSendCheckoutURL))

	// ──── Step 8: Start WebSocket Hub ────
	wsHub := websocket.NewHub(websocket.NewRedisFeed(rdb.RoomEvents), jwtAuth, roomRepo)
	defer wsHub.Close()
	log.Info("websocket hub started")

	// ──── Step 9: Start HTTP Server ────
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimitPerMin)
	defer authLimiter.Stop()

	r := router.New(
		jwtAuth,
		authLimiter,
		middleware.Logger(log, recorder),
		router.Handlers{
			Auth:      handlers.NewAuthHandler(authService),
			Rooms:     handlers.NewRoomHandler(roomService),
			Tutor:     handlers.NewTutorHandler(tutorService, flashcardService),
			Documents: handlers.NewDocumentHandler(documentService),
			Payments:  handlers.NewPaymentHandler(paymentService),
			RoomFeed:  wsHub.ServeRoom,
			Metrics:   metrics.Handler(reg),
		},
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("StudyBuddy backend ready", "addr", server.Addr, "api", "/api")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch strings.ToLower(cfg.StorageType) {
	case "minio":
		return storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	case "", "local":
		return storage.NewLocal(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown STORAGE_TYPE %q", cfg.StorageType)
	}
}
