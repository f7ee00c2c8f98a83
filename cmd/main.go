package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Dosada05/tabletennis-bracket/brackets"
	"github.com/Dosada05/tabletennis-bracket/config"
	"github.com/Dosada05/tabletennis-bracket/db"
	"github.com/Dosada05/tabletennis-bracket/events"
	"github.com/Dosada05/tabletennis-bracket/handlers"
	"github.com/Dosada05/tabletennis-bracket/livescore"
	"github.com/Dosada05/tabletennis-bracket/locks"
	"github.com/Dosada05/tabletennis-bracket/logging"
	"github.com/Dosada05/tabletennis-bracket/repositories"
	api "github.com/Dosada05/tabletennis-bracket/routes"
	"github.com/Dosada05/tabletennis-bracket/scheduler"
	"github.com/Dosada05/tabletennis-bracket/services"
	"github.com/Dosada05/tabletennis-bracket/storage"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	logging.Set(logger)
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded", zap.Int("port", cfg.ServerPort))

	if err := run(cfg, logger); err != nil {
		logger.Error("application failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище: PostgreSQL, либо память, если DATABASE_URL не задан
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger.Named("ws"))
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	var (
		locker    locks.Locker = locks.NewLocalLocker()
		live      livescore.Store
		publisher events.Publisher = events.NewHubPublisher(wsHub)
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}

		origin := events.NewOrigin()
		locker = locks.NewRedisLocker(rdb, logger.Named("locks"))
		live = livescore.NewRedisStore(rdb)
		publisher = events.Multi{
			publisher,
			events.NewRedisPublisher(rdb, events.DefaultChannel, origin),
		}
		relay := events.NewRelay(rdb, events.DefaultChannel, origin, events.NewHubPublisher(wsHub), logger.Named("relay"))
		go func() {
			if err := relay.Run(ctx, nil); err != nil {
				logger.Error("event relay stopped", zap.Error(err))
			}
		}()
		logger.Info("redis coordination enabled", zap.String("addr", opts.Addr))
	} else {
		logger.Warn("REDIS_URL not set, locks and live scores are local to this instance")
	}

	// Инициализация загрузчика файлов (Cloudflare R2)
	var archiver services.Archiver
	if cfg.R2.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		}, logger.Named("r2"))
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		archiver = storage.NewStandingsArchiver(uploader, logger.Named("archive"))
		logger.Info("Cloudflare R2 uploader initialized")
	}

	// Инициализация сервисов
	notifier := services.NewNotifier(publisher, logger.Named("notify"))
	standingsService := services.NewStandingsService(store, archiver, notifier, logger)
	engine := services.NewAdvancementEngine(store, notifier, standingsService, logger.Named("advance"))
	bracketService := services.NewBracketService(store, engine, nil, notifier, standingsService, logger)
	matchService := services.NewMatchService(store, engine, locker, live, notifier, logger)
	logger.Info("Services initialized")

	resync := scheduler.NewResyncScheduler(cfg.ResyncSchedule, store, engine, locker, logger.Named("resync"))
	if err := resync.Start(ctx); err != nil {
		return err
	}
	defer resync.Stop()

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{JWTSecret: cfg.JWTSecretKey, AllowedOrigins: cfg.CORSAllowedOrigins},
		handlers.NewTournamentHandler(bracketService, standingsService),
		handlers.NewMatchHandler(matchService),
		handlers.NewWebSocketHandler(wsHub, bracketService, cfg.CORSAllowedOrigins, logger.Named("ws")),
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     zap.NewStdLog(logger.Named("http")),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", zap.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", zap.Error(closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using the in-memory store")
		return repositories.NewMemoryStore(), func() {}, nil
	}

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func(conn *sql.DB) {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close database connection", zap.Error(err))
		} else {
			logger.Info("database connection closed")
		}
	}
	if err := db.Migrate(ctx, dbConn, logger); err != nil {
		closeDB(dbConn)
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("database connection established")
	return repositories.NewPostgresStore(dbConn, logger), func() { closeDB(dbConn) }, nil
}
