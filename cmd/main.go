package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/pfc-club/petanque-platform/config"
	"github.com/pfc-club/petanque-platform/db"
	"github.com/pfc-club/petanque-platform/handlers"
	"github.com/pfc-club/petanque-platform/live"
	"github.com/pfc-club/petanque-platform/repositories"
	api "github.com/pfc-club/petanque-platform/routes"
	"github.com/pfc-club/petanque-platform/services"
	"github.com/pfc-club/petanque-platform/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Хранилище фото счёта (Cloudflare R2) опционально.
	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage is not configured, evidence uploads disabled")
	}

	// WebSocket Hub для live-обновлений табло
	wsHub := live.NewHub(logger)
	go wsHub.Run()

	// Репозитории
	txRunner := repositories.NewTxRunner(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	courtRepo := repositories.NewPostgresCourtRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	activationRepo := repositories.NewPostgresMatchActivationRepository(dbConn)
	resultRepo := repositories.NewPostgresMatchResultRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	tournamentTeamRepo := repositories.NewPostgresTournamentTeamRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)

	// Сервисы
	teamService := services.NewTeamService(txRunner, teamRepo, playerRepo, logger)
	draftService := services.NewDraftService(txRunner, teamRepo, playerRepo, logger)
	courtService := services.NewCourtService(txRunner, courtRepo, matchRepo, tournamentRepo, activationRepo, wsHub, logger)
	matchService := services.NewMatchService(
		txRunner,
		matchRepo,
		teamRepo,
		activationRepo,
		resultRepo,
		tournamentTeamRepo,
		roundRepo,
		courtService,
		uploader,
		wsHub,
		logger,
	)
	tournamentService := services.NewTournamentService(
		txRunner,
		tournamentRepo,
		tournamentTeamRepo,
		teamRepo,
		playerRepo,
		roundRepo,
		matchRepo,
		wsHub,
		logger,
	)
	logger.Info("services initialized")

	// Страховочный проход по очереди на площадки: если освобождение
	// площадки и продвижение очереди разошлись, планировщик догонит.
	go func() {
		ticker := time.NewTicker(cfg.CourtSweepInterval)
		defer ticker.Stop()
		logger.Info("court backfill scheduler started", slog.Duration("interval", cfg.CourtSweepInterval))
		for range ticker.C {
			promoted, err := courtService.BackfillWaiting(context.Background())
			if err != nil {
				logger.Error("court backfill failed", slog.Any("error", err))
				continue
			}
			if promoted > 0 {
				logger.Info("court backfill promoted matches", slog.Int("count", promoted))
			}
		}
	}()

	// HTTP-обработчики и маршруты
	teamHandler := handlers.NewTeamHandler(teamService, draftService)
	courtHandler := handlers.NewCourtHandler(courtService)
	matchHandler := handlers.NewMatchHandler(matchService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, matchService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, teamHandler, courtHandler, matchHandler, tournamentHandler, webSocketHandler)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}
