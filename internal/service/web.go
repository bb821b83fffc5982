package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"chime/internal/config"
	"chime/internal/database"
	"chime/internal/httpapi"
	"chime/internal/redisclient"
	"chime/internal/repository"
	"chime/internal/store"
	"chime/internal/weather"
)

// WebService serves the dashboard API.
type WebService struct {
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
	server *http.Server

	alarmRepo     *repository.AlarmRepository
	telemetryRepo *repository.TelemetryRepository
}

func NewWebService(cfg *config.Config, logger *zap.Logger) (*WebService, error) {
	if err := applySecretsOverlay(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := redisclient.New(&cfg.Redis)
	if err := redisclient.Ping(context.Background(), redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	kv := store.NewRedisKV(redisClient)
	alarmRepo := repository.NewAlarmRepository(db, logger)
	telemetryRepo := repository.NewTelemetryRepository(db, logger)

	weatherClient := weather.NewClient(
		cfg.Weather.BaseURL,
		cfg.Weather.APIKey,
		cfg.Weather.Query,
		kv,
		cfg.Weather.CacheTTL,
		logger,
	)

	handler := httpapi.NewHandler(alarmRepo, telemetryRepo, kv, weatherClient, cfg.Ingest.ClockID, logger)
	router := httpapi.NewRouter(logger)
	router.RegisterRoutes(handler)

	server := &http.Server{
		Addr:         cfg.Web.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return &WebService{
		config:        cfg,
		logger:        logger,
		db:            db,
		redis:         redisClient,
		server:        server,
		alarmRepo:     alarmRepo,
		telemetryRepo: telemetryRepo,
	}, nil
}

// Start ensures both schemas exist so a fresh database serves the API
// immediately, then blocks in ListenAndServe until Stop shuts the
// server down.
func (s *WebService) Start(ctx context.Context) error {
	if err := s.alarmRepo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure alarm schema: %w", err)
	}
	if err := s.telemetryRepo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure telemetry schema: %w", err)
	}

	s.logger.Info("Web service started", zap.String("addr", s.config.Web.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop drains the HTTP server, then releases the connections.
func (s *WebService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping web service")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error shutting down HTTP server", zap.Error(err))
	}

	if s.redis != nil {
		redisclient.Close(s.redis)
	}

	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Web service stopped")
	return nil
}
