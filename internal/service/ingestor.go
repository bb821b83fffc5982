package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"chime/internal/config"
	"chime/internal/database"
	"chime/internal/ingest"
	"chime/internal/mqtt"
	"chime/internal/redisclient"
	"chime/internal/repository"
	"chime/internal/store"
)

// IngestorService absorbs telemetry from the bus into Postgres, with
// the latest sample mirrored into Redis for the dashboard.
type IngestorService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqtt.Client
	ingestor   *ingest.Ingestor
}

func NewIngestorService(cfg *config.Config, logger *zap.Logger) (*IngestorService, error) {
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

	mqttClient, err := mqtt.New(&cfg.MQTT, logger)
	if err != nil {
		redisclient.Close(redisClient)
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	telemetryRepo := repository.NewTelemetryRepository(db, logger)
	queue := ingest.NewQueue(cfg.Ingest.QueueCapacity)

	ingestor := ingest.NewIngestor(
		cfg.Ingest.ClockID,
		queue,
		telemetryRepo,
		store.NewRedisKV(redisClient),
		cfg.Ingest.LatestTTL,
		logger,
	)

	return &IngestorService{
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		mqttClient: mqttClient,
		ingestor:   ingestor,
	}, nil
}

// Start subscribes to the telemetry topic and blocks in the drain loop
// until the context is cancelled.
func (s *IngestorService) Start(ctx context.Context) error {
	topic := s.config.Topics.Telemetry
	if err := s.mqttClient.Subscribe(topic, s.config.MQTT.QoS, s.ingestor.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to telemetry topic: %w", err)
	}

	s.logger.Info("Ingestor service started", zap.String("topic", topic))
	return s.ingestor.Run(ctx)
}

// Stop unsubscribes first so no new samples arrive, then releases the
// connections. Samples still queued at shutdown are dropped, which the
// at-most-once bus already allows.
func (s *IngestorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ingestor service")

	if s.mqttClient != nil {
		if err := s.mqttClient.Unsubscribe(s.config.Topics.Telemetry); err != nil {
			s.logger.Error("Error unsubscribing from telemetry topic", zap.Error(err))
		}
		s.mqttClient.Disconnect()
	}

	if s.redis != nil {
		redisclient.Close(s.redis)
	}

	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Ingestor service stopped")
	return nil
}
