package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"chime/internal/config"
	"chime/internal/database"
	"chime/internal/mqtt"
	"chime/internal/repository"
	"chime/internal/scheduler"
)

// SchedulerService owns the alarm polling loop and its connections.
type SchedulerService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	mqttClient *mqtt.Client
	alarmRepo  *repository.AlarmRepository
	scheduler  *scheduler.Scheduler
}

func NewSchedulerService(cfg *config.Config, logger *zap.Logger) (*SchedulerService, error) {
	if err := applySecretsOverlay(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	mqttClient, err := mqtt.New(&cfg.MQTT, logger)
	if err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	alarmRepo := repository.NewAlarmRepository(db, logger)

	sched := scheduler.New(
		alarmRepo,
		mqttClient,
		cfg.Topics.Ring,
		cfg.MQTT.QoS,
		cfg.Scheduler.PollInterval,
		logger,
	)

	return &SchedulerService{
		config:     cfg,
		logger:     logger,
		db:         db,
		mqttClient: mqttClient,
		alarmRepo:  alarmRepo,
		scheduler:  sched,
	}, nil
}

// Start ensures the schema exists and blocks in the polling loop until
// the context is cancelled.
func (s *SchedulerService) Start(ctx context.Context) error {
	if err := s.alarmRepo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure alarm schema: %w", err)
	}

	s.logger.Info("Scheduler service started")
	return s.scheduler.Run(ctx)
}

// Stop releases the service's connections.
func (s *SchedulerService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Scheduler service stopped")
	return nil
}
