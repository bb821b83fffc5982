package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"chime/internal/config"
	"chime/internal/device"
	"chime/internal/mqtt"
)

// DeviceService runs the clock-side controller against the bus. The
// pin bank is injected so the same wiring serves simulated and real
// hardware.
type DeviceService struct {
	config     *config.Config
	logger     *zap.Logger
	mqttClient *mqtt.Client
	controller *device.Controller
}

func NewDeviceService(cfg *config.Config, pins device.Pins, logger *zap.Logger) (*DeviceService, error) {
	if err := applySecretsOverlay(cfg, logger); err != nil {
		return nil, err
	}

	mqttClient, err := mqtt.New(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	controller := device.NewController(
		pins,
		device.SystemClock(),
		cfg.Device.SnoozeDelay,
		cfg.Device.PollInterval,
		logger,
	)

	return &DeviceService{
		config:     cfg,
		logger:     logger,
		mqttClient: mqttClient,
		controller: controller,
	}, nil
}

// Controller exposes the state machine, mainly so the binary can
// report phase on shutdown.
func (s *DeviceService) Controller() *device.Controller {
	return s.controller
}

// Start subscribes to the ring topic and blocks in the controller loop
// until the context is cancelled.
func (s *DeviceService) Start(ctx context.Context) error {
	topic := s.config.Topics.Ring
	if err := s.mqttClient.Subscribe(topic, s.config.MQTT.QoS, s.controller.OnMessage); err != nil {
		return fmt.Errorf("failed to subscribe to ring topic: %w", err)
	}

	s.logger.Info("Device service started", zap.String("topic", topic))

	// Log once the subscription is demonstrably live.
	go func() {
		select {
		case <-ctx.Done():
		case <-s.controller.Ready():
			s.logger.Info("First bus message received")
		}
	}()

	return s.controller.Run(ctx)
}

// Stop unsubscribes and disconnects from the bus.
func (s *DeviceService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping device service")

	if s.mqttClient != nil {
		if err := s.mqttClient.Unsubscribe(s.config.Topics.Ring); err != nil {
			s.logger.Error("Error unsubscribing from ring topic", zap.Error(err))
		}
		s.mqttClient.Disconnect()
	}

	s.logger.Info("Device service stopped")
	return nil
}
