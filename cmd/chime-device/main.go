package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"chime/internal/config"
	"chime/internal/device"
	"chime/internal/logger"
	"chime/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "chime-device")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting chime-device service")

	pins := device.NewSimPins(log)

	svc, err := service.NewDeviceService(cfg, pins, log)
	if err != nil {
		log.Fatal("Failed to create device service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Without hardware the buttons are injected via signals:
	// SIGUSR1 presses snooze, SIGUSR2 presses off.
	buttonChan := make(chan os.Signal, 4)
	signal.Notify(buttonChan, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range buttonChan {
			switch sig {
			case syscall.SIGUSR1:
				pins.Press(device.ButtonSnooze)
			case syscall.SIGUSR2:
				pins.Press(device.ButtonOff)
			}
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := svc.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		log.Error("Service error", zap.Error(err))
		cancel()
	}

	if err := svc.Stop(ctx); err != nil {
		log.Error("Error stopping service", zap.Error(err))
	}

	log.Info("Service stopped",
		zap.String("final_phase", svc.Controller().Phase().String()),
	)
}
