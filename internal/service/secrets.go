package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chime/internal/config"
	"chime/internal/secrets"
)

// Secret names recognized by the credential overlay.
const (
	secretMQTTUsername  = "mqtt_username"
	secretMQTTPassword  = "mqtt_password"
	secretDBPassword    = "db_password"
	secretWeatherAPIKey = "weather_api_key"
)

// applySecretsOverlay replaces credential fields in cfg with values
// from the encrypted secrets file, when one is configured. Missing
// names keep the environment values; a present file that cannot be
// opened or decrypted is a startup error.
func applySecretsOverlay(cfg *config.Config, logger *zap.Logger) error {
	if cfg.Secrets.File == "" {
		return nil
	}

	store, err := secrets.Open(cfg.Secrets.File, cfg.Secrets.Passphrase)
	if err != nil {
		return fmt.Errorf("failed to open secrets file: %w", err)
	}

	overlay := func(name string, dst *string) error {
		value, err := store.Get(name)
		if errors.Is(err, secrets.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		*dst = value
		return nil
	}

	for _, entry := range []struct {
		name string
		dst  *string
	}{
		{secretMQTTUsername, &cfg.MQTT.Username},
		{secretMQTTPassword, &cfg.MQTT.Password},
		{secretDBPassword, &cfg.Database.Password},
		{secretWeatherAPIKey, &cfg.Weather.APIKey},
	} {
		if err := overlay(entry.name, entry.dst); err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
	}

	logger.Info("Applied credential overlay", zap.String("file", cfg.Secrets.File))
	return nil
}
