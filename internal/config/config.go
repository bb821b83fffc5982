package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN builds a lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig broker connection settings shared by all services.
// An empty ClientID lets the MQTT wrapper generate a unique one, so
// two services started from the same environment never kick each
// other off the broker.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config holds the settings for all four chime services. Each binary
// loads the whole struct and uses its own section.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// Topics carry the site-scoped MQTT topic names.
	Topics struct {
		Ring      string // ring notifications, e.g. "chime/alarm/1"
		Telemetry string // device sensor readings, e.g. "chime/telemetry/1"
	}

	Scheduler struct {
		PollInterval time.Duration // alarm table poll period
	}

	Device struct {
		PollInterval time.Duration // button/display tick period
		SnoozeDelay  time.Duration // delay before a snoozed alarm re-rings
	}

	Ingest struct {
		ClockID       int64         // clock the telemetry rows are attributed to
		QueueCapacity int           // bounded queue size
		LatestTTL     time.Duration // TTL of the latest-sample cache entry
	}

	Web struct {
		Addr string
	}

	Weather struct {
		BaseURL  string
		APIKey   string
		Query    string // location query, e.g. "Lewisburg"
		CacheTTL time.Duration
	}

	Secrets struct {
		File       string // encrypted credential file; empty disables the overlay
		Passphrase string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from environment variables with code
// defaults. It never fails today but keeps the error return so callers
// are ready for stricter validation.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "chime")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 0 // the bus is at-most-once end to end

	cfg.Topics.Ring = getEnv("RING_TOPIC", "chime/alarm/1")
	cfg.Topics.Telemetry = getEnv("TELEMETRY_TOPIC", "chime/telemetry/1")

	cfg.Scheduler.PollInterval = getEnvSeconds("SCHEDULER_POLL_INTERVAL", 5*time.Second)

	cfg.Device.PollInterval = getEnvMillis("DEVICE_POLL_INTERVAL_MS", 50*time.Millisecond)
	cfg.Device.SnoozeDelay = getEnvSeconds("DEVICE_SNOOZE_DELAY", 60*time.Second)

	cfg.Ingest.ClockID = int64(getEnvInt("INGEST_CLOCK_ID", 1))
	cfg.Ingest.QueueCapacity = getEnvInt("INGEST_QUEUE_CAPACITY", 1000)
	cfg.Ingest.LatestTTL = getEnvSeconds("INGEST_LATEST_TTL", 300*time.Second)

	cfg.Web.Addr = getEnv("WEB_ADDR", ":8080")

	cfg.Weather.BaseURL = getEnv("WEATHER_BASE_URL", "http://api.weatherapi.com/v1")
	cfg.Weather.APIKey = getEnv("WEATHER_API_KEY", "")
	cfg.Weather.Query = getEnv("WEATHER_QUERY", "Lewisburg")
	cfg.Weather.CacheTTL = getEnvSeconds("WEATHER_CACHE_TTL", 600*time.Second)

	cfg.Secrets.File = getEnv("SECRETS_FILE", "")
	cfg.Secrets.Passphrase = getEnv("SECRETS_KEY", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return defaultValue
}
