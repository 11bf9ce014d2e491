package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Collab   CollabConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	BoardCacheTTL      time.Duration
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	JwtSecret string
}

// CollabConfig tunes the realtime session engine.
type CollabConfig struct {
	InstanceID      string // Empty means "generate one at boot"
	LogFilePath     string
	MaxMessageBytes int64
	SendBuffer      int
	ClusterChannel  string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Validate rejects settings the server cannot run with. Development keeps
// working with an empty secret so local tooling can mint throwaway tokens.
func (c *Config) Validate() error {
	if c.Database.Connection == "" {
		return errors.New("DB_CONNECTION_STRING is required")
	}
	if c.IsProduction() && len(c.Auth.JwtSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters in production")
	}
	if c.Collab.SendBuffer < 1 {
		return errors.New("COLLAB_SEND_BUFFER must be positive")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("OTEL_SAMPLE_RATIO must be between 0 and 1")
	}
	return nil
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			BoardCacheTTL:      getEnvAsDuration("BOARD_CACHE_TTL", 5*time.Minute),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Collab: CollabConfig{
			InstanceID:      getEnv("COLLAB_INSTANCE_ID", ""),
			LogFilePath:     getEnv("COLLAB_LOG_FILE_PATH", "logs/collab.log"),
			MaxMessageBytes: int64(getEnvAsInt("COLLAB_MAX_MESSAGE_BYTES", 10*1024*1024)),
			SendBuffer:      getEnvAsInt("COLLAB_SEND_BUFFER", 256),
			ClusterChannel:  getEnv("COLLAB_CLUSTER_CHANNEL", "collab_cluster_events"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "letscollab-backend"),
			SampleRatio: getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("150ms", "5m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
