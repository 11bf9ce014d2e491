package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COLLAB_SEND_BUFFER", "")
	t.Setenv("BOARD_CACHE_TTL", "")

	cfg := Load()
	assert.Equal(t, 256, cfg.Collab.SendBuffer)
	assert.Equal(t, int64(10*1024*1024), cfg.Collab.MaxMessageBytes)
	assert.Equal(t, 5*time.Minute, cfg.App.BoardCacheTTL)
	assert.Equal(t, "collab_cluster_events", cfg.Collab.ClusterChannel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("COLLAB_SEND_BUFFER", "32")
	t.Setenv("BOARD_CACHE_TTL", "90s")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("COLLAB_INSTANCE_ID", "node-a")

	cfg := Load()
	assert.Equal(t, 32, cfg.Collab.SendBuffer)
	assert.Equal(t, 90*time.Second, cfg.App.BoardCacheTTL)
	assert.Equal(t, "s3cret", cfg.Auth.JwtSecret)
	assert.Equal(t, "node-a", cfg.Collab.InstanceID)
}

func TestGetEnvAsDurationRejectsGarbage(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Second, getEnvAsDuration("SOME_DURATION", time.Second))
}

func TestTracingSettings(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")
	t.Setenv("OTEL_SERVICE_NAME", "")

	cfg := Load()
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRatio)
	assert.Equal(t, "", cfg.Tracing.ServiceName)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Environment: "production"},
			Database: DatabaseConfig{Connection: "postgres://localhost/letscollab"},
			Auth:     AuthConfig{JwtSecret: "0123456789abcdef"},
			Collab:   CollabConfig{SendBuffer: 8},
			Tracing:  TracingConfig{SampleRatio: 1},
		}
	}
	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Database.Connection = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Auth.JwtSecret = "short"
	assert.Error(t, cfg.Validate())
	cfg.App.Environment = "development"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Collab.SendBuffer = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Tracing.SampleRatio = 1.5
	assert.Error(t, cfg.Validate())
}
