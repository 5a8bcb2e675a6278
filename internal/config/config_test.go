package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VOCAB_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.AppPort)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "essay-processing", cfg.QueueName)
	require.Equal(t, 3, cfg.QueueMaxDeliveries)
	require.Equal(t, 5*time.Minute, cfg.WorkerTimeout)
	require.Equal(t, 6*time.Minute, cfg.QueueLeaseTimeout)
	require.Equal(t, 20, cfg.MaxCandidates)
	require.Greater(t, cfg.QueueLeaseTimeout, cfg.WorkerTimeout)
}

func TestLoadRejectsLeaseWithoutSlack(t *testing.T) {
	t.Setenv("VOCAB_WORKER_TIMEOUT", "5m")
	t.Setenv("VOCAB_QUEUE_LEASE_TIMEOUT", "5m")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "lease timeout")
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("VOCAB_METRICS_CACHE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestRequireAPI(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://localhost/vocab"}
	require.Error(t, cfg.RequireAPI())

	cfg.JWTSecret = "secret"
	require.NoError(t, cfg.RequireAPI())
}

func TestWorkerMetricsAddress(t *testing.T) {
	cfg := Config{WorkerMetricsPort: ":9200"}
	require.Equal(t, ":9200", cfg.WorkerMetricsAddress())
}

func TestLoadCORSOrigins(t *testing.T) {
	t.Setenv("VOCAB_CORS_ALLOW_ORIGINS", "https://a.example.com, https://b.example.com,,")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowOrigins)
}
