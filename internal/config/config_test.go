package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "municipal", cfg.Profile.Name)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 1, cfg.FetchRetries)
	assert.Equal(t, 256, cfg.ChartCacheSize)
	assert.InDelta(t, 10, cfg.RenderRateLimit, 0)
	assert.Equal(t, 20, cfg.RenderBurst)
	assert.False(t, cfg.KafkaExportEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "incidence-records", cfg.KafkaExportTopic)
	assert.Equal(t, 50, cfg.BatchSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("DASHBOARD_PROFILE", "combined")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("FETCH_RETRIES", "3")
	t.Setenv("CHART_CACHE_SIZE", "16")
	t.Setenv("RENDER_RATE_LIMIT", "0")
	t.Setenv("RENDER_BURST", "5")
	t.Setenv("KAFKA_EXPORT_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_EXPORT_TOPIC", "custom-records")
	t.Setenv("BATCH_SIZE", "100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "combined", cfg.Profile.Name)
	assert.Len(t, cfg.Profile.Sources, 2)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.FetchRetries)
	assert.Equal(t, 16, cfg.ChartCacheSize)
	assert.Zero(t, cfg.RenderRateLimit)
	assert.Equal(t, 5, cfg.RenderBurst)
	assert.True(t, cfg.KafkaExportEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-records", cfg.KafkaExportTopic)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidFetchTimeout(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_TIMEOUT")
}

func TestLoad_InvalidFetchRetries(t *testing.T) {
	for _, v := range []string{"-1", "4", "many"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("FETCH_RETRIES", v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "FETCH_RETRIES")
		})
	}
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidRenderLimits(t *testing.T) {
	for env, v := range map[string]string{
		"RENDER_RATE_LIMIT": "-1",
		"RENDER_BURST":      "0",
	} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), env)
		})
	}
}

func TestLoad_InvalidCacheSizeFallsBack(t *testing.T) {
	t.Setenv("CHART_CACHE_SIZE", "zero")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.ChartCacheSize)

	t.Setenv("CHART_CACHE_SIZE", "-1")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.ChartCacheSize)
}

func TestLoad_ZeroCacheSizeDisablesCache(t *testing.T) {
	t.Setenv("CHART_CACHE_SIZE", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.ChartCacheSize)
}

func TestLoad_UnknownProfile(t *testing.T) {
	t.Setenv("DASHBOARD_PROFILE", "national")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "national")
	assert.Contains(t, err.Error(), "combined, municipal")
}

func TestLoad_ProfilesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  local:
    title: Local copy
    sources:
      - name: municipal
        url: file:///data/covid19_tia_muni_y_distritos_s.json
        entity_column: municipio_distrito
        date_column: fecha_informe
        rate_column: tasa_incidencia_acumulada_ultimos_14dias
`), 0o600))
	t.Setenv("PROFILES_FILE", path)
	t.Setenv("DASHBOARD_PROFILE", "local")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Local copy", cfg.Profile.Title)
	assert.Empty(t, cfg.Profile.Thresholds)
}

func TestLoad_MissingProfilesFile(t *testing.T) {
	t.Setenv("PROFILES_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read profiles")
}
