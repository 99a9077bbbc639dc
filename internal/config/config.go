package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Dataset loading.
	Profile      Profile
	FetchTimeout time.Duration
	FetchRetries int

	// Chart rendering.
	ChartCacheSize  int
	RenderRateLimit float64 // images per second, 0 disables limiting
	RenderBurst     int

	// Optional Kafka export of the normalized table.
	KafkaExportEnabled bool
	KafkaBrokers       []string
	KafkaExportTopic   string
	BatchSize          int
}

// MaxFetchRetries caps the retries of a failed source fetch.
const MaxFetchRetries = 3

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "30s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	fetchRetries, err := strconv.Atoi(sharedcfg.EnvOrDefault("FETCH_RETRIES", "1"))
	if err != nil || fetchRetries < 0 || fetchRetries > MaxFetchRetries {
		return nil, fmt.Errorf("invalid FETCH_RETRIES: must be between 0 and %d", MaxFetchRetries)
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	renderRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("RENDER_RATE_LIMIT", "10"), 64)
	if err != nil || renderRate < 0 {
		return nil, errors.New("invalid RENDER_RATE_LIMIT: must be a non-negative number")
	}
	renderBurst, err := strconv.Atoi(sharedcfg.EnvOrDefault("RENDER_BURST", "20"))
	if err != nil || renderBurst < 1 {
		return nil, errors.New("invalid RENDER_BURST: must be a positive integer")
	}

	profiles, err := LoadProfiles(os.Getenv("PROFILES_FILE"))
	if err != nil {
		return nil, err
	}
	profile, err := SelectProfile(profiles, sharedcfg.EnvOrDefault("DASHBOARD_PROFILE", "municipal"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Profile:      profile,
		FetchTimeout: fetchTimeout,
		FetchRetries: fetchRetries,

		ChartCacheSize:  parseChartCacheSize(),
		RenderRateLimit: renderRate,
		RenderBurst:     renderBurst,

		KafkaExportEnabled: os.Getenv("KAFKA_EXPORT_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaExportTopic:   sharedcfg.EnvOrDefault("KAFKA_EXPORT_TOPIC", "incidence-records"),
		BatchSize:          batchSize,
	}

	if cfg.KafkaExportEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_EXPORT_ENABLED is true")
		}
		if cfg.KafkaExportTopic == "" {
			return nil, errors.New("KAFKA_EXPORT_TOPIC is required when KAFKA_EXPORT_ENABLED is true")
		}
	}

	return cfg, nil
}

// parseChartCacheSize reads CHART_CACHE_SIZE; zero disables the image cache.
func parseChartCacheSize() int {
	if s := os.Getenv("CHART_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 256
}
