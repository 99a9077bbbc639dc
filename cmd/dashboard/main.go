package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/incidence-dashboard-service/internal/adapter/datos"
	httpadapter "github.com/couchcryptid/incidence-dashboard-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/incidence-dashboard-service/internal/adapter/kafka"
	"github.com/couchcryptid/incidence-dashboard-service/internal/config"
	"github.com/couchcryptid/incidence-dashboard-service/internal/dashboard"
	"github.com/couchcryptid/incidence-dashboard-service/internal/observability"
	"github.com/couchcryptid/incidence-dashboard-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []pipeline.Option{pipeline.WithRetries(cfg.FetchRetries)}

	// Record export is feature-flagged via KAFKA_EXPORT_ENABLED.
	var writer *kafkaadapter.Writer
	if cfg.KafkaExportEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithExporter(writer, cfg.BatchSize))
		logger.Info("kafka export enabled", "topic", cfg.KafkaExportTopic, "batch_size", cfg.BatchSize)
	} else {
		logger.Info("kafka export disabled")
	}

	client := datos.NewClient(cfg.FetchTimeout, metrics, logger)
	p := pipeline.New(cfg.Profile.Sources, client, pipeline.NewNormalizer(logger), logger, metrics, opts...)

	logger.Info("starting dashboard", "profile", cfg.Profile.Name)
	if _, err := p.Load(ctx); err != nil {
		logger.Error("failed to load dataset", "profile", cfg.Profile.Name, "error", err)
		closeWriter(writer, logger)
		os.Exit(1) //nolint:gocritic // nothing else to clean up
	}

	svc := dashboard.NewService(p, cfg.Profile.ChartOptions(), cfg.Profile.DefaultSelection, cfg.ChartCacheSize, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, cfg.Profile.Description, p, logger,
		httpadapter.WithRenderLimit(cfg.RenderRateLimit, cfg.RenderBurst))

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closeWriter(writer, logger)

	logger.Info("shutdown complete")
}

func closeWriter(w *kafkaadapter.Writer, logger *slog.Logger) {
	if w == nil {
		return
	}
	if err := w.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
}
