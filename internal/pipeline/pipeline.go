package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/couchcryptid/incidence-dashboard-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// SourceFetcher retrieves the raw split table for one source.
type SourceFetcher interface {
	Fetch(ctx context.Context, src domain.SourceSpec) (domain.SplitTable, error)
}

// Normalizer converts a raw split table into typed records.
type Normalizer interface {
	Normalize(ctx context.Context, src domain.SourceSpec, table domain.SplitTable) (domain.NormalizedTable, error)
}

// BatchExporter publishes normalized records downstream.
type BatchExporter interface {
	ExportBatch(ctx context.Context, records []domain.IncidenceRecord) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRetries sets how many times a failed fetch is retried before giving up.
func WithRetries(n int) Option {
	return func(p *Pipeline) { p.retries = n }
}

// WithBackoff sets the delay before the first retry.
func WithBackoff(d time.Duration) Option {
	return func(p *Pipeline) { p.initialBackoff = d }
}

// WithExporter publishes the loaded table in batches of batchSize.
func WithExporter(e BatchExporter, batchSize int) Option {
	return func(p *Pipeline) {
		p.exporter = e
		p.batchSize = batchSize
	}
}

// Pipeline orchestrates the one-shot fetch-normalize-merge load of the dataset.
type Pipeline struct {
	sources        []domain.SourceSpec
	fetcher        SourceFetcher
	normalizer     Normalizer
	exporter       BatchExporter
	logger         *slog.Logger
	metrics        *observability.Metrics
	retries        int
	initialBackoff time.Duration
	batchSize      int
	dataset        atomic.Pointer[domain.Dataset]
}

// New creates a Pipeline over the given sources.
func New(sources []domain.SourceSpec, f SourceFetcher, n Normalizer, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		sources:        sources,
		fetcher:        f,
		normalizer:     n,
		logger:         logger,
		metrics:        metrics,
		initialBackoff: 500 * time.Millisecond,
		batchSize:      50,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once the dataset has been loaded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.dataset.Load() == nil {
		return errors.New("dataset has not been loaded yet")
	}
	return nil
}

// Dataset returns the loaded dataset, or nil before Load succeeds.
func (p *Pipeline) Dataset() *domain.Dataset {
	return p.dataset.Load()
}

// Load fetches every source concurrently, normalizes and merges them in
// source order. Any source failure fails the whole load.
func (p *Pipeline) Load(ctx context.Context) (*domain.Dataset, error) {
	start := time.Now()
	p.logger.Info("loading dataset", "sources", len(p.sources), "retries", p.retries)

	tables := make([]domain.NormalizedTable, len(p.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range p.sources {
		g.Go(func() error {
			t, err := p.loadSource(gctx, src)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.metrics.DatasetReady.Set(0)
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	ds := domain.NewDataset(tables...)
	p.dataset.Store(ds)
	p.metrics.RecordsLoaded.Set(float64(len(ds.Records)))
	p.metrics.EntitiesLoaded.Set(float64(len(ds.Catalog)))
	p.metrics.DatasetReady.Set(1)
	p.logger.Info("dataset loaded",
		"records", len(ds.Records),
		"entities", len(ds.Catalog),
		"duration", time.Since(start),
	)

	p.export(ctx, ds.Records)
	return ds, nil
}

// loadSource fetches one source with bounded retries. Normalization errors
// are data errors and are never retried.
func (p *Pipeline) loadSource(ctx context.Context, src domain.SourceSpec) (domain.NormalizedTable, error) {
	backoff := p.initialBackoff
	maxBackoff := 5 * time.Second

	for attempt := 1; ; attempt++ {
		table, err := p.fetcher.Fetch(ctx, src)
		if err == nil {
			return p.normalizer.Normalize(ctx, src, table)
		}
		if attempt > p.retries || ctx.Err() != nil {
			return domain.NormalizedTable{}, err
		}

		p.logger.Warn("fetch failed, retrying",
			"source", src.Name,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !sleepWithContext(ctx, backoff) {
			return domain.NormalizedTable{}, ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// export publishes records in batches. Failures are logged and stop the
// export but never fail the load.
func (p *Pipeline) export(ctx context.Context, records []domain.IncidenceRecord) {
	if p.exporter == nil || len(records) == 0 {
		return
	}

	exported := 0
	for start := 0; start < len(records); start += p.batchSize {
		end := min(start+p.batchSize, len(records))
		batch := records[start:end]
		if err := p.exporter.ExportBatch(ctx, batch); err != nil {
			p.metrics.ExportErrors.Inc()
			p.logger.Error("export batch failed, skipping remaining records",
				"error", err,
				"exported", exported,
				"remaining", len(records)-exported,
			)
			return
		}
		exported += len(batch)
		p.metrics.RecordsExported.Add(float64(len(batch)))
	}
	p.logger.Info("dataset exported", "records", exported)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
