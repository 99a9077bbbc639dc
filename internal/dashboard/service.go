// Package dashboard answers selection changes against the loaded incidence
// table: the entity catalog, chart specifications and rendered chart images.
package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/couchcryptid/incidence-dashboard-service/internal/observability"
	"github.com/couchcryptid/incidence-dashboard-service/internal/render"
)

// ErrNotReady is returned while the dataset has not been loaded.
var ErrNotReady = errors.New("dataset not loaded")

// DatasetProvider exposes the loaded dataset, or nil before loading.
type DatasetProvider interface {
	Dataset() *domain.Dataset
}

// Service builds and renders charts for a selection. It is safe for
// concurrent use: the dataset is read-only and every ChartSpec is built
// fresh per call.
type Service struct {
	data     DatasetProvider
	opts     domain.ChartOptions
	defaults []string
	images   *lru[string, []byte]
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewService creates a Service. cacheSize bounds the number of rendered
// images kept in memory; zero disables caching.
func NewService(data DatasetProvider, opts domain.ChartOptions, defaults []string, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		data:     data,
		opts:     opts,
		defaults: defaults,
		images:   newLRU[string, []byte](cacheSize),
		metrics:  metrics,
		logger:   logger,
	}
}

// Options returns the chart settings applied to every update.
func (s *Service) Options() domain.ChartOptions {
	return s.opts
}

// Catalog returns the selectable entity names in first-seen order.
func (s *Service) Catalog() ([]string, error) {
	ds := s.data.Dataset()
	if ds == nil {
		return nil, ErrNotReady
	}
	return slices.Clone(ds.Catalog), nil
}

// DefaultSelection returns the configured initial selection restricted to
// entities present in the catalog.
func (s *Service) DefaultSelection() []string {
	ds := s.data.Dataset()
	if ds == nil {
		return []string{}
	}
	out := make([]string, 0, len(s.defaults))
	for _, name := range s.defaults {
		if slices.Contains(ds.Catalog, name) {
			out = append(out, name)
		}
	}
	return out
}

// Update builds the chart for the selected entities. Unknown names
// contribute nothing.
func (s *Service) Update(selected []string) (domain.ChartSpec, error) {
	ds := s.data.Dataset()
	if ds == nil {
		return domain.ChartSpec{}, ErrNotReady
	}
	s.metrics.ChartUpdates.Inc()
	return domain.BuildChart(ds.Records, selected, s.opts), nil
}

// Render returns the chart image for the selection. Results are cached by
// format and selection; the returned bytes must not be modified.
func (s *Service) Render(selected []string, format render.Format) ([]byte, error) {
	key := cacheKey(format, selected)
	if img, ok := s.images.get(key); ok {
		s.metrics.ChartCache.WithLabelValues("hit").Inc()
		return img, nil
	}
	s.metrics.ChartCache.WithLabelValues("miss").Inc()

	spec, err := s.Update(selected)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := render.Render(&buf, spec, format); err != nil {
		s.metrics.RenderErrors.Inc()
		s.logger.Error("chart render failed", "format", format, "entities", len(selected), "error", err)
		return nil, fmt.Errorf("render chart: %w", err)
	}
	s.metrics.ChartRenderDuration.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())

	img := buf.Bytes()
	s.images.put(key, img)
	return img, nil
}

// cacheKey ignores selection order and duplicates, which do not change the
// chart: series follow table order.
func cacheKey(format render.Format, selected []string) string {
	names := slices.Clone(selected)
	slices.Sort(names)
	names = slices.Compact(names)
	return string(format) + "|" + strings.Join(names, "\x1f")
}
