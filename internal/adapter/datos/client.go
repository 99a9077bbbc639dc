package datos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/couchcryptid/incidence-dashboard-service/internal/observability"
)

// Client fetches split-oriented JSON tables from the open data portal or from
// local copies (file:// URLs and bare paths).
// It implements pipeline.SourceFetcher.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a dataset client with the given per-request timeout.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch retrieves and decodes the split table behind src.URL.
func (c *Client) Fetch(ctx context.Context, src domain.SourceSpec) (domain.SplitTable, error) {
	start := time.Now()
	table, err := c.fetch(ctx, src)
	c.metrics.SourceFetchDuration.WithLabelValues(src.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.SourceFetches.WithLabelValues(src.Name, "error").Inc()
		return domain.SplitTable{}, fmt.Errorf("fetch source %q: %w", src.Name, err)
	}
	c.metrics.SourceFetches.WithLabelValues(src.Name, "success").Inc()
	c.logger.Debug("source fetched", "source", src.Name, "rows", len(table.Data), "duration", time.Since(start))
	return table, nil
}

func (c *Client) fetch(ctx context.Context, src domain.SourceSpec) (domain.SplitTable, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return domain.SplitTable{}, fmt.Errorf("parse url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return c.doRequest(ctx, u.String())
	case "file":
		return readFile(u.Path)
	case "":
		return readFile(src.URL)
	default:
		return domain.SplitTable{}, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.SplitTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.SplitTable{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SplitTable{}, fmt.Errorf("dataset request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.SplitTable{}, fmt.Errorf("dataset server error: status %d: %s", resp.StatusCode, body)
	}

	return domain.DecodeSplitTable(resp.Body)
}

func readFile(path string) (domain.SplitTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.SplitTable{}, fmt.Errorf("open dataset file: %w", err)
	}
	defer f.Close()

	return domain.DecodeSplitTable(f)
}
