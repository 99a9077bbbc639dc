package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/couchcryptid/incidence-dashboard-service/internal/dashboard"
	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/couchcryptid/incidence-dashboard-service/internal/render"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

//go:embed templates/dashboard.html.tmpl
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/dashboard.html.tmpl"))

// Dashboard answers selection changes. It is implemented by dashboard.Service.
type Dashboard interface {
	Options() domain.ChartOptions
	Catalog() ([]string, error)
	DefaultSelection() []string
	Update(selected []string) (domain.ChartSpec, error)
	Render(selected []string, format render.Format) ([]byte, error)
}

// Option configures a Server.
type Option func(*Server)

// WithRenderLimit throttles chart image requests to perSecond with the given
// burst. A non-positive rate leaves rendering unlimited.
func WithRenderLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 {
			s.renderLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// Server exposes the dashboard page, its JSON API and chart images, plus
// health, readiness, and metrics endpoints.
type Server struct {
	httpServer    *http.Server
	dash          Dashboard
	description   string
	renderLimiter *rate.Limiter
	logger        *slog.Logger
}

// NewServer creates the HTTP server. description is shown under the page title.
func NewServer(addr string, dash Dashboard, description string, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		dash:        dash,
		description: description,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /api/entities", s.handleEntities)
	mux.HandleFunc("GET /api/chart", s.handleChartSpec)
	mux.HandleFunc("GET /chart.svg", s.handleChartImage(render.FormatSVG))
	mux.HandleFunc("GET /chart.png", s.handleChartImage(render.FormatPNG))
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type entityOption struct {
	Name     string
	Selected bool
}

type pageData struct {
	Title       string
	Description string
	EntityLabel string
	Entities    []entityOption
	ChartURL    string
	SpecURL     string
	PNGURL      string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.dash.Catalog()
	if err != nil {
		s.writeError(w, err)
		return
	}

	q := r.URL.Query()
	selected := selection(q)
	if !q.Has("submitted") && !q.Has("entity") {
		selected = s.dash.DefaultSelection()
	}

	opts := s.dash.Options()
	data := pageData{
		Title:       opts.Title,
		Description: s.description,
		EntityLabel: opts.Labels.Entity,
		Entities:    make([]entityOption, 0, len(catalog)),
	}
	for _, name := range catalog {
		data.Entities = append(data.Entities, entityOption{Name: name, Selected: slices.Contains(selected, name)})
	}
	query := url.Values{"entity": selected}.Encode()
	data.ChartURL = "/chart.svg?" + query
	data.PNGURL = "/chart.png?" + query
	data.SpecURL = "/api/chart?" + query

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("render dashboard page", "error", err)
	}
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	catalog, err := s.dash.Catalog()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"entities": catalog})
}

func (s *Server) handleChartSpec(w http.ResponseWriter, r *http.Request) {
	spec, err := s.dash.Update(selection(r.URL.Query()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

func (s *Server) handleChartImage(format render.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.renderLimiter != nil && !s.renderLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many chart requests"})
			return
		}
		img, err := s.dash.Render(selection(r.URL.Query()), format)
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img)
	}
}

// selection returns the non-empty entity parameters in request order.
func selection(q url.Values) []string {
	names := make([]string, 0, len(q["entity"]))
	for _, name := range q["entity"] {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, dashboard.ErrNotReady) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
