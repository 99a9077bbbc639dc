package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/couchcryptid/incidence-dashboard-service/internal/adapter/datos"
	"github.com/couchcryptid/incidence-dashboard-service/internal/config"
	"github.com/couchcryptid/incidence-dashboard-service/internal/dashboard"
	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/couchcryptid/incidence-dashboard-service/internal/observability"
	"github.com/couchcryptid/incidence-dashboard-service/internal/pipeline"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cobra"
)

// metrics are registered once per process; commands may run repeatedly in tests.
var metrics = sync.OnceValue(observability.NewMetrics)

// options are the persistent flags shared by every subcommand.
type options struct {
	profile      string
	profilesFile string
	timeout      time.Duration
	retries      int
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "incidencectl",
		Short: "Inspect incidence dashboard profiles and datasets",
		Long: `incidencectl loads the datasets of a dashboard profile the same way the
dashboard service does at startup, then works on the normalized table offline.`,
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.profile, "profile", sharedcfg.EnvOrDefault("DASHBOARD_PROFILE", "municipal"), "dashboard profile name")
	f.StringVar(&opts.profilesFile, "profiles-file", os.Getenv("PROFILES_FILE"), "YAML profiles file (built-in profiles when empty)")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-source fetch timeout")
	f.IntVar(&opts.retries, "retries", 1, "fetch retries per source")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newCatalogCmd(opts),
		newChartCmd(opts),
		newRenderCmd(opts),
		newValidateCmd(opts),
		newFixtureCmd(opts),
	)
	return root
}

func (o *options) logger() *slog.Logger {
	return observability.NewCLILogger(o.logLevel)
}

func (o *options) loadProfile() (config.Profile, error) {
	profiles, err := config.LoadProfiles(o.profilesFile)
	if err != nil {
		return config.Profile{}, err
	}
	return config.SelectProfile(profiles, o.profile)
}

func (o *options) client(logger *slog.Logger) *datos.Client {
	return datos.NewClient(o.timeout, metrics(), logger)
}

// loadDataset runs the startup load of the selected profile.
func (o *options) loadDataset(ctx context.Context) (config.Profile, *pipeline.Pipeline, error) {
	profile, err := o.loadProfile()
	if err != nil {
		return config.Profile{}, nil, err
	}
	if o.retries < 0 || o.retries > config.MaxFetchRetries {
		return config.Profile{}, nil, fmt.Errorf("invalid --retries %d: must be between 0 and %d", o.retries, config.MaxFetchRetries)
	}

	logger := o.logger()
	p := pipeline.New(profile.Sources, o.client(logger), pipeline.NewNormalizer(logger), logger, metrics(),
		pipeline.WithRetries(o.retries))
	if _, err := p.Load(ctx); err != nil {
		return config.Profile{}, nil, err
	}
	return profile, p, nil
}

func (o *options) dashboard(ctx context.Context) (*dashboard.Service, error) {
	profile, p, err := o.loadDataset(ctx)
	if err != nil {
		return nil, err
	}
	return dashboard.NewService(p, profile.ChartOptions(), profile.DefaultSelection, 0, metrics(), o.logger()), nil
}

// selectionFlag registers --entity on cmd.
func selectionFlag(cmd *cobra.Command, entities *[]string) {
	cmd.Flags().StringArrayVar(entities, "entity", nil, "entity to plot, repeatable (profile defaults when omitted)")
}

// selection returns the --entity values, or the profile defaults when the
// flag was not given.
func selection(cmd *cobra.Command, svc *dashboard.Service, entities []string) []string {
	if cmd.Flags().Changed("entity") {
		return entities
	}
	return svc.DefaultSelection()
}

func dateSpan(records []domain.IncidenceRecord) (time.Time, time.Time) {
	var first, last time.Time
	for _, r := range records {
		if first.IsZero() || r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return first, last
}
