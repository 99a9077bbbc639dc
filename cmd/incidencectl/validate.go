package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load a profile and check its datasets",
		Long: `validate loads every source of the profile and reports row counts, the
covered date span, entity names shared between sources and repeated
(entity, date) rows within a source. It fails when a source has no rows.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, p, err := opts.loadDataset(cmd.Context())
			if err != nil {
				return err
			}
			r := checkDataset(p.Dataset())
			r.print(cmd.OutOrStdout(), profile.Name)
			if len(r.empty) > 0 {
				return fmt.Errorf("sources without rows: %s", strings.Join(r.empty, ", "))
			}
			return nil
		},
	}
}

type datasetReport struct {
	records     int
	entities    int
	first, last time.Time
	sources     []domain.SourceSummary
	empty       []string
	shared      map[string][]string // entity -> sources, when more than one
	repeated    map[string]int      // source -> repeated (entity, date) rows
}

func checkDataset(ds *domain.Dataset) datasetReport {
	r := datasetReport{
		records:  len(ds.Records),
		entities: len(ds.Catalog),
		sources:  ds.Sources,
		shared:   make(map[string][]string),
		repeated: make(map[string]int),
	}
	r.first, r.last = dateSpan(ds.Records)

	for _, s := range ds.Sources {
		if s.Rows == 0 {
			r.empty = append(r.empty, s.Name)
		}
	}

	type rowKey struct {
		source, entity string
		date           time.Time
	}
	seen := make(map[rowKey]bool, len(ds.Records))
	origins := make(map[string][]string)
	for _, rec := range ds.Records {
		k := rowKey{source: rec.Source, entity: rec.Entity, date: rec.Date}
		if seen[k] {
			r.repeated[rec.Source]++
		}
		seen[k] = true
		if !slices.Contains(origins[rec.Entity], rec.Source) {
			origins[rec.Entity] = append(origins[rec.Entity], rec.Source)
		}
	}
	for entity, srcs := range origins {
		if len(srcs) > 1 {
			r.shared[entity] = srcs
		}
	}
	return r
}

func (r datasetReport) print(w io.Writer, profile string) {
	fmt.Fprintf(w, "profile %s: %d records, %d entities", profile, r.records, r.entities)
	if r.records > 0 {
		fmt.Fprintf(w, ", %s to %s", r.first.Format(domain.DateTickFormat), r.last.Format(domain.DateTickFormat))
	}
	fmt.Fprintln(w)

	for _, s := range r.sources {
		fmt.Fprintf(w, "  source %s: %d rows", s.Name, s.Rows)
		if n := r.repeated[s.Name]; n > 0 {
			fmt.Fprintf(w, ", %d repeated entity/date rows", n)
		}
		fmt.Fprintln(w)
	}

	names := make([]string, 0, len(r.shared))
	for name := range r.shared {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  warning: %q appears in %s\n", name, strings.Join(r.shared[name], ", "))
	}
}
