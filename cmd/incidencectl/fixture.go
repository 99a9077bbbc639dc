package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/couchcryptid/incidence-dashboard-service/internal/config"
	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/spf13/cobra"
)

func newFixtureCmd(opts *options) *cobra.Command {
	var (
		source   string
		entities []string
		limit    int
		out      string
	)

	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Cut a small split-table fixture from a profile source",
		Long: `fixture fetches one source of the profile and writes the rows of the
chosen entities, keeping every source column, as a split-oriented JSON table.
The result is normalized before writing so fixtures always load.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("invalid --limit %d", limit)
			}
			profile, err := opts.loadProfile()
			if err != nil {
				return err
			}
			src, err := findSource(profile, source)
			if err != nil {
				return err
			}

			table, err := opts.client(opts.logger()).Fetch(cmd.Context(), src)
			if err != nil {
				return err
			}
			cut, err := cutFixture(src, table, entities, limit)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				return writeFixture(cmd.OutOrStdout(), cut)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create fixture: %w", err)
			}
			if err := writeFixture(f, cut); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close fixture: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d rows)\n", out, len(cut.Data))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source name (first source of the profile when empty)")
	cmd.Flags().StringArrayVar(&entities, "entity", nil, "entity to keep, repeatable (all when omitted)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows per entity, 0 for no limit")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func findSource(profile config.Profile, name string) (domain.SourceSpec, error) {
	if name == "" {
		return profile.Sources[0], nil
	}
	for _, s := range profile.Sources {
		if s.Name == name {
			return s, nil
		}
	}
	return domain.SourceSpec{}, fmt.Errorf("profile %q has no source %q", profile.Name, name)
}

// cutFixture keeps the rows of the selected entities, at most limit per
// entity, in source order.
func cutFixture(src domain.SourceSpec, table domain.SplitTable, entities []string, limit int) (domain.SplitTable, error) {
	col := slices.Index(table.Columns, src.EntityColumn)
	if col < 0 {
		return domain.SplitTable{}, fmt.Errorf("%w: source %q has no column %q", domain.ErrMissingColumn, src.Name, src.EntityColumn)
	}

	cut := domain.SplitTable{Columns: table.Columns, Index: []any{}, Data: [][]any{}}
	kept := make(map[string]int)
	for _, row := range table.Data {
		if col >= len(row) {
			continue
		}
		name, _ := row[col].(string)
		if len(entities) > 0 && !slices.Contains(entities, name) {
			continue
		}
		if limit > 0 && kept[name] >= limit {
			continue
		}
		kept[name]++
		cut.Index = append(cut.Index, len(cut.Data))
		cut.Data = append(cut.Data, row)
	}

	if _, err := domain.NormalizeTable(src, cut); err != nil {
		return domain.SplitTable{}, fmt.Errorf("fixture does not normalize: %w", err)
	}
	return cut, nil
}

func writeFixture(w io.Writer, table domain.SplitTable) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(table); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return nil
}
