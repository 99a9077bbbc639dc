package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/couchcryptid/incidence-dashboard-service/internal/render"
	"github.com/spf13/cobra"
)

func newCatalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the selectable entities of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.dashboard(cmd.Context())
			if err != nil {
				return err
			}
			names, err := svc.Catalog()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newChartCmd(opts *options) *cobra.Command {
	var entities []string

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Print the chart specification for a selection as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.dashboard(cmd.Context())
			if err != nil {
				return err
			}
			spec, err := svc.Update(selection(cmd, svc, entities))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(spec)
		},
	}
	selectionFlag(cmd, &entities)
	return cmd
}

func newRenderCmd(opts *options) *cobra.Command {
	var (
		entities []string
		format   string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the chart for a selection as SVG or PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, err := opts.dashboard(cmd.Context())
			if err != nil {
				return err
			}
			img, err := svc.Render(selection(cmd, svc, entities), f)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(img)
				return err
			}
			if err := os.WriteFile(out, img, 0o644); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(img))
			return nil
		},
	}
	selectionFlag(cmd, &entities)
	cmd.Flags().StringVar(&format, "format", string(render.FormatSVG), "image format (svg or png)")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}
