package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
)

// TableNormalizer implements Normalizer using the domain column mapping.
type TableNormalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a TableNormalizer.
func NewNormalizer(logger *slog.Logger) *TableNormalizer {
	return &TableNormalizer{logger: logger}
}

func (n *TableNormalizer) Normalize(_ context.Context, src domain.SourceSpec, table domain.SplitTable) (domain.NormalizedTable, error) {
	records, err := domain.NormalizeTable(src, table)
	if err != nil {
		return domain.NormalizedTable{}, err
	}

	n.logger.Debug("source normalized",
		"source", src.Name,
		"rows", len(records),
		"dropped_columns", len(table.Columns)-projectedColumns(src),
	)
	return domain.NormalizedTable{Source: src.Name, Records: records}, nil
}

func projectedColumns(src domain.SourceSpec) int {
	n := 3
	if src.CasesTotalColumn != "" {
		n++
	}
	if src.Cases14dColumn != "" {
		n++
	}
	return n
}
