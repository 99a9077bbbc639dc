package domain

import "time"

// SourceSpec describes one remote split table and which of its columns feed
// the normalized record.
type SourceSpec struct {
	Name         string `yaml:"name"`
	URL          string `yaml:"url"`
	EntityColumn string `yaml:"entity_column"`
	DateColumn   string `yaml:"date_column"`
	RateColumn   string `yaml:"rate_column"`

	// Optional raw case-count columns carried along but never charted.
	CasesTotalColumn string `yaml:"cases_total_column,omitempty"`
	Cases14dColumn   string `yaml:"cases_14d_column,omitempty"`
}

// SplitTable is a table serialized as parallel column names and row arrays.
type SplitTable struct {
	Columns []string `json:"columns"`
	Index   []any    `json:"index,omitempty"`
	Data    [][]any  `json:"data"`
}

// IncidenceRecord is one row of the normalized table.
type IncidenceRecord struct {
	Entity       string    `json:"entity"`
	Date         time.Time `json:"date"`
	Incidence14d int       `json:"incidence_14d"`
	Source       string    `json:"source"`

	CasesTotal *int64 `json:"cases_total,omitempty"`
	Cases14d   *int64 `json:"cases_14d,omitempty"`
}

// NormalizedTable holds the records produced from a single source.
type NormalizedTable struct {
	Source  string
	Records []IncidenceRecord
}

// SourceSummary reports how many rows a source contributed to a dataset.
type SourceSummary struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// Dataset is the merged, read-only table shared by every request.
// It must not be modified after construction.
type Dataset struct {
	Records  []IncidenceRecord
	Catalog  []string
	Sources  []SourceSummary
	LoadedAt time.Time
}

// NewDataset merges normalized tables in the given order and derives the entity catalog.
func NewDataset(tables ...NormalizedTable) *Dataset {
	parts := make([][]IncidenceRecord, 0, len(tables))
	sources := make([]SourceSummary, 0, len(tables))
	for _, t := range tables {
		parts = append(parts, t.Records)
		sources = append(sources, SourceSummary{Name: t.Source, Rows: len(t.Records)})
	}

	records := Merge(parts...)
	return &Dataset{
		Records:  records,
		Catalog:  Catalog(records),
		Sources:  sources,
		LoadedAt: clock.Now(),
	}
}

// Merge concatenates record slices, preserving order and duplicates.
func Merge(parts ...[]IncidenceRecord) []IncidenceRecord {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]IncidenceRecord, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Catalog returns the distinct entity names in first-seen order.
func Catalog(records []IncidenceRecord) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.Entity]; ok {
			continue
		}
		seen[r.Entity] = struct{}{}
		names = append(names, r.Entity)
	}
	return names
}
