package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	// ErrMissingColumn is returned when a source table lacks a configured column.
	ErrMissingColumn = errors.New("missing column")

	// ErrInvalidValue is returned when a cell cannot be converted to its record field.
	ErrInvalidValue = errors.New("invalid value")
)

const (
	// maxRate bounds incidence rates; real values stay in the low thousands.
	maxRate = math.MaxInt32
	// maxCount bounds case counts to integers exactly representable as float64.
	maxCount = 1 << 53
)

// DecodeSplitTable reads a split-oriented JSON table. Numbers are kept as
// json.Number so large counts and epoch timestamps survive intact.
func DecodeSplitTable(r io.Reader) (SplitTable, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var table SplitTable
	if err := dec.Decode(&table); err != nil {
		return SplitTable{}, fmt.Errorf("decode split table: %w", err)
	}
	if len(table.Columns) == 0 {
		return SplitTable{}, fmt.Errorf("%w: split table has no columns", ErrMissingColumn)
	}
	return table, nil
}

// NormalizeTable projects a split table onto IncidenceRecords using the
// source's column mapping. Any missing column or unparseable cell fails the
// whole table.
func NormalizeTable(src SourceSpec, table SplitTable) ([]IncidenceRecord, error) {
	cols, err := resolveColumns(src, table.Columns)
	if err != nil {
		return nil, err
	}

	records := make([]IncidenceRecord, 0, len(table.Data))
	for i, row := range table.Data {
		if len(row) != len(table.Columns) {
			return nil, fmt.Errorf("%w: source %q row %d has %d cells, want %d",
				ErrInvalidValue, src.Name, i, len(row), len(table.Columns))
		}

		rec, err := normalizeRow(src, cols, row)
		if err != nil {
			return nil, fmt.Errorf("source %q row %d: %w", src.Name, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// columnSet holds resolved cell positions; optional columns are -1 when unused.
type columnSet struct {
	entity, date, rate   int
	casesTotal, cases14d int
}

func resolveColumns(src SourceSpec, columns []string) (columnSet, error) {
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}

	lookup := func(name string, required bool) (int, error) {
		if name == "" {
			if required {
				return -1, fmt.Errorf("%w: source %q has an empty column mapping", ErrMissingColumn, src.Name)
			}
			return -1, nil
		}
		i, ok := pos[name]
		if !ok {
			return -1, fmt.Errorf("%w: source %q has no column %q", ErrMissingColumn, src.Name, name)
		}
		return i, nil
	}

	var cs columnSet
	var err error
	if cs.entity, err = lookup(src.EntityColumn, true); err != nil {
		return columnSet{}, err
	}
	if cs.date, err = lookup(src.DateColumn, true); err != nil {
		return columnSet{}, err
	}
	if cs.rate, err = lookup(src.RateColumn, true); err != nil {
		return columnSet{}, err
	}
	if cs.casesTotal, err = lookup(src.CasesTotalColumn, false); err != nil {
		return columnSet{}, err
	}
	if cs.cases14d, err = lookup(src.Cases14dColumn, false); err != nil {
		return columnSet{}, err
	}
	return cs, nil
}

func normalizeRow(src SourceSpec, cols columnSet, row []any) (IncidenceRecord, error) {
	entity, err := parseEntity(row[cols.entity])
	if err != nil {
		return IncidenceRecord{}, fmt.Errorf("column %q: %w", src.EntityColumn, err)
	}
	date, err := parseReportDate(row[cols.date])
	if err != nil {
		return IncidenceRecord{}, fmt.Errorf("column %q: %w", src.DateColumn, err)
	}
	rate, err := parseRate(row[cols.rate])
	if err != nil {
		return IncidenceRecord{}, fmt.Errorf("column %q: %w", src.RateColumn, err)
	}

	rec := IncidenceRecord{
		Entity:       entity,
		Date:         date,
		Incidence14d: rate,
		Source:       src.Name,
	}
	if cols.casesTotal >= 0 {
		if rec.CasesTotal, err = parseCount(row[cols.casesTotal]); err != nil {
			return IncidenceRecord{}, fmt.Errorf("column %q: %w", src.CasesTotalColumn, err)
		}
	}
	if cols.cases14d >= 0 {
		if rec.Cases14d, err = parseCount(row[cols.cases14d]); err != nil {
			return IncidenceRecord{}, fmt.Errorf("column %q: %w", src.Cases14dColumn, err)
		}
	}
	return rec, nil
}

func parseEntity(v any) (string, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: entity name %v", ErrInvalidValue, v)
	}
	return s, nil
}

// parseReportDate accepts date strings in any common layout or epoch
// milliseconds and keeps only the calendar day.
func parseReportDate(v any) (time.Time, error) {
	var t time.Time
	switch x := v.(type) {
	case string:
		parsed, err := dateparse.ParseIn(strings.TrimSpace(x), time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: report date %q: %v", ErrInvalidValue, x, err)
		}
		t = parsed
	case json.Number:
		ms, err := x.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: report date %s", ErrInvalidValue, x)
		}
		t = time.UnixMilli(ms).UTC()
	case float64:
		t = time.UnixMilli(int64(x)).UTC()
	default:
		return time.Time{}, fmt.Errorf("%w: report date %v", ErrInvalidValue, v)
	}
	return truncateToDay(t), nil
}

// truncateToDay keeps the calendar day as written in the source, in UTC.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseRate rounds a non-negative rate to the nearest integer, ties to even.
func parseRate(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("incidence rate: %w", err)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: incidence rate %g is negative", ErrInvalidValue, f)
	}
	if f > maxRate {
		return 0, fmt.Errorf("%w: incidence rate %g is out of range", ErrInvalidValue, f)
	}
	return int(math.RoundToEven(f)), nil
}

// parseCount converts an optional case count. Nulls stay nil.
func parseCount(v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, fmt.Errorf("case count: %w", err)
	}
	if math.Abs(f) > maxCount {
		return nil, fmt.Errorf("%w: case count %g is out of range", ErrInvalidValue, f)
	}
	n := int64(math.Round(f))
	return &n, nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidValue, x)
		}
		f = parsed
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, x)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %g", ErrInvalidValue, f)
	}
	return f, nil
}
