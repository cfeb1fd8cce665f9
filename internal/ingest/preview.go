package ingest

import (
	"fmt"

	"github.com/chaoscast/chaoscast/internal/analytics"
	"github.com/chaoscast/chaoscast/internal/utils"
)

// Column dtypes reported in previews
const (
	DtypeNumeric = "float64"
	DtypeText    = "object"
)

// Info summarizes the shape of a table
type Info struct {
	Rows        int               `json:"rows"`
	Columns     int               `json:"columns"`
	ColumnNames []string          `json:"column_names"`
	Dtypes      map[string]string `json:"dtypes"`
	NACounts    map[string]int    `json:"na_counts"`
}

// Preview is the summary stored after an upload
type Preview struct {
	Head []map[string]interface{} `json:"head"`
	Info Info                     `json:"info"`
}

// SampleResult holds the leading rows of selected columns
type SampleResult struct {
	Records []map[string]interface{} `json:"records"`
	Columns []string                 `json:"columns"`
	Size    int                      `json:"size"`
}

// Describe builds the preview of table with its first rows rows
func Describe(table *analytics.Table, rows int) Preview {
	info := Info{
		Rows:        table.Len(),
		Columns:     len(table.Columns),
		ColumnNames: table.Names(),
		Dtypes:      make(map[string]string, len(table.Columns)),
		NACounts:    make(map[string]int, len(table.Columns)),
	}
	for _, c := range table.Columns {
		info.Dtypes[c.Name] = DtypeText
		if c.Numeric {
			info.Dtypes[c.Name] = DtypeNumeric
		}
		info.NACounts[c.Name] = c.MissingCount()
	}

	return Preview{
		Head: records(table.Slice(0, min(rows, table.Len()))),
		Info: info,
	}
}

// Sample returns the first limit rows of columns, in the order given.
// A non-positive limit returns every row.
func Sample(table *analytics.Table, columns []string, limit int) (SampleResult, error) {
	for _, name := range columns {
		if _, ok := table.Column(name); !ok {
			return SampleResult{}, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
	}

	n := table.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	sel := table.Select(columns...).Slice(0, n)
	return SampleResult{
		Records: records(sel),
		Columns: append([]string{}, columns...),
		Size:    n,
	}, nil
}

// records converts rows to JSON-safe maps
func records(table *analytics.Table) []map[string]interface{} {
	rows := table.Records()
	for _, row := range rows {
		for k, v := range row {
			if f, ok := v.(float64); ok {
				row[k] = utils.Finite(f)
			}
		}
	}
	return rows
}
