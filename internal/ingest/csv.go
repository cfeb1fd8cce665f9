// Package ingest turns uploaded CSV files into tables and summarizes them
// for the project preview.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chaoscast/chaoscast/internal/analytics"
)

var (
	ErrEmptyFile     = errors.New("csv file has no header row")
	ErrUnknownColumn = errors.New("unknown column")
)

// missingTokens are cell values read as missing, compared case-insensitively
var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

func isMissing(cell string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(cell))]
	return ok
}

// ReadCSV reads a CSV document with a header row. A column is numeric when
// every non-missing cell parses as a finite number; otherwise it is text.
// Short rows are padded with missing cells and long rows truncated.
func ReadCSV(r io.Reader) (*analytics.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	names := headerNames(header)

	cells := make([][]string, len(names))
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		for i := range names {
			cell := ""
			if i < len(record) {
				cell = strings.TrimSpace(record[i])
			}
			cells[i] = append(cells[i], cell)
		}
	}

	columns := make([]*analytics.Column, len(names))
	for i, name := range names {
		columns[i] = buildColumn(name, cells[i])
	}
	return analytics.NewTable(columns...)
}

// headerNames strips a byte order mark and names blank or repeated headers
// the way spreadsheet exports expect: "Unnamed: i" and "name.1".
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		if n, ok := seen[h]; ok {
			base := h
			for {
				n++
				h = base + "." + strconv.Itoa(n)
				if _, taken := seen[h]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[h] = 0
		names[i] = h
	}
	return names
}

func buildColumn(name string, cells []string) *analytics.Column {
	values := make([]float64, len(cells))
	numeric := true
	for i, cell := range cells {
		if isMissing(cell) {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsInf(v, 0) {
			numeric = false
			break
		}
		values[i] = v
	}
	if numeric {
		return analytics.NewNumericColumn(name, values)
	}

	texts := make([]string, len(cells))
	valid := make([]bool, len(cells))
	for i, cell := range cells {
		if !isMissing(cell) {
			texts[i] = cell
			valid[i] = true
		}
	}
	return analytics.NewTextColumn(name, texts, valid)
}
