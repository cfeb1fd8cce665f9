// Package segment selects the part of a table that follows its most recent
// structural change.
package segment

import (
	"github.com/chaoscast/chaoscast/internal/analytics"
	"github.com/chaoscast/chaoscast/internal/analytics/changepoint"
)

const (
	// DefaultBackWindow is the look-back used for change-point search
	DefaultBackWindow = 600
	// DefaultLength is the tail length used when no change point is found
	DefaultLength = 200
)

// Segment is a contiguous row range of a table
type Segment struct {
	// Table holds the segment rows
	Table *analytics.Table
	// Start is the first row relative to the analyzed window
	Start int
	// Offset is the absolute row of the analyzed window start
	Offset int
}

// Len returns the number of rows in the segment
func (s Segment) Len() int {
	return s.Table.Len()
}

// AbsoluteStart returns the first row of the segment in source-table coordinates
func (s Segment) AbsoluteStart() int {
	return s.Offset + s.Start
}

// SelectLast returns the last length rows (the whole table if shorter)
func SelectLast(table *analytics.Table, length int) Segment {
	n := table.Len()
	if length <= 0 {
		length = DefaultLength
	}
	if n <= length {
		return Segment{Table: table.Clone()}
	}
	return Segment{Table: table.Slice(n-length, n), Start: n - length}
}

// SelectCUSUM restricts the table to its last backWindow rows, detects change
// points on the target column and returns the rows from the last change point
// on. Without a change point it falls back to a DefaultLength tail.
func SelectCUSUM(table *analytics.Table, target string, backWindow int, cfg changepoint.Config) (Segment, []int) {
	n := table.Len()
	if backWindow <= 0 {
		backWindow = DefaultBackWindow
	}

	window := table
	offset := 0
	if n > backWindow {
		offset = n - backWindow
		window = table.Slice(offset, n)
	}

	bounds := []int{}
	if col, ok := window.Column(target); ok && col.Numeric {
		bounds = changepoint.Detect(col.Floats, cfg)
	}

	if len(bounds) > 0 {
		last := bounds[len(bounds)-1]
		return Segment{
			Table:  window.Slice(last, window.Len()),
			Start:  last,
			Offset: offset,
		}, bounds
	}

	seg := SelectLast(window, DefaultLength)
	seg.Offset = offset
	return seg, bounds
}
