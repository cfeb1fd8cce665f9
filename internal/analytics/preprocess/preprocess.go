// Package preprocess runs the preprocessing pipeline: imputation, segment
// selection and the change-duration curve of the selected segment.
package preprocess

import (
	"errors"
	"fmt"
	"math"

	"github.com/chaoscast/chaoscast/internal/analytics"
	"github.com/chaoscast/chaoscast/internal/analytics/changepoint"
	"github.com/chaoscast/chaoscast/internal/analytics/duration"
	"github.com/chaoscast/chaoscast/internal/analytics/segment"
	"github.com/chaoscast/chaoscast/internal/logging"
)

// Segment selection strategies
const (
	StrategyCUSUM   = "cusum"
	StrategyRecency = "recency"
	// StrategyLast is accepted as an alias of StrategyRecency
	StrategyLast = "last"
)

var ErrUnknownStrategy = errors.New("unknown segment selection strategy")

// Options configures a pipeline run
type Options struct {
	Strategy      string
	BackWindow    int
	SegmentLength int
	Tolerance     float64
	Detector      changepoint.Config
	// FractalWindow enables the local fractal dimension of the segment target
	// when positive
	FractalWindow int
}

// DefaultOptions returns the default pipeline options
func DefaultOptions() Options {
	return Options{
		Strategy:      StrategyCUSUM,
		BackWindow:    segment.DefaultBackWindow,
		SegmentLength: segment.DefaultLength,
		Tolerance:     duration.DefaultTolerance,
		Detector:      changepoint.DefaultConfig(),
	}
}

// Result is the output of a pipeline run
type Result struct {
	Segment segment.Segment
	// Bounds are the change points found inside the analyzed window
	Bounds []int
	Curve  duration.Curve
	// EmptyColumns lists columns with no value at all; they stay missing
	EmptyColumns []string
	Fractal      []float64
}

// Impute returns a copy of table with missing cells filled. Numeric columns are
// forward filled, then backward filled, then filled with the column mean. Text
// columns are forward then backward filled. Wholly missing columns are left
// as they are and reported.
func Impute(table *analytics.Table) (*analytics.Table, []string) {
	out := table.Clone()
	empty := make([]string, 0)

	for _, col := range out.Columns {
		n := col.Len()
		if n > 0 && col.MissingCount() == n {
			empty = append(empty, col.Name)
			continue
		}
		if col.Numeric {
			imputeNumeric(col.Floats)
		} else {
			imputeText(col.Texts, col.Valid)
		}
	}
	return out, empty
}

func imputeNumeric(values []float64) {
	for i := 1; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			values[i] = values[i-1]
		}
	}
	for i := len(values) - 2; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = values[i+1]
		}
	}

	mean := analytics.Series(values).Mean()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = mean
		}
	}
}

func imputeText(values []string, valid []bool) {
	for i := 1; i < len(values); i++ {
		if !valid[i] && valid[i-1] {
			values[i], valid[i] = values[i-1], true
		}
	}
	for i := len(values) - 2; i >= 0; i-- {
		if !valid[i] && valid[i+1] {
			values[i], valid[i] = values[i+1], true
		}
	}
}

// Run imputes the table, selects a segment with the configured strategy and
// derives the change-duration curve of the target column inside it.
func Run(table *analytics.Table, target string, opts Options) (Result, error) {
	filled, empty := Impute(table)
	if len(empty) > 0 {
		logging.Warn("Columns have no values and were left missing", "columns", empty)
	}

	var res Result
	res.EmptyColumns = empty

	switch opts.Strategy {
	case StrategyCUSUM, "":
		if err := opts.Detector.Validate(); err != nil {
			return Result{}, fmt.Errorf("invalid detector configuration: %w", err)
		}
		res.Segment, res.Bounds = segment.SelectCUSUM(filled, target, opts.BackWindow, opts.Detector)
	case StrategyRecency, StrategyLast:
		res.Segment = segment.SelectLast(filled, opts.SegmentLength)
		res.Bounds = []int{}
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, opts.Strategy)
	}

	res.Curve = duration.Empty()
	if col, ok := res.Segment.Table.Column(target); ok && col.Numeric {
		res.Curve = duration.Analyze(col.Floats, opts.Tolerance)
		if opts.FractalWindow > 0 {
			res.Fractal = changepoint.LocalFractalDimension(col.Floats, opts.FractalWindow)
		}
	}
	return res, nil
}
