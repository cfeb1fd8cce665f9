// Package changepoint detects shifts in the mean of a series.
//
// Detect runs a two-sided CUSUM control chart and reports every index where
// an accumulator crossed the decision threshold. The Scorer strategies
// (cusum, min_info_error) produce a per-index score curve and the index of
// the strongest deviation instead.
package changepoint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Baseline selects how the reference mean evolves during detection
type Baseline string

const (
	// BaselineRunning tracks the mean of the current regime: the samples since
	// the last break, capped at ReestimateWindow.
	BaselineRunning Baseline = "running"
	// BaselineGlobal starts from the whole-series mean and re-estimates it from
	// the ReestimateWindow samples preceding each break.
	BaselineGlobal Baseline = "global"
)

// Config holds CUSUM parameters
type Config struct {
	// Drift is the slack k subtracted from every deviation
	Drift float64
	// Threshold is the decision interval h
	Threshold float64
	// ReestimateWindow bounds how many samples feed the re-estimated mean
	ReestimateWindow int
	// Baseline is the mean tracking mode (default running)
	Baseline Baseline
}

// DefaultConfig returns default detector configuration
func DefaultConfig() Config {
	return Config{
		Drift:            0.5,
		Threshold:        5.0,
		ReestimateWindow: 100,
		Baseline:         BaselineRunning,
	}
}

// Validate validates detector configuration
func (c Config) Validate() error {
	if c.Drift < 0 {
		return fmt.Errorf("drift must be non-negative, got %v", c.Drift)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %v", c.Threshold)
	}
	if c.ReestimateWindow <= 0 {
		return fmt.Errorf("reestimate window must be positive, got %d", c.ReestimateWindow)
	}
	switch c.Baseline {
	case "", BaselineRunning, BaselineGlobal:
		return nil
	default:
		return fmt.Errorf("unknown baseline mode: %s", c.Baseline)
	}
}

// state is the accumulated detector state threaded through one Detect call
type state struct {
	pos         float64
	neg         float64
	mean        float64
	regimeStart int
}

// step folds x[i] into the state and reports whether a break occurred
func (s *state) step(x []float64, i int, cfg Config) bool {
	if cfg.Baseline != BaselineGlobal {
		start := i - cfg.ReestimateWindow + 1
		if start < s.regimeStart {
			start = s.regimeStart
		}
		s.mean = stat.Mean(x[start:i+1], nil)
	}

	s.pos = math.Max(0, s.pos+(x[i]-s.mean-cfg.Drift))
	s.neg = math.Min(0, s.neg+(x[i]-s.mean+cfg.Drift))
	if s.pos <= cfg.Threshold && s.neg >= -cfg.Threshold {
		return false
	}

	s.pos, s.neg = 0, 0
	s.regimeStart = i
	if cfg.Baseline == BaselineGlobal {
		start := i - cfg.ReestimateWindow
		if start < 0 {
			start = 0
		}
		s.mean = stat.Mean(x[start:i+1], nil)
	}
	return true
}

// Detect returns the strictly increasing indices where the CUSUM statistic
// crossed the threshold. Missing (NaN) samples are skipped.
func Detect(series []float64, cfg Config) []int {
	x, index := dropMissing(series)
	if len(x) == 0 {
		return []int{}
	}

	st := &state{}
	if cfg.Baseline == BaselineGlobal {
		st.mean = stat.Mean(x, nil)
	}

	bounds := make([]int, 0)
	for i := range x {
		if st.step(x, i, cfg) {
			bounds = append(bounds, index[i])
		}
	}
	return bounds
}

// dropMissing returns the present values and their original indices
func dropMissing(series []float64) ([]float64, []int) {
	x := make([]float64, 0, len(series))
	index := make([]int, 0, len(series))
	for i, v := range series {
		if math.IsNaN(v) {
			continue
		}
		x = append(x, v)
		index = append(index, i)
	}
	return x, index
}
