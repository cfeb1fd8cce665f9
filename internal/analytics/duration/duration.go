// Package duration builds the change-duration curve: for every tolerance run
// in a segment, how long the series stays within a percentage band around the
// run's first value and in which direction it leaves the band.
package duration

import (
	"math"
)

// DefaultTolerance is the default band half-width (5%)
const DefaultTolerance = 0.05

// Curve is the change-duration curve. Marks, Values and Lengths are parallel.
type Curve struct {
	// Marks is the index where each run ends (clamped to the last index)
	Marks []int `json:"x"`
	// Values is the run length signed by breakout direction, 0 when the run
	// reaches the end of the data or a missing value
	Values []int `json:"y"`
	// Lengths is the unsigned run length
	Lengths []int `json:"lengths"`
}

// Len returns the number of runs
func (c Curve) Len() int {
	return len(c.Marks)
}

// Empty returns a curve without runs
func Empty() Curve {
	return Curve{Marks: []int{}, Values: []int{}, Lengths: []int{}}
}

// band returns the tolerance band around anchor with low <= high
func band(anchor, pct float64) (low, high float64) {
	low = anchor * (1 - pct)
	high = anchor * (1 + pct)
	if low > high {
		low, high = high, low
	}
	return low, high
}

// Analyze scans series left to right and emits one point per tolerance run
func Analyze(series []float64, pct float64) Curve {
	curve := Empty()
	n := len(series)

	i := 0
	for i < n {
		anchor := series[i]
		if math.IsNaN(anchor) {
			i++
			continue
		}

		low, high := band(anchor, pct)
		j := i
		for j < n && !math.IsNaN(series[j]) && series[j] >= low && series[j] <= high {
			j++
		}

		length := j - i
		sign := 0
		if j < n && !math.IsNaN(series[j]) {
			if series[j] > anchor {
				sign = 1
			} else {
				sign = -1
			}
		}

		curve.Marks = append(curve.Marks, min(j, n-1))
		curve.Values = append(curve.Values, sign*length)
		curve.Lengths = append(curve.Lengths, length)

		i = max(j, i+1)
	}
	return curve
}

// WithinBand returns the indices whose value lies strictly inside the pct band
// around series[point]
func WithinBand(series []float64, point int, pct float64) []int {
	if point < 0 || point >= len(series) || math.IsNaN(series[point]) {
		return []int{}
	}
	low, high := band(series[point], pct)
	out := make([]int, 0)
	for i, v := range series {
		if v > low && v < high {
			out = append(out, i)
		}
	}
	return out
}
