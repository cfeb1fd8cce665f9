package changepoint

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Score is the output shared by every scoring strategy
type Score struct {
	// Index of the strongest deviation (maximum absolute score, first wins)
	Index int `json:"index"`
	// Curve holds one score per input index
	Curve []float64 `json:"curve"`
}

// Scorer interface for all change-point scoring strategies
type Scorer interface {
	// Name returns the strategy name
	Name() string
	// Score computes the per-index score curve
	Score(series []float64) Score
}

// Registry holds available scorers
var scorerRegistry = make(map[string]Scorer)

// RegisterScorer adds a scorer to the registry
func RegisterScorer(name string, scorer Scorer) {
	scorerRegistry[name] = scorer
}

// GetScorer returns a scorer by name
func GetScorer(name string) (Scorer, error) {
	if scorer, ok := scorerRegistry[name]; ok {
		return scorer, nil
	}
	return nil, fmt.Errorf("unknown change-point scorer: %s", name)
}

// ListScorers returns the registered scorer names, sorted
func ListScorers() []string {
	names := make([]string, 0, len(scorerRegistry))
	for name := range scorerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// strongest returns the index of the maximum absolute value; ties keep the earliest
func strongest(curve []float64) int {
	best := 0
	for i := range curve {
		if math.Abs(curve[i]) > math.Abs(curve[best]) {
			best = i
		}
	}
	return best
}

// CUSUMScorer scores each index by the normalized cumulative deviation from
// the series mean
type CUSUMScorer struct{}

func init() {
	RegisterScorer("cusum", &CUSUMScorer{})
	RegisterScorer("min_info_error", &MinInfoErrorScorer{})
}

// Name returns the strategy name
func (s *CUSUMScorer) Name() string {
	return "cusum"
}

// Score computes B[i] = sum(x[0..i] - mean) / sqrt(sum((x - mean)^2) * n)
func (s *CUSUMScorer) Score(series []float64) Score {
	n := len(series)
	curve := make([]float64, n)
	if n == 0 {
		return Score{Curve: curve}
	}

	mean := stat.Mean(series, nil)
	var dispersion float64
	for _, v := range series {
		dispersion += (v - mean) * (v - mean)
	}
	dispersion = math.Sqrt(dispersion * float64(n))
	if dispersion == 0 {
		return Score{Curve: curve}
	}

	var running float64
	for i, v := range series {
		running += v - mean
		curve[i] = running / dispersion
	}
	return Score{Index: strongest(curve), Curve: curve}
}

// MinInfoErrorScorer scores every split point by the Gaussian log-likelihood
// gained by modelling the two sides separately
type MinInfoErrorScorer struct{}

// Name returns the strategy name
func (s *MinInfoErrorScorer) Name() string {
	return "min_info_error"
}

// Score computes the split score for i in [0, n-3]; other entries stay 0
func (s *MinInfoErrorScorer) Score(series []float64) Score {
	n := len(series)
	curve := make([]float64, n)
	if n < 3 {
		return Score{Curve: curve}
	}

	squares := make([]float64, n)
	floats.MulTo(squares, series, series)
	c := math.Log(2*math.Pi) + 1
	whole := float64(n) * (math.Log(stat.Mean(squares, nil)) + c) / 2

	for i := 0; i < n-2; i++ {
		left := -float64(i+1) * (math.Log(stat.Mean(squares[:i+1], nil)) + c) / 2
		right := -float64(n-i-1) * (math.Log(stat.Mean(squares[i+1:], nil)) + c) / 2
		v := left + right + whole
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		curve[i] = v
	}
	return Score{Index: strongest(curve), Curve: curve}
}
