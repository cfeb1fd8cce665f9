// Package forecast produces multi-step forecasts by calling a fixed-horizon
// point predictor repeatedly and feeding its output back as input.
package forecast

import (
	"errors"
	"fmt"

	"github.com/chaoscast/chaoscast/internal/logging"
)

var ErrInsufficientData = errors.New("insufficient data for one input window")

// Predictor maps a window of recent values to the next Horizon values
type Predictor interface {
	Predict(window []float64) ([]float64, error)
}

// PredictorFunc adapts a function to the Predictor interface
type PredictorFunc func(window []float64) ([]float64, error)

// Predict calls f(window)
func (f PredictorFunc) Predict(window []float64) ([]float64, error) {
	return f(window)
}

// Request describes one forecast
type Request struct {
	// Window is the predictor input length
	Window int `json:"window"`
	// Horizon is the predictor output length
	Horizon int `json:"horizon"`
	// Steps is the number of predictor invocations
	Steps int `json:"steps"`
	// Context seeds the buffer with the last Context history values when
	// 0 < Context <= len(history); otherwise the whole history is used
	Context int `json:"context"`
}

// Validate checks window and horizon
func (r Request) Validate() error {
	if r.Window <= 0 {
		return fmt.Errorf("window must be positive, got %d", r.Window)
	}
	if r.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", r.Horizon)
	}
	return nil
}

// Total returns the number of values a forecast emits
func (r Request) Total() int {
	if r.Steps <= 0 {
		return 0
	}
	return r.Steps * r.Horizon
}

// Engine runs the iterative forecast loop
type Engine struct {
	logger *logging.Logger
}

// NewEngine creates an engine that logs through logger (the global logger when nil)
func NewEngine(logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Global()
	}
	return &Engine{logger: logger}
}

// Forecast seeds a buffer from history, then repeatedly predicts from its
// trailing Window values, emits the prediction and appends it to the buffer,
// until Steps*Horizon values are emitted.
func (e *Engine) Forecast(history []float64, p Predictor, req Request) ([]float64, error) {
	total := req.Total()
	if total == 0 {
		return []float64{}, nil
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	seed := history
	if req.Context > 0 && req.Context <= len(history) {
		seed = history[len(history)-req.Context:]
	}
	if len(seed) < req.Window {
		return nil, fmt.Errorf("%w: have %d values, window is %d", ErrInsufficientData, len(seed), req.Window)
	}

	buffer := make([]float64, len(seed), len(seed)+total)
	copy(buffer, seed)
	out := make([]float64, 0, total)

	for calls := 1; len(out) < total; calls++ {
		window := append([]float64(nil), buffer[len(buffer)-req.Window:]...)
		pred, err := p.Predict(window)
		if err != nil {
			return nil, fmt.Errorf("predictor call %d failed: %w", calls, err)
		}
		if len(pred) != req.Horizon {
			return nil, fmt.Errorf("predictor returned %d values, expected horizon %d", len(pred), req.Horizon)
		}

		take := min(req.Horizon, total-len(out))
		out = append(out, pred[:take]...)
		buffer = append(buffer, pred...)
	}

	e.logger.Debug("Forecast complete",
		"steps", req.Steps,
		"horizon", req.Horizon,
		"values", len(out),
		"buffer", len(buffer))
	return out, nil
}
