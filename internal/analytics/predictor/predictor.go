// Package predictor provides trainable fixed-horizon point predictors: a
// multilayer perceptron, a causal convolutional network and a simple
// recurrent network, selected by architecture name.
package predictor

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
)

var (
	ErrInsufficientData    = errors.New("insufficient data for training")
	ErrUnknownArchitecture = errors.New("unknown model architecture")
	ErrModelIncompatible   = errors.New("saved model is incompatible")
	ErrDiverged            = errors.New("training diverged")
)

// Predictor maps a window of values to the next Horizon values
type Predictor interface {
	// Name returns the architecture name
	Name() string
	Window() int
	Horizon() int
	// Predict returns Horizon values following window
	Predict(window []float64) ([]float64, error)
	// Fit trains on paired windows and targets
	Fit(inputs, targets [][]float64, cfg TrainConfig) (TrainStats, error)
	// Save writes the model (architecture, shape, scaler and weights)
	Save(w io.Writer) error
}

// TrainConfig holds training parameters
type TrainConfig struct {
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	// Seed drives sample shuffling
	Seed int64 `json:"seed"`
}

// DefaultTrainConfig returns default training configuration
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       10,
		BatchSize:    32,
		LearningRate: 1e-3,
		Seed:         42,
	}
}

// Validate validates training configuration
func (c TrainConfig) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	return nil
}

// TrainStats reports a training run
type TrainStats struct {
	// Loss is the mean squared error of every epoch, in scaled units
	Loss    []float64 `json:"loss"`
	Samples int       `json:"samples"`
}

// FinalLoss returns the loss of the last epoch
func (s TrainStats) FinalLoss() float64 {
	if len(s.Loss) == 0 {
		return 0
	}
	return s.Loss[len(s.Loss)-1]
}

// builder creates the layer stack of an architecture
type builder func(window, horizon int, rng *rand.Rand) []layer

var architectures = make(map[string]builder)

// registerArchitecture adds an architecture to the registry
func registerArchitecture(name string, b builder) {
	architectures[name] = b
}

// ListArchitectures returns the registered architecture names, sorted
func ListArchitectures() []string {
	names := make([]string, 0, len(architectures))
	for name := range architectures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates an untrained predictor. seed makes weight initialization
// reproducible.
func New(arch string, window, horizon int, seed int64) (Predictor, error) {
	b, ok := architectures[arch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArchitecture, arch)
	}
	if window <= 0 || horizon <= 0 {
		return nil, fmt.Errorf("window and horizon must be positive, got %d and %d", window, horizon)
	}
	rng := rand.New(rand.NewSource(seed))
	return newNetwork(arch, window, horizon, b(window, horizon, rng)), nil
}

// MakeDataset builds sliding-window pairs: inputs[i] = series[i:i+window],
// targets[i] = series[i+window:i+window+horizon]. Fewer than two pairs is an
// ErrInsufficientData.
func MakeDataset(series []float64, window, horizon int) ([][]float64, [][]float64, error) {
	if window <= 0 || horizon <= 0 {
		return nil, nil, fmt.Errorf("window and horizon must be positive, got %d and %d", window, horizon)
	}
	count := len(series) - window - horizon + 1
	if count < 2 {
		return nil, nil, fmt.Errorf("%w: %d values give %d pairs for window %d and horizon %d",
			ErrInsufficientData, len(series), max(count, 0), window, horizon)
	}

	inputs := make([][]float64, count)
	targets := make([][]float64, count)
	for i := 0; i < count; i++ {
		inputs[i] = append([]float64(nil), series[i:i+window]...)
		targets[i] = append([]float64(nil), series[i+window:i+window+horizon]...)
	}
	return inputs, targets, nil
}
