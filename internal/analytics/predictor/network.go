package predictor

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/chaoscast/chaoscast/internal/compression"
)

// Adam hyper-parameters
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// scaler standardizes values to zero mean and unit variance
type scaler struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func fitScaler(inputs, targets [][]float64) scaler {
	var all []float64
	for _, row := range inputs {
		all = append(all, row...)
	}
	for _, row := range targets {
		all = append(all, row...)
	}
	mean, std := stat.MeanStdDev(all, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	if math.IsNaN(mean) {
		mean = 0
	}
	return scaler{Mean: mean, Std: std}
}

func (s scaler) scale(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.Mean) / s.Std
	}
	return out
}

func (s scaler) unscale(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*s.Std + s.Mean
	}
	return out
}

// network is a layer stack trained with Adam on mean squared error. Layers
// cache activations, so every call holds mu.
type network struct {
	mu      sync.Mutex
	arch    string
	window  int
	horizon int
	layers  []layer
	scaler  scaler
	fitted  bool
	step    int
}

func newNetwork(arch string, window, horizon int, layers []layer) *network {
	return &network{
		arch:    arch,
		window:  window,
		horizon: horizon,
		layers:  layers,
		scaler:  scaler{Std: 1},
	}
}

func (n *network) Name() string { return n.arch }
func (n *network) Window() int  { return n.window }
func (n *network) Horizon() int { return n.horizon }

func (n *network) forward(x []float64) []float64 {
	for _, l := range n.layers {
		x = l.forward(x)
	}
	return x
}

func (n *network) backward(dy []float64) {
	for i := len(n.layers) - 1; i >= 0; i-- {
		dy = n.layers[i].backward(dy)
	}
}

func (n *network) params() []*param {
	var out []*param
	for _, l := range n.layers {
		out = append(out, l.params()...)
	}
	return out
}

// Predict returns the next Horizon values after window
func (n *network) Predict(window []float64) ([]float64, error) {
	if len(window) != n.window {
		return nil, fmt.Errorf("window has %d values, model expects %d", len(window), n.window)
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.scaler.unscale(n.forward(n.scaler.scale(window))), nil
}

// Fit trains the network. The scaler is fitted on the first call and kept
// on later calls so continued training sees the same units.
func (n *network) Fit(inputs, targets [][]float64, cfg TrainConfig) (TrainStats, error) {
	if err := cfg.Validate(); err != nil {
		return TrainStats{}, err
	}
	if len(inputs) != len(targets) {
		return TrainStats{}, fmt.Errorf("got %d inputs and %d targets", len(inputs), len(targets))
	}
	if len(inputs) < 2 {
		return TrainStats{}, fmt.Errorf("%w: %d training pairs", ErrInsufficientData, len(inputs))
	}
	for i := range inputs {
		if len(inputs[i]) != n.window || len(targets[i]) != n.horizon {
			return TrainStats{}, fmt.Errorf("pair %d has shape %d->%d, model expects %d->%d",
				i, len(inputs[i]), len(targets[i]), n.window, n.horizon)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.fitted {
		n.scaler = fitScaler(inputs, targets)
		n.fitted = true
	}
	xs := make([][]float64, len(inputs))
	ys := make([][]float64, len(targets))
	for i := range inputs {
		xs[i] = n.scaler.scale(inputs[i])
		ys[i] = n.scaler.scale(targets[i])
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}

	stats := TrainStats{Loss: make([]float64, 0, cfg.Epochs), Samples: len(xs)}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		total := 0.0
		for start := 0; start < len(order); start += cfg.BatchSize {
			batch := order[start:min(start+cfg.BatchSize, len(order))]
			for _, idx := range batch {
				total += n.accumulate(xs[idx], ys[idx], len(batch))
			}
			n.adam(cfg.LearningRate)
		}
		stats.Loss = append(stats.Loss, total/float64(len(xs)))
		if !n.finite(stats.FinalLoss()) {
			return stats, fmt.Errorf("%w: epoch %d with learning rate %g", ErrDiverged, epoch+1, cfg.LearningRate)
		}
	}
	return stats, nil
}

// finite reports whether loss and every weight are finite
func (n *network) finite(loss float64) bool {
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return false
	}
	for _, p := range n.params() {
		for _, v := range p.value {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// accumulate runs one sample forward and backward and returns its loss
func (n *network) accumulate(x, y []float64, batchSize int) float64 {
	out := n.forward(x)
	dy := make([]float64, len(out))
	loss := 0.0
	scale := 2 / float64(len(out)*batchSize)
	for i := range out {
		diff := out[i] - y[i]
		loss += diff * diff
		dy[i] = diff * scale
	}
	n.backward(dy)
	return loss / float64(len(out))
}

// adam applies one optimizer step with the accumulated gradients and clears them
func (n *network) adam(lr float64) {
	n.step++
	t := float64(n.step)
	rate := lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))

	for _, p := range n.params() {
		for i, g := range p.grad {
			p.m[i] = adamBeta1*p.m[i] + (1-adamBeta1)*g
			p.v[i] = adamBeta2*p.v[i] + (1-adamBeta2)*g*g
			p.value[i] -= rate * p.m[i] / (math.Sqrt(p.v[i]) + adamEpsilon)
			p.grad[i] = 0
		}
	}
}

// artifact is the persisted form of a network
type artifact struct {
	Architecture string      `json:"architecture"`
	Window       int         `json:"window"`
	Horizon      int         `json:"horizon"`
	Scaler       scaler      `json:"scaler"`
	Fitted       bool        `json:"fitted"`
	Params       [][]float64 `json:"params"`
}

// Save writes the network as snappy-framed JSON
func (n *network) Save(w io.Writer) error {
	n.mu.Lock()
	a := artifact{
		Architecture: n.arch,
		Window:       n.window,
		Horizon:      n.horizon,
		Scaler:       n.scaler,
		Fitted:       n.fitted,
	}
	for _, p := range n.params() {
		a.Params = append(a.Params, append([]float64(nil), p.value...))
	}
	n.mu.Unlock()

	sw := compression.NewStreamWriter(w)
	if err := json.NewEncoder(sw).Encode(a); err != nil {
		sw.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return sw.Close()
}

// Load reads a model written by Save. A positive window or horizon must match
// the saved shape, otherwise ErrModelIncompatible is returned.
func Load(r io.Reader, window, horizon int) (Predictor, error) {
	var a artifact
	if err := json.NewDecoder(compression.NewStreamReader(r)).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if (window > 0 && a.Window != window) || (horizon > 0 && a.Horizon != horizon) {
		return nil, fmt.Errorf("%w: saved shape %d->%d, requested %d->%d",
			ErrModelIncompatible, a.Window, a.Horizon, window, horizon)
	}

	b, ok := architectures[a.Architecture]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArchitecture, a.Architecture)
	}
	n := newNetwork(a.Architecture, a.Window, a.Horizon, b(a.Window, a.Horizon, rand.New(rand.NewSource(0))))

	params := n.params()
	if len(params) != len(a.Params) {
		return nil, fmt.Errorf("%w: %d parameter tensors, expected %d", ErrModelIncompatible, len(a.Params), len(params))
	}
	for i, p := range params {
		if len(p.value) != len(a.Params[i]) {
			return nil, fmt.Errorf("%w: tensor %d has %d values, expected %d",
				ErrModelIncompatible, i, len(a.Params[i]), len(p.value))
		}
		copy(p.value, a.Params[i])
	}
	n.scaler = a.Scaler
	n.fitted = a.Fitted
	return n, nil
}
