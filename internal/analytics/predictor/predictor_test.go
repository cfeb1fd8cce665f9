package predictor

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 20 + 5*math.Sin(float64(i)/6)
	}
	return out
}

func TestMakeDataset(t *testing.T) {
	inputs, targets, err := MakeDataset([]float64{0, 1, 2, 3, 4, 5}, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, [][]float64{{0, 1, 2}, {1, 2, 3}}, inputs)
	assert.Equal(t, [][]float64{{3, 4}, {4, 5}}, targets)

	_, _, err = MakeDataset([]float64{0, 1, 2, 3, 4}, 3, 2)
	assert.True(t, errors.Is(err, ErrInsufficientData), "one pair is not enough")

	_, _, err = MakeDataset([]float64{0, 1}, 3, 2)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	_, _, err = MakeDataset([]float64{0, 1, 2}, 0, 1)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"cnn", "mlp", "rnn"}, ListArchitectures())

	_, err := New("transformer", 8, 2, 1)
	assert.True(t, errors.Is(err, ErrUnknownArchitecture))

	_, err = New("mlp", 0, 2, 1)
	assert.Error(t, err)
}

func TestTrainConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultTrainConfig().Validate())

	cfg := DefaultTrainConfig()
	cfg.Epochs = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultTrainConfig()
	cfg.LearningRate = 0
	assert.Error(t, cfg.Validate())
}

func TestMLP_LossDecreases(t *testing.T) {
	inputs, targets, err := MakeDataset(sineSeries(200), 16, 4)
	require.NoError(t, err)

	model, err := New("mlp", 16, 4, 7)
	require.NoError(t, err)

	cfg := TrainConfig{Epochs: 30, BatchSize: 16, LearningRate: 3e-3, Seed: 1}
	stats, err := model.Fit(inputs, targets, cfg)
	require.NoError(t, err)

	require.Len(t, stats.Loss, 30)
	assert.Equal(t, len(inputs), stats.Samples)
	assert.Less(t, stats.FinalLoss(), stats.Loss[0])
}

func TestArchitectures_Shapes(t *testing.T) {
	inputs, targets, err := MakeDataset(sineSeries(60), 12, 3)
	require.NoError(t, err)

	for _, arch := range ListArchitectures() {
		t.Run(arch, func(t *testing.T) {
			model, err := New(arch, 12, 3, 3)
			require.NoError(t, err)
			assert.Equal(t, arch, model.Name())

			stats, err := model.Fit(inputs, targets, TrainConfig{Epochs: 2, BatchSize: 8, LearningRate: 1e-3, Seed: 2})
			require.NoError(t, err)
			for _, l := range stats.Loss {
				assert.False(t, math.IsNaN(l) || math.IsInf(l, 0))
			}

			pred, err := model.Predict(inputs[0])
			require.NoError(t, err)
			require.Len(t, pred, 3)
			for _, v := range pred {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}

			_, err = model.Predict(inputs[0][:5])
			assert.Error(t, err)
		})
	}
}

func TestFit_Errors(t *testing.T) {
	model, err := New("mlp", 3, 1, 1)
	require.NoError(t, err)

	_, err = model.Fit([][]float64{{1, 2, 3}}, [][]float64{{4}}, DefaultTrainConfig())
	assert.True(t, errors.Is(err, ErrInsufficientData))

	_, err = model.Fit([][]float64{{1, 2}, {2, 3}}, [][]float64{{4}, {5}}, DefaultTrainConfig())
	assert.Error(t, err)
}

func TestFit_Diverged(t *testing.T) {
	inputs, targets, err := MakeDataset(sineSeries(80), 8, 2)
	require.NoError(t, err)

	for _, arch := range ListArchitectures() {
		t.Run(arch, func(t *testing.T) {
			model, err := New(arch, 8, 2, 1)
			require.NoError(t, err)

			stats, err := model.Fit(inputs, targets, TrainConfig{Epochs: 3, BatchSize: 16, LearningRate: 1e300, Seed: 1})
			require.True(t, errors.Is(err, ErrDiverged), "got %v", err)
			assert.NotEmpty(t, stats.Loss)
			assert.Less(t, len(stats.Loss), 4)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	inputs, targets, err := MakeDataset(sineSeries(80), 10, 2)
	require.NoError(t, err)

	for _, arch := range ListArchitectures() {
		t.Run(arch, func(t *testing.T) {
			model, err := New(arch, 10, 2, 5)
			require.NoError(t, err)
			_, err = model.Fit(inputs, targets, TrainConfig{Epochs: 1, BatchSize: 16, LearningRate: 1e-3, Seed: 3})
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, model.Save(&buf))
			saved := buf.Bytes()

			loaded, err := Load(bytes.NewReader(saved), 10, 2)
			require.NoError(t, err)
			assert.Equal(t, arch, loaded.Name())

			want, err := model.Predict(inputs[3])
			require.NoError(t, err)
			got, err := loaded.Predict(inputs[3])
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, got, 1e-12)

			_, err = Load(bytes.NewReader(saved), 12, 2)
			assert.True(t, errors.Is(err, ErrModelIncompatible))

			_, err = Load(bytes.NewReader(saved), 0, 0)
			assert.NoError(t, err, "zero shape accepts any saved model")
		})
	}
}

func TestLoad_Garbage(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("not a model")), 1, 1)
	assert.Error(t, err)
}

// checkGradients compares backward against central differences for the loss
// L = sum(out * coef)
func checkGradients(t *testing.T, layers []layer, in int, rng *rand.Rand) {
	t.Helper()
	n := newNetwork("test", in, 0, layers)

	x := make([]float64, in)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	out := n.forward(x)
	coef := make([]float64, len(out))
	for i := range coef {
		coef[i] = rng.NormFloat64()
	}
	loss := func() float64 {
		y := n.forward(x)
		s := 0.0
		for i := range y {
			s += y[i] * coef[i]
		}
		return s
	}

	n.forward(x)
	n.backward(coef)

	const eps = 1e-6
	for pi, p := range n.params() {
		for i := range p.value {
			orig := p.value[i]
			p.value[i] = orig + eps
			up := loss()
			p.value[i] = orig - eps
			down := loss()
			p.value[i] = orig

			numeric := (up - down) / (2 * eps)
			if math.Abs(numeric-p.grad[i]) > 1e-5*math.Max(1, math.Abs(numeric)) {
				t.Fatalf("param %d[%d]: analytic %v, numeric %v", pi, i, p.grad[i], numeric)
			}
		}
	}
}

func TestLayerGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	t.Run("dense", func(t *testing.T) {
		checkGradients(t, []layer{newDense(4, 3, rng), newDense(3, 2, rng)}, 4, rng)
	})
	t.Run("conv1d", func(t *testing.T) {
		checkGradients(t, []layer{
			newConv1D(6, 1, 2, 3, rng),
			newConv1D(6, 2, 2, 3, rng),
			&globalAvgPool{steps: 6, channels: 2},
			newDense(2, 2, rng),
		}, 6, rng)
	})
	t.Run("rnn", func(t *testing.T) {
		checkGradients(t, []layer{newSimpleRNN(5, 1, 3, rng), newDense(3, 2, rng)}, 5, rng)
	})
}
