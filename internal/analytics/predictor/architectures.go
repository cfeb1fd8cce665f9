package predictor

import "math/rand"

// Layer sizes per architecture
const (
	mlpHidden1    = 128
	mlpHidden2    = 64
	cnnFilters    = 32
	cnnKernel     = 3
	cnnDense      = 64
	rnnUnits      = 64
	rnnDense      = 64
	inputChannels = 1
)

func init() {
	registerArchitecture("mlp", buildMLP)
	registerArchitecture("cnn", buildCNN)
	registerArchitecture("rnn", buildRNN)
}

// buildMLP: window -> 128 relu -> 64 relu -> horizon
func buildMLP(window, horizon int, rng *rand.Rand) []layer {
	return []layer{
		newDense(window, mlpHidden1, rng), &relu{},
		newDense(mlpHidden1, mlpHidden2, rng), &relu{},
		newDense(mlpHidden2, horizon, rng),
	}
}

// buildCNN: two causal convolutions (32 filters, kernel 3, relu), global
// average pooling, 64 relu -> horizon
func buildCNN(window, horizon int, rng *rand.Rand) []layer {
	return []layer{
		newConv1D(window, inputChannels, cnnFilters, cnnKernel, rng), &relu{},
		newConv1D(window, cnnFilters, cnnFilters, cnnKernel, rng), &relu{},
		&globalAvgPool{steps: window, channels: cnnFilters},
		newDense(cnnFilters, cnnDense, rng), &relu{},
		newDense(cnnDense, horizon, rng),
	}
}

// buildRNN: simple recurrent layer (64 units, tanh), 64 relu -> horizon
func buildRNN(window, horizon int, rng *rand.Rand) []layer {
	return []layer{
		newSimpleRNN(window, inputChannels, rnnUnits, rng),
		newDense(rnnUnits, rnnDense, rng), &relu{},
		newDense(rnnDense, horizon, rng),
	}
}
