package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Accuracy summarizes how far a forecast is from the observed values
type Accuracy struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	// MAPE is in percent and skips zero actuals
	MAPE float64 `json:"mape"`
}

// Evaluate compares predicted against actual over their common prefix
func Evaluate(actual, predicted []float64) Accuracy {
	n := min(len(actual), len(predicted))
	return Accuracy{
		MAE:  CalculateMAE(actual[:n], predicted[:n]),
		RMSE: CalculateRMSE(actual[:n], predicted[:n]),
		MAPE: CalculateMAPE(actual[:n], predicted[:n]),
	}
}

// CalculateMAPE calculates Mean Absolute Percentage Error
func CalculateMAPE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	count := 0
	for i := range actual {
		if actual[i] != 0 {
			sum += math.Abs((actual[i] - predicted[i]) / actual[i])
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return (sum / float64(count)) * 100
}

// CalculateMAE calculates Mean Absolute Error
func CalculateMAE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}
	return floats.Distance(actual, predicted, 1) / float64(len(actual))
}

// CalculateRMSE calculates Root Mean Squared Error
func CalculateRMSE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}
	d := floats.Distance(actual, predicted, 2)
	return d / math.Sqrt(float64(len(actual)))
}
