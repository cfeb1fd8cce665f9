package changepoint

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// hurstEpsilon keeps log(R/S) finite when the rescaled range is zero
const hurstEpsilon = 1e-10

// HurstExponent estimates the Hurst exponent of ts by rescaled-range analysis:
// the slope of log(R/S) against log(t). Returns NaN for windows shorter than
// two samples or without variance.
func HurstExponent(ts []float64) float64 {
	n := len(ts)
	if n < 2 {
		return math.NaN()
	}

	mean, variance := stat.PopMeanVariance(ts, nil)
	std := math.Sqrt(variance)
	if std == 0 {
		return math.NaN()
	}

	logT := make([]float64, n)
	logRS := make([]float64, n)
	var cum, hi, lo float64
	for i, v := range ts {
		cum += v - mean
		if i == 0 {
			hi, lo = cum, cum
		}
		hi = math.Max(hi, cum)
		lo = math.Min(lo, cum)
		logT[i] = math.Log(float64(i + 1))
		logRS[i] = math.Log((hi-lo)/std + hurstEpsilon)
	}

	_, slope := stat.LinearRegression(logT, logRS, nil, false)
	return slope
}

// LocalFractalDimension returns the Hurst exponent over every sliding window of
// windowSize samples; the result has len(signal)-windowSize+1 entries.
func LocalFractalDimension(signal []float64, windowSize int) []float64 {
	if windowSize <= 0 || windowSize > len(signal) {
		return []float64{}
	}
	out := make([]float64, 0, len(signal)-windowSize+1)
	for i := 0; i+windowSize <= len(signal); i++ {
		out = append(out, HurstExponent(signal[i:i+windowSize]))
	}
	return out
}
