package preprocess

import (
	"errors"
	"math"
	"testing"

	"github.com/chaoscast/chaoscast/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpute(t *testing.T) {
	nan := math.NaN()
	table, err := analytics.NewTable(
		analytics.NewNumericColumn("value", []float64{nan, 2, nan, nan, 5, nan}),
		analytics.NewTextColumn("label", []string{"", "a", "", "b", "", ""}, []bool{false, true, false, true, false, false}),
		analytics.NewNumericColumn("empty", []float64{nan, nan, nan, nan, nan, nan}),
	)
	require.NoError(t, err)

	filled, empty := Impute(table)

	value, _ := filled.Column("value")
	assert.Equal(t, []float64{2, 2, 2, 2, 5, 5}, value.Floats)

	label, _ := filled.Column("label")
	assert.Equal(t, []string{"a", "a", "a", "b", "b", "b"}, label.Texts)
	assert.Equal(t, 0, label.MissingCount())

	assert.Equal(t, []string{"empty"}, empty)
	emptyCol, _ := filled.Column("empty")
	assert.Equal(t, 6, emptyCol.MissingCount())

	original, _ := table.Column("value")
	assert.True(t, math.IsNaN(original.Floats[0]), "input table must not be modified")
}

func TestRun_Scenario(t *testing.T) {
	table, err := analytics.NewTable(
		analytics.NewNumericColumn("value", []float64{10, 10, 10, 10, 50, 50, 50, 50}),
	)
	require.NoError(t, err)

	res, err := Run(table, "value", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []int{4}, res.Bounds)
	assert.Equal(t, 4, res.Segment.Len())
	assert.Equal(t, []int{3}, res.Curve.Marks)
	assert.Equal(t, []int{0}, res.Curve.Values)
	assert.Empty(t, res.EmptyColumns)
}

func TestRun_Recency(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = float64(i)
	}
	table, err := analytics.NewTable(analytics.NewNumericColumn("value", values))
	require.NoError(t, err)

	for _, strategy := range []string{StrategyRecency, StrategyLast} {
		opts := DefaultOptions()
		opts.Strategy = strategy
		opts.SegmentLength = 10

		res, err := Run(table, "value", opts)
		require.NoError(t, err)
		assert.Equal(t, 10, res.Segment.Len())
		assert.Equal(t, 40, res.Segment.Start)
		assert.Empty(t, res.Bounds)
	}
}

func TestRun_UnknownStrategy(t *testing.T) {
	table, err := analytics.NewTable(analytics.NewNumericColumn("value", []float64{1, 2, 3}))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Strategy = "pelt"
	_, err = Run(table, "value", opts)
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
}

func TestRun_MissingTarget(t *testing.T) {
	table, err := analytics.NewTable(analytics.NewNumericColumn("value", []float64{1, 2, 3}))
	require.NoError(t, err)

	res, err := Run(table, "price", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Curve.Len())
	assert.Equal(t, 3, res.Segment.Len())
}

func TestRun_Fractal(t *testing.T) {
	values := make([]float64, 64)
	for i := range values {
		values[i] = math.Sin(float64(i)/4) + float64(i%7)
	}
	table, err := analytics.NewTable(analytics.NewNumericColumn("value", values))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Strategy = StrategyRecency
	opts.FractalWindow = 16

	res, err := Run(table, "value", opts)
	require.NoError(t, err)
	assert.Len(t, res.Fractal, 64-16+1)
}

func TestRun_InvalidDetector(t *testing.T) {
	table, err := analytics.NewTable(analytics.NewNumericColumn("value", []float64{1, 2, 3}))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Detector.Threshold = 0
	_, err = Run(table, "value", opts)
	assert.Error(t, err)
}
