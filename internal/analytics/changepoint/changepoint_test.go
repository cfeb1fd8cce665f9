package changepoint

import (
	"math"
	"testing"
)

func constantSeries(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// stepSeries creates a series with a single level shift at index at,
// with a small alternating wobble on top
func stepSeries(n, at int, before, after float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		wobble := 0.1
		if i%2 == 1 {
			wobble = -0.1
		}
		if i < at {
			out[i] = before + wobble
		} else {
			out[i] = after + wobble
		}
	}
	return out
}

func TestDetect_ConstantSeries(t *testing.T) {
	for _, baseline := range []Baseline{BaselineRunning, BaselineGlobal} {
		cfg := DefaultConfig()
		cfg.Baseline = baseline

		for _, v := range []float64{0, 1, -42.5, 1e6} {
			bounds := Detect(constantSeries(250, v), cfg)
			if len(bounds) != 0 {
				t.Errorf("baseline %s, constant %v: expected no change points, got %v", baseline, v, bounds)
			}
		}
	}
}

func TestDetect_SingleShift(t *testing.T) {
	cfg := DefaultConfig()
	data := stepSeries(120, 60, 10, 25)

	bounds := Detect(data, cfg)
	if len(bounds) != 1 {
		t.Fatalf("Expected exactly one change point, got %v", bounds)
	}
	if math.Abs(float64(bounds[0]-60)) > 2 {
		t.Errorf("Expected change point near 60, got %d", bounds[0])
	}
}

func TestDetect_SingleDrop(t *testing.T) {
	cfg := DefaultConfig()
	data := stepSeries(80, 30, 40, 5)

	bounds := Detect(data, cfg)
	if len(bounds) != 1 || bounds[0] != 30 {
		t.Errorf("Expected change point [30], got %v", bounds)
	}
}

func TestDetect_Scenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Drift = 0.5
	cfg.Threshold = 5

	bounds := Detect([]float64{10, 10, 10, 10, 50, 50, 50, 50}, cfg)
	if len(bounds) != 1 || bounds[0] != 4 {
		t.Errorf("Expected [4], got %v", bounds)
	}
}

func TestDetect_GlobalBaseline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Baseline = BaselineGlobal

	// The whole-series mean (30) is far from the first regime, so the chart
	// fires immediately and keeps firing while the re-estimated mean lags.
	bounds := Detect([]float64{10, 10, 10, 10, 50, 50, 50, 50}, cfg)
	expected := []int{0, 4, 5, 6, 7}
	if len(bounds) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, bounds)
	}
	for i := range expected {
		if bounds[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, bounds)
			break
		}
	}
}

func TestDetect_StrictlyIncreasing(t *testing.T) {
	cfg := DefaultConfig()
	data := make([]float64, 0, 300)
	for level := 0; level < 6; level++ {
		data = append(data, stepSeries(50, 0, float64(level*20), float64(level*20))...)
	}

	bounds := Detect(data, cfg)
	if len(bounds) == 0 {
		t.Fatal("Expected change points for a staircase series")
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			t.Fatalf("Bounds not strictly increasing: %v", bounds)
		}
	}
}

func TestDetect_ShortSeriesUsesAvailableSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReestimateWindow = 1000

	bounds := Detect([]float64{1, 1, 1, 30, 30}, cfg)
	if len(bounds) != 1 || bounds[0] != 3 {
		t.Errorf("Expected [3], got %v", bounds)
	}
}

func TestDetect_SkipsMissing(t *testing.T) {
	cfg := DefaultConfig()
	nan := math.NaN()

	bounds := Detect([]float64{10, nan, 10, 10, nan, 50, 50}, cfg)
	if len(bounds) != 1 || bounds[0] != 5 {
		t.Errorf("Expected [5] in original index space, got %v", bounds)
	}
}

func TestDetect_Empty(t *testing.T) {
	bounds := Detect(nil, DefaultConfig())
	if bounds == nil || len(bounds) != 0 {
		t.Errorf("Expected empty non-nil set, got %v", bounds)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"negative drift", func(c *Config) { c.Drift = -1 }, true},
		{"zero threshold", func(c *Config) { c.Threshold = 0 }, true},
		{"zero window", func(c *Config) { c.ReestimateWindow = 0 }, true},
		{"unknown baseline", func(c *Config) { c.Baseline = "median" }, true},
		{"empty baseline", func(c *Config) { c.Baseline = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
