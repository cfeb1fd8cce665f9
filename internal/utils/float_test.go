package utils

import (
	"encoding/json"
	"math"
	"testing"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected float64
		ok       bool
	}{
		{"float64", float64(3.14), 3.14, true},
		{"float32", float32(2.5), 2.5, true},
		{"int", int(42), 42, true},
		{"int64", int64(-64), -64, true},
		{"uint64", uint64(64), 64, true},
		{"json number", json.Number("1.5"), 1.5, true},
		{"numeric string", " 12 ", 12, true},
		{"bad json number", json.Number("x"), 0, false},
		{"string", "hello", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
		{"slice", []int{1, 2, 3}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ToFloat64(tt.input)

			if ok != tt.ok {
				t.Errorf("ToFloat64(%v) ok = %v, want %v", tt.input, ok, tt.ok)
			}

			if result != tt.expected {
				t.Errorf("ToFloat64(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFinite(t *testing.T) {
	if Finite(math.NaN()) != nil {
		t.Error("Expected nil for NaN")
	}
	if Finite(math.Inf(-1)) != nil {
		t.Error("Expected nil for -Inf")
	}
	if Finite(2.5) != 2.5 {
		t.Error("Expected finite value to pass through")
	}

	out := FiniteSlice([]float64{1, math.Inf(1), 3})
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "[1,null,3]" {
		t.Errorf("Unexpected JSON %s", data)
	}

	if AllFinite([]float64{1, math.NaN()}) {
		t.Error("Expected AllFinite to be false")
	}
	if !AllFinite(nil) {
		t.Error("Expected AllFinite(nil) to be true")
	}
}
