package timeaxis

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/chaoscast/chaoscast/internal/analytics"
)

func TestEncodingValidate(t *testing.T) {
	tests := []struct {
		name    string
		enc     Encoding
		wantErr error
	}{
		{"index", Encoding{Kind: KindIndex}, nil},
		{"seconds", Encoding{Kind: KindSeconds}, nil},
		{"explicit with format", Encoding{Kind: KindExplicit, Format: "%Y-%m-%d"}, nil},
		{"explicit without format", Encoding{Kind: KindExplicit}, ErrMissingFormat},
		{"explicit blank format", Encoding{Kind: KindExplicit, Format: "  "}, ErrMissingFormat},
		{"unknown", Encoding{Kind: "julian"}, ErrUnknownEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.enc.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolve_NoColumn(t *testing.T) {
	axis, err := Resolve(nil, 4, Encoding{Kind: KindISO})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !axis.Synthetic || axis.Len() != 4 {
		t.Fatalf("Expected synthetic axis of 4, got %+v", axis)
	}

	next := Extrapolate(axis, 3)
	labels := Labels(next)
	for i, want := range []int{4, 5, 6} {
		if labels[i] != want {
			t.Errorf("Tick %d = %v, want %d", i, labels[i], want)
		}
	}
}

func TestResolve_Kinds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		enc  Encoding
		want string
	}{
		{"seconds", "1700000000", Encoding{Kind: KindSeconds}, "2023-11-14T22:13:20"},
		{"fractional seconds", "1700000000.5", Encoding{Kind: KindSeconds}, "2023-11-14T22:13:20.5"},
		{"milliseconds", "1700000000000", Encoding{Kind: KindMilliseconds}, "2023-11-14T22:13:20"},
		{"explicit", "2024/03/05 07:08:09", Encoding{Kind: KindExplicit, Format: "%Y/%m/%d %H:%M:%S"}, "2024-03-05T07:08:09"},
		{"iso date", "2024-03-05", Encoding{Kind: KindISO}, "2024-03-05T00:00:00"},
		{"iso with zone keeps wall clock", "2024-03-05T10:00:00+03:00", Encoding{Kind: KindISO}, "2024-03-05T10:00:00"},
		{"iso space separated", "2024-03-05 10:30:00", Encoding{Kind: KindISO}, "2024-03-05T10:30:00"},
		{"compact", "20240305T1030", Encoding{Kind: KindISO}, "2024-03-05T10:30:00"},
		{"rfc 2822", "Tue, 05 Mar 2024 10:30:00 +0000", Encoding{Kind: KindRFC2822}, "2024-03-05T10:30:00"},
		{"human readable", "March 5, 2024", Encoding{Kind: KindHuman}, "2024-03-05T00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			axis, err := Resolve([]string{tt.raw}, 1, tt.enc)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if !axis.Ticks[0].Known {
				t.Fatalf("Expected %q to parse", tt.raw)
			}
			if got := axis.Ticks[0].String(); got != tt.want {
				t.Errorf("Tick = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_UnparseableBecomesNull(t *testing.T) {
	axis, err := Resolve([]string{"2024-01-01", "garbage", ""}, 3, Encoding{Kind: KindISO})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if axis.Known() != 1 {
		t.Errorf("Expected 1 known tick, got %d", axis.Known())
	}

	data, err := json.Marshal(axis.Ticks)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `["2024-01-01T00:00:00",null,null]` {
		t.Errorf("Unexpected JSON: %s", data)
	}
}

func TestResolve_Errors(t *testing.T) {
	if _, err := Resolve([]string{"1"}, 1, Encoding{Kind: "lunar"}); !errors.Is(err, ErrUnknownEncoding) {
		t.Errorf("Expected ErrUnknownEncoding, got %v", err)
	}
	if _, err := Resolve([]string{"1"}, 1, Encoding{Kind: KindExplicit}); !errors.Is(err, ErrMissingFormat) {
		t.Errorf("Expected ErrMissingFormat, got %v", err)
	}
}

func TestExtrapolate_RegularAxis(t *testing.T) {
	raw := []string{"2024-01-01 00:00:00", "2024-01-01 01:00:00", "2024-01-01 02:00:00", "2024-01-01 03:00:00"}
	axis, err := Resolve(raw, len(raw), Encoding{Kind: KindISO})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if axis.Step() != time.Hour {
		t.Errorf("Step = %v, want 1h", axis.Step())
	}

	labels := Labels(Extrapolate(axis, 3))
	want := []string{"2024-01-01T04:00:00", "2024-01-01T05:00:00", "2024-01-01T06:00:00"}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("Tick %d = %v, want %s", i, labels[i], want[i])
		}
	}
}

func TestExtrapolate_MedianIgnoresGaps(t *testing.T) {
	raw := []string{"0", "60", "120", "bad", "180", "600"}
	axis, err := Resolve(raw, len(raw), Encoding{Kind: KindSeconds})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	// diffs between adjacent known ticks: 60, 60, 60, 420
	if axis.Step() != time.Minute {
		t.Errorf("Step = %v, want 1m", axis.Step())
	}

	next := Extrapolate(axis, 1)
	if next[0].Time.Unix() != 660 {
		t.Errorf("Expected projection from the last known tick, got %v", next[0].Time)
	}
}

func TestExtrapolate_FallbackUnit(t *testing.T) {
	axis, _ := Resolve([]string{"1700000000000", "x"}, 2, Encoding{Kind: KindMilliseconds})
	if axis.Step() != time.Millisecond {
		t.Errorf("Expected 1ms fallback step, got %v", axis.Step())
	}

	axis, _ = Resolve([]string{"bad", "2024-01-01"}, 2, Encoding{Kind: KindISO})
	next := Extrapolate(axis, 2)
	if next[1].String() != "2024-01-01T00:00:02" {
		t.Errorf("Expected 1s fallback step, got %s", next[1].String())
	}

	axis, _ = Resolve([]string{"bad", "worse"}, 2, Encoding{Kind: KindISO})
	for _, tick := range Extrapolate(axis, 2) {
		if tick.Known {
			t.Error("Expected unknown projection without any known tick")
		}
	}

	if got := Extrapolate(axis, 0); len(got) != 0 {
		t.Errorf("Expected no ticks for count 0, got %d", len(got))
	}
}

func TestResolveColumn_Numeric(t *testing.T) {
	col := analytics.NewNumericColumn("ts", []float64{1700000000, 1700000060})
	axis, err := ResolveColumn(col, 2, Encoding{Kind: KindSeconds})
	if err != nil {
		t.Fatalf("ResolveColumn failed: %v", err)
	}
	if axis.Known() != 2 || axis.Step() != time.Minute {
		t.Errorf("Unexpected axis: known=%d step=%v", axis.Known(), axis.Step())
	}
}
