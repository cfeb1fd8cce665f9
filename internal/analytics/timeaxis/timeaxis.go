// Package timeaxis reconstructs a display time axis from a raw time column and
// projects it past the end of the data for forecast points.
package timeaxis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/itchyny/timefmt-go"

	"github.com/chaoscast/chaoscast/internal/analytics"
)

// Kind names a timestamp encoding
type Kind string

const (
	KindIndex        Kind = "index"
	KindSeconds      Kind = "timestamp_seconds"
	KindMilliseconds Kind = "timestamp_milliseconds"
	KindExplicit     Kind = "explicit_format"
	KindISO          Kind = "iso_date"
	KindRFC2822      Kind = "rfc_2822"
	KindHuman        Kind = "human_readable"
)

// CanonicalLayout is the textual form of a resolved tick
const CanonicalLayout = "2006-01-02T15:04:05"

var (
	ErrUnknownEncoding = errors.New("unknown time encoding")
	ErrMissingFormat   = errors.New("explicit_format encoding requires a format pattern")
)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102T1504",
	"20060102T150405",
	"20060102",
}

var rfc2822Layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
}

// Encoding describes how the time column is written
type Encoding struct {
	Kind   Kind   `json:"kind"`
	Format string `json:"format,omitempty"`
	Column string `json:"column,omitempty"`
}

// Validate checks the encoding kind and the explicit format pattern
func (e Encoding) Validate() error {
	switch e.Kind {
	case KindIndex, KindSeconds, KindMilliseconds, KindISO, KindRFC2822, KindHuman:
		return nil
	case KindExplicit:
		if strings.TrimSpace(e.Format) == "" {
			return ErrMissingFormat
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEncoding, e.Kind)
	}
}

// Tick is one point of the axis: an integer position on a synthetic axis, a
// wall-clock time, or unknown when the source entry could not be parsed.
type Tick struct {
	Time    time.Time
	Index   int
	Known   bool
	indexed bool
}

// IndexTick returns a tick on a synthetic axis
func IndexTick(i int) Tick {
	return Tick{Index: i, Known: true, indexed: true}
}

// TimeTick returns a tick at the given wall-clock time
func TimeTick(t time.Time) Tick {
	return Tick{Time: t, Known: true}
}

// String returns the canonical text of the tick, empty when unknown
func (t Tick) String() string {
	switch {
	case !t.Known:
		return ""
	case t.indexed:
		return strconv.Itoa(t.Index)
	case t.Time.Nanosecond() != 0:
		return t.Time.Format(CanonicalLayout + ".999999999")
	default:
		return t.Time.Format(CanonicalLayout)
	}
}

// MarshalJSON writes an integer for index ticks, a string for times and null
// for unknown ticks
func (t Tick) MarshalJSON() ([]byte, error) {
	switch {
	case !t.Known:
		return []byte("null"), nil
	case t.indexed:
		return json.Marshal(t.Index)
	default:
		return json.Marshal(t.String())
	}
}

// Axis is a resolved time axis
type Axis struct {
	Synthetic bool
	Ticks     []Tick
	// Unit is the fallback step when fewer than two ticks are known
	Unit time.Duration
}

// Len returns the number of ticks
func (a Axis) Len() int {
	return len(a.Ticks)
}

// Known returns the number of parsed ticks
func (a Axis) Known() int {
	n := 0
	for _, t := range a.Ticks {
		if t.Known {
			n++
		}
	}
	return n
}

// Synthetic returns an integer axis 0..n-1
func Synthetic(n int) Axis {
	ticks := make([]Tick, n)
	for i := range ticks {
		ticks[i] = IndexTick(i)
	}
	return Axis{Synthetic: true, Ticks: ticks, Unit: 1}
}

// Resolve parses column with the given encoding. A nil column, or the index
// kind, yields a synthetic axis of n ticks. Entries that fail to parse become
// unknown ticks.
func Resolve(column []string, n int, enc Encoding) (Axis, error) {
	if err := enc.Validate(); err != nil {
		return Axis{}, err
	}
	if column == nil || enc.Kind == KindIndex {
		if column != nil {
			n = len(column)
		}
		return Synthetic(n), nil
	}

	axis := Axis{Ticks: make([]Tick, len(column)), Unit: time.Second}
	if enc.Kind == KindMilliseconds {
		axis.Unit = time.Millisecond
	}
	for i, raw := range column {
		if t, ok := parse(strings.TrimSpace(raw), enc); ok {
			axis.Ticks[i] = TimeTick(t)
		}
	}
	return axis, nil
}

// ResolveColumn resolves a table column. Numeric cells are formatted back to
// text so epoch columns parsed as numbers still resolve.
func ResolveColumn(col *analytics.Column, n int, enc Encoding) (Axis, error) {
	if col == nil {
		return Resolve(nil, n, enc)
	}
	raw := make([]string, col.Len())
	for i := range raw {
		switch {
		case col.IsMissing(i):
		case col.Numeric:
			raw[i] = strconv.FormatFloat(col.Floats[i], 'f', -1, 64)
		default:
			raw[i] = col.Texts[i]
		}
	}
	return Resolve(raw, n, enc)
}

func parse(raw string, enc Encoding) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	switch enc.Kind {
	case KindSeconds:
		return parseEpoch(raw, 1e9)
	case KindMilliseconds:
		return parseEpoch(raw, 1e6)
	case KindExplicit:
		t, err := timefmt.Parse(raw, enc.Format)
		if err != nil {
			return time.Time{}, false
		}
		return wallClock(t), true
	case KindISO:
		return parseLayouts(raw, isoLayouts)
	case KindRFC2822:
		return parseLayouts(raw, rfc2822Layouts)
	case KindHuman:
		t, err := dateparse.ParseAny(raw)
		if err != nil {
			return time.Time{}, false
		}
		return wallClock(t), true
	}
	return time.Time{}, false
}

func parseEpoch(raw string, nanosPerUnit float64) (time.Time, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}
	nanos := v * nanosPerUnit
	if math.Abs(nanos) >= math.MaxInt64 {
		return time.Time{}, false
	}
	return time.Unix(0, int64(nanos)).UTC(), true
}

func parseLayouts(raw string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return wallClock(t), true
		}
	}
	return time.Time{}, false
}

// wallClock drops the zone and keeps the clock reading
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Step returns the median spacing of adjacent known ticks, or the axis unit
// when fewer than two ticks are known or the spacing is not positive.
func (a Axis) Step() time.Duration {
	var diffs []int64
	var prev *time.Time
	for i := range a.Ticks {
		if !a.Ticks[i].Known {
			continue
		}
		t := a.Ticks[i].Time
		if prev != nil {
			diffs = append(diffs, int64(t.Sub(*prev)))
		}
		prev = &t
	}
	if len(diffs) == 0 {
		return a.Unit
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i] < diffs[j] })
	mid := len(diffs) / 2
	median := diffs[mid]
	if len(diffs)%2 == 0 {
		median = diffs[mid-1] + (diffs[mid]-diffs[mid-1])/2
	}
	if median <= 0 {
		return a.Unit
	}
	return time.Duration(median)
}

// Extrapolate returns count ticks continuing the axis past its last entry.
// Time axes step from the last known tick; without any known tick the
// projection is unknown.
func Extrapolate(a Axis, count int) []Tick {
	out := make([]Tick, 0, max(count, 0))
	if count <= 0 {
		return out
	}

	if a.Synthetic {
		for k := 1; k <= count; k++ {
			out = append(out, IndexTick(len(a.Ticks)-1+k))
		}
		return out
	}

	last := -1
	for i := len(a.Ticks) - 1; i >= 0; i-- {
		if a.Ticks[i].Known {
			last = i
			break
		}
	}
	if last < 0 {
		return append(out, make([]Tick, count)...)
	}

	step := a.Step()
	base := a.Ticks[last].Time
	for k := 1; k <= count; k++ {
		out = append(out, TimeTick(base.Add(time.Duration(k)*step)))
	}
	return out
}

// Labels returns the JSON-ready labels of ticks
func Labels(ticks []Tick) []interface{} {
	out := make([]interface{}, len(ticks))
	for i, t := range ticks {
		switch {
		case !t.Known:
			out[i] = nil
		case t.indexed:
			out[i] = t.Index
		default:
			out[i] = t.String()
		}
	}
	return out
}
