package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/queue"
)

func shiftCSV() string {
	var b strings.Builder
	b.WriteString("ts,load\n")
	for i := 0; i < 100; i++ {
		v := 5
		if i >= 70 {
			v = 30
		}
		fmt.Fprintf(&b, "%d,%d\n", 1700000000+i*60, v)
	}
	return b.String()
}

func TestParseRunFlags(t *testing.T) {
	_, err := parseRunFlags([]string{"-file", "x.csv"})
	assert.Error(t, err)

	_, err = parseRunFlags([]string{"-file", "x.csv", "-target", "load", "-train-on", "tail"})
	assert.Error(t, err)

	o, err := parseRunFlags([]string{"-file", "x.csv", "-target", "load", "-window", "4"})
	require.NoError(t, err)
	assert.Equal(t, 4, o.window)
	assert.Equal(t, "cusum", o.strategy)
	assert.Equal(t, "full", o.trainOn)
}

func TestRunPipeline(t *testing.T) {
	o, err := parseRunFlags([]string{
		"-file", "unused.csv",
		"-target", "load",
		"-window", "5",
		"-horizon", "2",
		"-epochs", "1",
		"-steps", "3",
		"-time-column", "ts",
		"-time-kind", "timestamp_seconds",
	})
	require.NoError(t, err)

	report, err := runPipeline(strings.NewReader(shiftCSV()), o, logging.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 100, report.Rows)
	require.Len(t, report.ChangePoints, 1)
	assert.Equal(t, 70, report.ChangePoints[0])
	assert.Equal(t, 70, report.SegmentStart)
	assert.Equal(t, 30, report.SegmentLen)
	assert.Equal(t, 100-5-2+1, report.Samples)
	assert.Len(t, report.Forecast, 6)
	require.Len(t, report.Time, 6)
	last := time.Unix(1700000000+99*60, 0).UTC()
	assert.Equal(t, last.Add(time.Minute).Format("2006-01-02T15:04:05"), report.Time[0])
}

func TestRunPipeline_SegmentTraining(t *testing.T) {
	o, err := parseRunFlags([]string{
		"-file", "unused.csv",
		"-target", "load",
		"-window", "5",
		"-horizon", "2",
		"-epochs", "1",
		"-train-on", "segment",
	})
	require.NoError(t, err)

	report, err := runPipeline(strings.NewReader(shiftCSV()), o, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 30-5-2+1, report.Samples)
	assert.Equal(t, 100, report.Time[0])
}

func TestRunPipeline_Errors(t *testing.T) {
	o, err := parseRunFlags([]string{"-file", "unused.csv", "-target", "power"})
	require.NoError(t, err)
	_, err = runPipeline(strings.NewReader(shiftCSV()), o, logging.NewNop())
	assert.Error(t, err)

	o.target = "load"
	o.window = 200
	_, err = runPipeline(strings.NewReader(shiftCSV()), o, logging.NewNop())
	assert.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchEvents(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- watchEvents(ctx, q, "cc", "wanted", out)
	}()

	emitter := queue.NewEmitter(q, "cc", logging.NewNop())
	require.NoError(t, emitter.Emit(context.Background(), queue.Event{Type: queue.EventModelTrained, ProjectID: "other"}))
	require.NoError(t, emitter.Emit(context.Background(), queue.Event{Type: queue.EventModelTrained, ProjectID: "wanted", Status: "trained"}))

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "wanted trained")
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotContains(t, out.String(), "other")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watchEvents did not return after cancel")
	}
}
