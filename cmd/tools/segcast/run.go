package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chaoscast/chaoscast/internal/analytics/forecast"
	"github.com/chaoscast/chaoscast/internal/analytics/predictor"
	"github.com/chaoscast/chaoscast/internal/analytics/preprocess"
	"github.com/chaoscast/chaoscast/internal/analytics/timeaxis"
	"github.com/chaoscast/chaoscast/internal/config"
	"github.com/chaoscast/chaoscast/internal/ingest"
	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/utils"
)

// runOptions are the flags of the run command
type runOptions struct {
	file      string
	target    string
	strategy  string
	model     string
	window    int
	horizon   int
	epochs    int
	steps     int
	timeCol   string
	timeKind  string
	timeFmt   string
	trainOn   string
	modelOut  string
	logLevel  string
	seed      int64
	backWin   int
	segLength int
}

// runReport is printed as JSON
type runReport struct {
	Rows         int           `json:"rows"`
	Target       string        `json:"target"`
	Strategy     string        `json:"strategy"`
	ChangePoints []int         `json:"change_points"`
	SegmentStart int           `json:"segment_start"`
	SegmentLen   int           `json:"segment_length"`
	Runs         int           `json:"runs"`
	Model        string        `json:"model"`
	Samples      int           `json:"samples"`
	Loss         interface{}   `json:"loss"`
	Forecast     []interface{} `json:"forecast"`
	Time         []interface{} `json:"time"`
}

func parseRunFlags(args []string) (runOptions, error) {
	d := config.DefaultConfig()
	var o runOptions

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&o.file, "file", "", "CSV file to analyze (required)")
	fs.StringVar(&o.target, "target", "", "Target column (required)")
	fs.StringVar(&o.strategy, "strategy", d.Analytics.Strategy, "Segment strategy (cusum, recency, last)")
	fs.IntVar(&o.backWin, "back-window", d.Analytics.BackWindow, "Rows searched for change points")
	fs.IntVar(&o.segLength, "segment-length", d.Analytics.SegmentLength, "Segment length of the recency strategy")
	fs.StringVar(&o.model, "model", d.Model.Type, "Model architecture")
	fs.IntVar(&o.window, "window", d.Model.Window, "Model input window")
	fs.IntVar(&o.horizon, "horizon", d.Model.Horizon, "Model output horizon")
	fs.IntVar(&o.epochs, "epochs", d.Model.Epochs, "Training epochs")
	fs.Int64Var(&o.seed, "seed", d.Model.Seed, "Random seed")
	fs.IntVar(&o.steps, "steps", 1, "Predictor invocations")
	fs.StringVar(&o.trainOn, "train-on", "full", "Training data (full, segment)")
	fs.StringVar(&o.timeCol, "time-column", "", "Time column for forecast labels")
	fs.StringVar(&o.timeKind, "time-kind", string(timeaxis.KindISO), "Time column encoding")
	fs.StringVar(&o.timeFmt, "time-format", "", "strftime pattern of explicit_format")
	fs.StringVar(&o.modelOut, "model-out", "", "Write the trained model to this file")
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.file == "" || o.target == "" {
		return o, errors.New("-file and -target are required")
	}
	if o.trainOn != "full" && o.trainOn != "segment" {
		return o, fmt.Errorf("unknown -train-on value %q", o.trainOn)
	}
	return o, nil
}

func runCommand(args []string, out io.Writer) error {
	o, err := parseRunFlags(args)
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(config.LoggingConfig{Level: o.logLevel, Format: "console", OutputPath: "stderr"})
	if err != nil {
		return err
	}
	logging.SetGlobal(logger)

	f, err := os.Open(o.file)
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := runPipeline(f, o, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// runPipeline reads a CSV, selects a segment, trains a model and forecasts
func runPipeline(r io.Reader, o runOptions, logger *logging.Logger) (*runReport, error) {
	table, err := ingest.ReadCSV(r)
	if err != nil {
		return nil, err
	}

	opts := preprocess.DefaultOptions()
	opts.Strategy = o.strategy
	opts.BackWindow = o.backWin
	opts.SegmentLength = o.segLength
	res, err := preprocess.Run(table, o.target, opts)
	if err != nil {
		return nil, err
	}

	filled, empty := preprocess.Impute(table.Select(o.target))
	if len(empty) > 0 {
		return nil, fmt.Errorf("target column %s has no values", o.target)
	}
	col, ok := filled.Column(o.target)
	if !ok || !col.Numeric {
		return nil, fmt.Errorf("target column %s is missing or not numeric", o.target)
	}
	series := col.Floats
	train := series
	if o.trainOn == "segment" {
		start := res.Segment.AbsoluteStart()
		train = series[start : start+res.Segment.Len()]
	}

	inputs, targets, err := predictor.MakeDataset(train, o.window, o.horizon)
	if err != nil {
		return nil, err
	}
	model, err := predictor.New(o.model, o.window, o.horizon, o.seed)
	if err != nil {
		return nil, err
	}
	tc := predictor.DefaultTrainConfig()
	tc.Epochs = o.epochs
	tc.Seed = o.seed
	stats, err := model.Fit(inputs, targets, tc)
	if err != nil {
		return nil, err
	}
	logger.Info("Model trained", "model", o.model, "samples", stats.Samples, "loss", stats.FinalLoss())

	if o.modelOut != "" {
		mf, err := os.Create(o.modelOut)
		if err != nil {
			return nil, err
		}
		if err := model.Save(mf); err != nil {
			mf.Close()
			return nil, err
		}
		if err := mf.Close(); err != nil {
			return nil, err
		}
	}

	values, err := forecast.NewEngine(logger).Forecast(series, model, forecast.Request{
		Window:  o.window,
		Horizon: o.horizon,
		Steps:   o.steps,
	})
	if err != nil {
		return nil, err
	}

	axis := timeaxis.Synthetic(table.Len())
	if o.timeCol != "" {
		tcol, ok := table.Column(o.timeCol)
		if !ok {
			return nil, fmt.Errorf("unknown time column %s", o.timeCol)
		}
		axis, err = timeaxis.ResolveColumn(tcol, table.Len(), timeaxis.Encoding{
			Kind:   timeaxis.Kind(o.timeKind),
			Format: o.timeFmt,
			Column: o.timeCol,
		})
		if err != nil {
			return nil, err
		}
	}

	changePoints := make([]int, len(res.Bounds))
	for i, b := range res.Bounds {
		changePoints[i] = res.Segment.Offset + b
	}
	return &runReport{
		Rows:         table.Len(),
		Target:       o.target,
		Strategy:     o.strategy,
		ChangePoints: changePoints,
		SegmentStart: res.Segment.AbsoluteStart(),
		SegmentLen:   res.Segment.Len(),
		Runs:         res.Curve.Len(),
		Model:        model.Name(),
		Samples:      stats.Samples,
		Loss:         utils.Finite(stats.FinalLoss()),
		Forecast:     utils.FiniteSlice(values),
		Time:         timeaxis.Labels(timeaxis.Extrapolate(axis, len(values))),
	}, nil
}
