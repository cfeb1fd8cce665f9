package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chaoscast/chaoscast/internal/analytics"
	"github.com/chaoscast/chaoscast/internal/analytics/changepoint"
	"github.com/chaoscast/chaoscast/internal/analytics/duration"
	"github.com/chaoscast/chaoscast/internal/analytics/forecast"
	"github.com/chaoscast/chaoscast/internal/analytics/preprocess"
	"github.com/chaoscast/chaoscast/internal/analytics/timeaxis"
	"github.com/chaoscast/chaoscast/internal/config"
	"github.com/chaoscast/chaoscast/internal/ingest"
	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/metrics"
	"github.com/chaoscast/chaoscast/internal/queue"
	"github.com/chaoscast/chaoscast/internal/storage"
	"github.com/chaoscast/chaoscast/internal/utils"
)

// Snapshot sections, one per pipeline stage
const (
	SectionPreview    = "preview"
	SectionSelection  = "selection"
	SectionSample     = "sample"
	SectionPreprocess = "preprocess"
	SectionTrain      = "train"
	SectionForecast   = "forecast"
)

// PipelineService runs the upload, select, preprocess, train and forecast
// stages of a project
type PipelineService struct {
	logger      *logging.Logger
	store       storage.Store
	events      *queue.Emitter
	metrics     *metrics.Recorder
	engine      *forecast.Engine
	analytics   config.AnalyticsConfig
	model       config.ModelConfig
	projectsDir string
}

// NewPipelineService creates a new PipelineService. events and rec may be nil.
func NewPipelineService(
	logger *logging.Logger,
	store storage.Store,
	events *queue.Emitter,
	rec *metrics.Recorder,
	cfg *config.Config,
) *PipelineService {
	if events == nil {
		events = queue.NewEmitter(nil, "", logger)
	}
	return &PipelineService{
		logger:      logger,
		store:       store,
		events:      events,
		metrics:     rec,
		engine:      forecast.NewEngine(logger),
		analytics:   cfg.Analytics,
		model:       cfg.Model,
		projectsDir: cfg.ProjectsDir(),
	}
}

// UploadResult is returned by Upload
type UploadResult struct {
	Project *storage.Project `json:"project"`
	Preview ingest.Preview   `json:"preview"`
}

// SelectRequest chooses the target and feature columns
type SelectRequest struct {
	Target   string
	Features []string
	// Limit caps the sampled rows (default analytics.sample_limit)
	Limit int
}

// SelectResult is returned by Select
type SelectResult struct {
	Project *storage.Project    `json:"project"`
	Sample  ingest.SampleResult `json:"data"`
}

// PreprocessRequest overrides the configured analytics defaults. Zero values
// keep the default.
type PreprocessRequest struct {
	Target           string
	Strategy         string
	BackWindow       int
	SegmentLength    int
	Tolerance        float64
	Drift            *float64
	Threshold        float64
	ReestimateWindow int
	Baseline         string
	FractalWindow    int
	// Time resolves the display axis; nil gives a row-index axis
	Time *timeaxis.Encoding
}

// SegmentView locates the selected segment
type SegmentView struct {
	// Start is the first row in source-table coordinates
	Start  int `json:"start"`
	Length int `json:"length"`
	// Offset is the first row of the analyzed window
	Offset int `json:"offset"`
	// RelativeStart is Start relative to Offset
	RelativeStart int `json:"relative_start"`
}

// PreprocessResult is returned by Preprocess and stored in the snapshot
type PreprocessResult struct {
	Target   string      `json:"target"`
	Strategy string      `json:"strategy"`
	Segment  SegmentView `json:"segment"`
	// Bounds are change points relative to the analyzed window
	Bounds []int `json:"bounds"`
	// ChangePoints are Bounds in source-table coordinates
	ChangePoints []int              `json:"change_points"`
	Curve        duration.Curve     `json:"curve"`
	Series       []interface{}      `json:"series"`
	Time         []interface{}      `json:"time"`
	TimeEncoding *timeaxis.Encoding `json:"time_encoding,omitempty"`
	Hurst        interface{}        `json:"hurst"`
	Fractal      []interface{}      `json:"fractal,omitempty"`
	EmptyColumns []string           `json:"empty_columns"`
}

// Upload stores a CSV file as the project data and replaces the snapshot
// with its preview. Earlier selections no longer apply and are cleared.
func (s *PipelineService) Upload(ctx context.Context, id string, r io.Reader) (res *UploadResult, err error) {
	defer s.observe(metrics.StageUpload, time.Now(), &err)

	p, err := s.project(ctx, id)
	if err != nil {
		return nil, err
	}

	dir := s.projectDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, NewServiceError(CodeStorageError, fmt.Sprintf("failed to create project directory: %v", err))
	}

	var table *analytics.Table
	path := filepath.Join(dir, utils.DataFile)
	err = writeFileAtomic(path, func(w io.Writer) error {
		tee := io.TeeReader(r, w)
		var readErr error
		table, readErr = ingest.ReadCSV(tee)
		if readErr != nil {
			return NewServiceError(CodeInvalidCSV, readErr.Error())
		}
		_, copyErr := io.Copy(io.Discard, tee)
		return copyErr
	})
	if err != nil {
		return nil, classify(err, CodeStorageError)
	}

	preview := ingest.Describe(table, utils.PreviewRows)

	p.DataPath = path
	p.Target = ""
	p.Features = nil
	if err := s.commit(ctx, p, storage.StatusUploaded, true, map[string]interface{}{
		SectionPreview: preview,
	}); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Data uploaded",
		"project_id", id,
		"rows", preview.Info.Rows,
		"columns", preview.Info.Columns)
	_ = s.events.Emit(ctx, queue.Event{
		Type:      queue.EventDataUploaded,
		ProjectID: id,
		Status:    p.Status,
		Details:   map[string]interface{}{"rows": preview.Info.Rows, "columns": preview.Info.Columns},
	})
	return &UploadResult{Project: p, Preview: preview}, nil
}

// Select records the target and feature columns and samples them for plotting.
// The target must be numeric.
func (s *PipelineService) Select(ctx context.Context, id string, req SelectRequest) (res *SelectResult, err error) {
	defer s.observe(metrics.StageSelect, time.Now(), &err)

	p, table, err := s.projectTable(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Target == "" {
		return nil, NewServiceError(CodeNoTarget, "target column is required")
	}
	if err := checkNumeric(table, req.Target); err != nil {
		return nil, err
	}

	features := make([]string, 0, len(req.Features))
	seen := map[string]bool{req.Target: true}
	for _, f := range req.Features {
		if f != "" && !seen[f] {
			seen[f] = true
			features = append(features, f)
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.analytics.SampleLimit
	}
	sample, err := ingest.Sample(table, append([]string{req.Target}, features...), limit)
	if err != nil {
		return nil, classify(err, CodeInvalidRequest)
	}

	p.Target = req.Target
	p.Features = features
	if err := s.commit(ctx, p, storage.StatusSelected, false, map[string]interface{}{
		SectionSelection: map[string]interface{}{"target": req.Target, "features": features},
		SectionSample:    sample,
	}); err != nil {
		return nil, err
	}

	_ = s.events.Emit(ctx, queue.Event{
		Type:      queue.EventColumnsSelected,
		ProjectID: id,
		Status:    p.Status,
		Details:   map[string]interface{}{"target": req.Target, "features": features},
	})
	return &SelectResult{Project: p, Sample: sample}, nil
}

// Preprocess imputes the data, selects the segment after the last change in
// the target mean and derives its change-duration curve
func (s *PipelineService) Preprocess(ctx context.Context, id string, req PreprocessRequest) (res *PreprocessResult, err error) {
	defer s.observe(metrics.StagePreprocess, time.Now(), &err)

	p, table, err := s.projectTable(ctx, id)
	if err != nil {
		return nil, err
	}
	target, err := resolveTarget(p, req.Target)
	if err != nil {
		return nil, err
	}
	if err := checkNumeric(table, target); err != nil {
		return nil, err
	}

	opts := s.preprocessOptions(req)
	out, err := preprocess.Run(table, target, opts)
	if err != nil {
		return nil, classify(err, CodeInvalidRequest)
	}

	seg := out.Segment
	view := SegmentView{
		Start:         seg.AbsoluteStart(),
		Length:        seg.Len(),
		Offset:        seg.Offset,
		RelativeStart: seg.Start,
	}

	labels, err := s.axisLabels(table, req.Time, view.Start, view.Length)
	if err != nil {
		return nil, err
	}

	col, _ := seg.Table.Column(target)
	res = &PreprocessResult{
		Target:       target,
		Strategy:     opts.Strategy,
		Segment:      view,
		Bounds:       out.Bounds,
		ChangePoints: make([]int, len(out.Bounds)),
		Curve:        out.Curve,
		Series:       utils.FiniteSlice(col.Floats),
		Time:         labels,
		TimeEncoding: req.Time,
		Hurst:        utils.Finite(changepoint.HurstExponent(col.Floats)),
		EmptyColumns: out.EmptyColumns,
	}
	for i, b := range out.Bounds {
		res.ChangePoints[i] = seg.Offset + b
	}
	if out.Fractal != nil {
		res.Fractal = utils.FiniteSlice(out.Fractal)
	}

	s.metrics.ObserveChangePoints(len(out.Bounds))

	p.Target = target
	if err := s.commit(ctx, p, storage.StatusPreprocessed, false, map[string]interface{}{
		SectionPreprocess: res,
	}); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Preprocess completed",
		"project_id", id,
		"strategy", opts.Strategy,
		"change_points", len(out.Bounds),
		"segment_start", view.Start,
		"segment_length", view.Length,
		"runs", out.Curve.Len())
	_ = s.events.Emit(ctx, queue.Event{
		Type:      queue.EventPreprocessed,
		ProjectID: id,
		Status:    p.Status,
		Details: map[string]interface{}{
			"change_points":  len(out.Bounds),
			"segment_length": view.Length,
		},
	})
	return res, nil
}

func (s *PipelineService) preprocessOptions(req PreprocessRequest) preprocess.Options {
	a := s.analytics
	opts := preprocess.Options{
		Strategy:      a.Strategy,
		BackWindow:    a.BackWindow,
		SegmentLength: a.SegmentLength,
		Tolerance:     a.Tolerance,
		Detector: changepoint.Config{
			Drift:            a.CUSUMDrift,
			Threshold:        a.CUSUMThreshold,
			ReestimateWindow: a.ReestimateWindow,
			Baseline:         changepoint.Baseline(a.Baseline),
		},
		FractalWindow: req.FractalWindow,
	}
	if req.Strategy != "" {
		opts.Strategy = req.Strategy
	}
	if opts.Strategy == "" {
		opts.Strategy = preprocess.StrategyCUSUM
	}
	if req.BackWindow > 0 {
		opts.BackWindow = req.BackWindow
	}
	if req.SegmentLength > 0 {
		opts.SegmentLength = req.SegmentLength
	}
	if req.Tolerance > 0 {
		opts.Tolerance = req.Tolerance
	}
	if req.Drift != nil {
		opts.Detector.Drift = *req.Drift
	}
	if req.Threshold > 0 {
		opts.Detector.Threshold = req.Threshold
	}
	if req.ReestimateWindow > 0 {
		opts.Detector.ReestimateWindow = req.ReestimateWindow
	}
	if req.Baseline != "" {
		opts.Detector.Baseline = changepoint.Baseline(req.Baseline)
	}
	return opts
}

// axisLabels resolves the time axis of table and returns the labels of rows
// [start, start+length)
func (s *PipelineService) axisLabels(table *analytics.Table, enc *timeaxis.Encoding, start, length int) ([]interface{}, error) {
	axis, err := resolveAxis(table, enc)
	if err != nil {
		return nil, err
	}
	return timeaxis.Labels(axis.Ticks[start : start+length]), nil
}

func resolveAxis(table *analytics.Table, enc *timeaxis.Encoding) (timeaxis.Axis, error) {
	if enc == nil {
		return timeaxis.Synthetic(table.Len()), nil
	}

	var col *analytics.Column
	if enc.Column != "" {
		c, ok := table.Column(enc.Column)
		if !ok {
			return timeaxis.Axis{}, NewServiceError(CodeUnknownColumn, fmt.Sprintf("unknown time column: %s", enc.Column))
		}
		col = c
	}
	axis, err := timeaxis.ResolveColumn(col, table.Len(), *enc)
	if err != nil {
		return timeaxis.Axis{}, classify(err, CodeInvalidRequest)
	}
	return axis, nil
}

// project loads a project, mapping a missing one to PROJECT_NOT_FOUND
func (s *PipelineService) project(ctx context.Context, id string) (*storage.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, classify(err, CodeStorageError)
	}
	return p, nil
}

// projectTable loads a project and its uploaded data
func (s *PipelineService) projectTable(ctx context.Context, id string) (*storage.Project, *analytics.Table, error) {
	p, err := s.project(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if p.DataPath == "" {
		return nil, nil, NewServiceError(CodeNoData, "no data uploaded for this project")
	}

	f, err := os.Open(p.DataPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, NewServiceError(CodeNoData, "uploaded data file is missing")
		}
		return nil, nil, NewServiceError(CodeStorageError, err.Error())
	}
	defer f.Close()

	table, err := ingest.ReadCSV(f)
	if err != nil {
		return nil, nil, NewServiceError(CodeInvalidCSV, err.Error())
	}
	return p, table, nil
}

func (s *PipelineService) projectDir(id string) string {
	return filepath.Join(s.projectsDir, id)
}

// commit stores snapshot sections and moves the project to status. With
// reset the previous snapshot is discarded.
func (s *PipelineService) commit(ctx context.Context, p *storage.Project, status string, reset bool, sections map[string]interface{}) error {
	snap := storage.Snapshot{}
	if !reset {
		loaded, err := s.store.LoadSnapshot(ctx, p.ID)
		if err != nil {
			return classify(err, CodeStorageError)
		}
		snap = loaded
	}
	for name, v := range sections {
		if err := snap.Set(name, v); err != nil {
			return NewServiceError(CodeInternal, err.Error())
		}
	}
	if err := s.store.SaveSnapshot(ctx, p.ID, snap); err != nil {
		return classify(err, CodeStorageError)
	}

	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.PutProject(ctx, p); err != nil {
		return classify(err, CodeStorageError)
	}
	return nil
}

// observe records the stage outcome; err points at the named return value
func (s *PipelineService) observe(stage string, start time.Time, err *error) {
	code := ""
	if *err != nil {
		code = CodeInternal
		var svcErr *ServiceError
		if errors.As(*err, &svcErr) {
			code = svcErr.Code
		}
	}
	s.metrics.ObserveStage(stage, start, code)
}

func resolveTarget(p *storage.Project, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if p.Target == "" {
		return "", NewServiceError(CodeNoTarget, "no target column selected")
	}
	return p.Target, nil
}

func checkNumeric(table *analytics.Table, name string) error {
	col, ok := table.Column(name)
	if !ok {
		return NewServiceErrorWithDetails(CodeUnknownColumn, fmt.Sprintf("unknown column: %s", name),
			map[string]interface{}{"columns": table.Names()})
	}
	if !col.Numeric {
		return NewServiceError(CodeInvalidRequest, fmt.Sprintf("column %s is not numeric", name))
	}
	return nil
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place when write succeeds
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
