package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/chaoscast/chaoscast/internal/analytics"
	"github.com/chaoscast/chaoscast/internal/analytics/forecast"
	"github.com/chaoscast/chaoscast/internal/analytics/predictor"
	"github.com/chaoscast/chaoscast/internal/analytics/preprocess"
	"github.com/chaoscast/chaoscast/internal/analytics/timeaxis"
	"github.com/chaoscast/chaoscast/internal/metrics"
	"github.com/chaoscast/chaoscast/internal/queue"
	"github.com/chaoscast/chaoscast/internal/storage"
	"github.com/chaoscast/chaoscast/internal/utils"
)

// Training data sources
const (
	SourceFull    = "full"
	SourceSegment = "segment"
)

// TrainRequest overrides the configured model defaults. Zero values keep the
// default.
type TrainRequest struct {
	Target       string
	Model        string
	Window       int
	Horizon      int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         *int64
	// Source is "full" (default) or "segment", the preprocessed segment
	Source string
}

// TrainResult is returned by Train and stored in the snapshot
type TrainResult struct {
	Target       string        `json:"target"`
	Model        string        `json:"model"`
	Window       int           `json:"window"`
	Horizon      int           `json:"horizon"`
	Epochs       int           `json:"epochs"`
	BatchSize    int           `json:"batch_size"`
	LearningRate float64       `json:"learning_rate"`
	Seed         int64         `json:"seed"`
	Source       string        `json:"source"`
	Samples      int           `json:"samples"`
	Loss         []interface{} `json:"loss"`
	FinalLoss    interface{}   `json:"final_loss"`
	Prediction   []interface{} `json:"prediction"`
	// Continued is set when training resumed from a saved model
	Continued bool      `json:"continued"`
	TrainedAt time.Time `json:"trained_at"`
}

// ForecastRequest describes a forecast run
type ForecastRequest struct {
	// Steps is the number of predictor invocations; nil means 1
	Steps   *int
	Context int
	// Holdout withholds the last Holdout values and scores a forecast of them
	Holdout int
	// Time overrides the encoding saved by Preprocess
	Time *timeaxis.Encoding
}

// HistoryView is the tail of the observed series
type HistoryView struct {
	Time   []interface{} `json:"time"`
	Values []interface{} `json:"values"`
}

// AccuracyView reports holdout accuracy
type AccuracyView struct {
	Holdout   int           `json:"holdout"`
	MAE       interface{}   `json:"mae"`
	RMSE      interface{}   `json:"rmse"`
	MAPE      interface{}   `json:"mape"`
	Predicted []interface{} `json:"predicted"`
}

// ForecastResult is returned by Forecast and stored in the snapshot
type ForecastResult struct {
	Target   string        `json:"target"`
	Model    string        `json:"model"`
	Window   int           `json:"window"`
	Horizon  int           `json:"horizon"`
	Steps    int           `json:"steps"`
	Context  int           `json:"context"`
	Values   []interface{} `json:"values"`
	Time     []interface{} `json:"time"`
	History  HistoryView   `json:"history"`
	Accuracy *AccuracyView `json:"accuracy,omitempty"`
}

// Train fits the project model on the target series and saves it. A saved
// model of the same architecture and shape is trained further instead of
// starting over.
func (s *PipelineService) Train(ctx context.Context, id string, req TrainRequest) (res *TrainResult, err error) {
	defer s.observe(metrics.StageTrain, time.Now(), &err)

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

	res = s.trainDefaults(req)
	res.Target = target

	series, err := s.trainingSeries(ctx, id, table, target, res.Source)
	if err != nil {
		return nil, err
	}
	inputs, targets, err := predictor.MakeDataset(series, res.Window, res.Horizon)
	if err != nil {
		return nil, classify(err, CodeInvalidRequest)
	}

	modelPath := filepath.Join(s.projectDir(id), utils.ModelFile)
	model, continued, err := s.loadOrCreate(modelPath, res)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, NewServiceError(CodeInternal, fmt.Sprintf("training cancelled: %v", err))
	}

	stats, err := model.Fit(inputs, targets, predictor.TrainConfig{
		Epochs:       res.Epochs,
		BatchSize:    res.BatchSize,
		LearningRate: res.LearningRate,
		Seed:         res.Seed,
	})
	if errors.Is(err, predictor.ErrDiverged) {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, err.Error(), map[string]interface{}{
			"learning_rate": res.LearningRate,
			"loss":          utils.FiniteSlice(stats.Loss),
		})
	}
	if err != nil {
		return nil, classify(err, CodeInvalidRequest)
	}

	if err := os.MkdirAll(s.projectDir(id), 0755); err != nil {
		return nil, NewServiceError(CodeStorageError, err.Error())
	}
	if err := writeFileAtomic(modelPath, model.Save); err != nil {
		return nil, NewServiceError(CodeStorageError, fmt.Sprintf("failed to save model: %v", err))
	}

	prediction, err := model.Predict(series[len(series)-res.Window:])
	if err != nil {
		return nil, NewServiceError(CodeInternal, err.Error())
	}

	res.Samples = stats.Samples
	res.Loss = utils.FiniteSlice(stats.Loss)
	res.FinalLoss = utils.Finite(stats.FinalLoss())
	res.Prediction = utils.FiniteSlice(prediction)
	res.Continued = continued
	res.TrainedAt = time.Now().UTC()

	if err := writeFileAtomic(filepath.Join(s.projectDir(id), utils.TrainMetaFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}); err != nil {
		return nil, NewServiceError(CodeStorageError, err.Error())
	}

	s.metrics.SetTrainLoss(res.Model, stats.FinalLoss())

	p.Target = target
	p.Model = res.Model
	p.Window = res.Window
	p.Horizon = res.Horizon
	if err := s.commit(ctx, p, storage.StatusTrained, false, map[string]interface{}{
		SectionTrain: res,
	}); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Model trained",
		"project_id", id,
		"model", res.Model,
		"samples", res.Samples,
		"epochs", res.Epochs,
		"loss", stats.FinalLoss(),
		"continued", continued)
	_ = s.events.Emit(ctx, queue.Event{
		Type:      queue.EventModelTrained,
		ProjectID: id,
		Status:    p.Status,
		Details:   map[string]interface{}{"model": res.Model, "loss": res.FinalLoss},
	})
	return res, nil
}

func (s *PipelineService) trainDefaults(req TrainRequest) *TrainResult {
	m := s.model
	res := &TrainResult{
		Model:        m.Type,
		Window:       m.Window,
		Horizon:      m.Horizon,
		Epochs:       m.Epochs,
		BatchSize:    m.BatchSize,
		LearningRate: m.LearningRate,
		Seed:         m.Seed,
		Source:       SourceFull,
	}
	if req.Model != "" {
		res.Model = req.Model
	}
	if req.Window > 0 {
		res.Window = req.Window
	}
	if req.Horizon > 0 {
		res.Horizon = req.Horizon
	}
	if req.Epochs > 0 {
		res.Epochs = req.Epochs
	}
	if req.BatchSize > 0 {
		res.BatchSize = req.BatchSize
	}
	if req.LearningRate > 0 {
		res.LearningRate = req.LearningRate
	}
	if req.Seed != nil {
		res.Seed = *req.Seed
	}
	if req.Source != "" {
		res.Source = req.Source
	}
	return res
}

// trainingSeries returns the imputed target values of the whole table or of
// the preprocessed segment
func (s *PipelineService) trainingSeries(ctx context.Context, id string, table *analytics.Table, target, source string) ([]float64, error) {
	series, err := targetSeries(table, target)
	if err != nil {
		return nil, err
	}

	switch source {
	case SourceFull:
		return series, nil
	case SourceSegment:
		var pre PreprocessResult
		ok, err := s.section(ctx, id, SectionPreprocess, &pre)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, NewServiceError(CodeInvalidRequest, "segment source requires a preprocessed project")
		}
		if pre.Target != target {
			return nil, NewServiceError(CodeInvalidRequest,
				fmt.Sprintf("project was preprocessed for %s, not %s", pre.Target, target))
		}
		start, end := pre.Segment.Start, pre.Segment.Start+pre.Segment.Length
		if start < 0 || end > len(series) {
			return nil, NewServiceError(CodeInvalidRequest, "preprocessed segment no longer matches the data")
		}
		return series[start:end], nil
	default:
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, fmt.Sprintf("unknown training source: %s", source),
			map[string]interface{}{"available_sources": []string{SourceFull, SourceSegment}})
	}
}

// loadOrCreate continues a compatible saved model or creates a fresh one
func (s *PipelineService) loadOrCreate(path string, res *TrainResult) (predictor.Predictor, bool, error) {
	if f, err := os.Open(path); err == nil {
		saved, loadErr := predictor.Load(f, res.Window, res.Horizon)
		f.Close()
		if loadErr == nil && saved.Name() == res.Model {
			return saved, true, nil
		}
		if loadErr != nil && !errors.Is(loadErr, predictor.ErrModelIncompatible) {
			s.logger.Warn("Discarding unreadable model", "path", path, "error", loadErr.Error())
		}
	}

	model, err := predictor.New(res.Model, res.Window, res.Horizon, res.Seed)
	if err != nil {
		return nil, false, classify(err, CodeInvalidRequest)
	}
	return model, false, nil
}

// Forecast extends the target series with the trained model and labels the
// new values on the project time axis
func (s *PipelineService) Forecast(ctx context.Context, id string, req ForecastRequest) (res *ForecastResult, err error) {
	defer s.observe(metrics.StageForecast, time.Now(), &err)

	p, table, err := s.projectTable(ctx, id)
	if err != nil {
		return nil, err
	}
	target, err := resolveTarget(p, "")
	if err != nil {
		return nil, err
	}
	if err := checkNumeric(table, target); err != nil {
		return nil, err
	}

	model, err := s.loadModel(id)
	if err != nil {
		return nil, err
	}

	steps := 1
	if req.Steps != nil {
		steps = *req.Steps
	}
	if steps < 0 {
		return nil, NewServiceError(CodeInvalidRequest, "steps must not be negative")
	}
	if req.Context < 0 || req.Holdout < 0 {
		return nil, NewServiceError(CodeInvalidRequest, "context and holdout must not be negative")
	}

	series, err := targetSeries(table, target)
	if err != nil {
		return nil, err
	}

	fr := forecast.Request{
		Window:  model.Window(),
		Horizon: model.Horizon(),
		Steps:   steps,
		Context: req.Context,
	}
	values, err := s.engine.Forecast(series, model, fr)
	if err != nil {
		return nil, classify(err, CodeInvalidRequest)
	}

	enc := req.Time
	if enc == nil {
		var pre PreprocessResult
		if ok, err := s.section(ctx, id, SectionPreprocess, &pre); err != nil {
			return nil, err
		} else if ok {
			enc = pre.TimeEncoding
		}
	}
	axis, err := resolveAxis(table, enc)
	if err != nil {
		return nil, err
	}

	tail := min(len(series), s.analytics.SampleLimit)
	if tail <= 0 {
		tail = len(series)
	}
	res = &ForecastResult{
		Target:  target,
		Model:   model.Name(),
		Window:  model.Window(),
		Horizon: model.Horizon(),
		Steps:   steps,
		Context: req.Context,
		Values:  utils.FiniteSlice(values),
		Time:    timeaxis.Labels(timeaxis.Extrapolate(axis, len(values))),
		History: HistoryView{
			Time:   timeaxis.Labels(axis.Ticks[len(series)-tail:]),
			Values: utils.FiniteSlice(series[len(series)-tail:]),
		},
	}

	if req.Holdout > 0 {
		acc, err := s.holdout(series, model, fr, req.Holdout)
		if err != nil {
			return nil, err
		}
		res.Accuracy = acc
	}

	s.metrics.AddForecastPoints(len(values))

	if err := s.commit(ctx, p, storage.StatusForecasted, false, map[string]interface{}{
		SectionForecast: res,
	}); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Forecast completed",
		"project_id", id,
		"model", res.Model,
		"steps", steps,
		"points", len(values))
	_ = s.events.Emit(ctx, queue.Event{
		Type:      queue.EventForecasted,
		ProjectID: id,
		Status:    p.Status,
		Details:   map[string]interface{}{"points": len(values)},
	})
	return res, nil
}

// holdout forecasts the last h values from the series before them and scores
// the result
func (s *PipelineService) holdout(series []float64, model predictor.Predictor, fr forecast.Request, h int) (*AccuracyView, error) {
	if h >= len(series) {
		return nil, NewServiceError(CodeInvalidRequest,
			fmt.Sprintf("holdout %d must be smaller than the series length %d", h, len(series)))
	}
	fr.Steps = int(math.Ceil(float64(h) / float64(fr.Horizon)))
	predicted, err := s.engine.Forecast(series[:len(series)-h], model, fr)
	if err != nil {
		return nil, classify(err, CodeInvalidRequest)
	}
	predicted = predicted[:h]

	acc := forecast.Evaluate(series[len(series)-h:], predicted)
	return &AccuracyView{
		Holdout:   h,
		MAE:       utils.Finite(acc.MAE),
		RMSE:      utils.Finite(acc.RMSE),
		MAPE:      utils.Finite(acc.MAPE),
		Predicted: utils.FiniteSlice(predicted),
	}, nil
}

func (s *PipelineService) loadModel(id string) (predictor.Predictor, error) {
	f, err := os.Open(filepath.Join(s.projectDir(id), utils.ModelFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewServiceError(CodeModelNotTrained, "no trained model for this project")
		}
		return nil, NewServiceError(CodeStorageError, err.Error())
	}
	defer f.Close()

	model, err := predictor.Load(f, 0, 0)
	if err != nil {
		return nil, classify(err, CodeStorageError)
	}
	return model, nil
}

// section reads one snapshot section into v
func (s *PipelineService) section(ctx context.Context, id, name string, v interface{}) (bool, error) {
	snap, err := s.store.LoadSnapshot(ctx, id)
	if err != nil {
		return false, classify(err, CodeStorageError)
	}
	ok, err := snap.Get(name, v)
	if err != nil {
		return false, NewServiceError(CodeStorageError, fmt.Sprintf("corrupt %s section: %v", name, err))
	}
	return ok, nil
}

// targetSeries returns the imputed values of a numeric column
func targetSeries(table *analytics.Table, target string) ([]float64, error) {
	imputed, empty := preprocess.Impute(table.Select(target))
	if len(empty) > 0 {
		return nil, NewServiceError(CodeNoData, fmt.Sprintf("column %s has no values", target))
	}
	col, _ := imputed.Column(target)
	return col.Floats, nil
}
