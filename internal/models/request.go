package models

import "github.com/chaoscast/chaoscast/internal/analytics/timeaxis"

// CreateProjectRequest represents create project request
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"max=128"`
	Description string `json:"description,omitempty" validate:"max=1024"`
}

// UpdateProjectRequest represents update project request; omitted fields are
// left unchanged
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=128"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1024"`
}

// SelectColumnsRequest chooses the target and feature columns
type SelectColumnsRequest struct {
	Target   string   `json:"target" validate:"required"`
	Features []string `json:"features,omitempty"`
	Limit    int      `json:"limit,omitempty" validate:"gte=0"`
}

// TimeEncodingRequest describes the time column
type TimeEncodingRequest struct {
	Kind   string `json:"kind" validate:"required"`
	Format string `json:"format,omitempty"`
	Column string `json:"column,omitempty"`
}

// Encoding converts the request into a timeaxis encoding
func (r *TimeEncodingRequest) Encoding() *timeaxis.Encoding {
	if r == nil {
		return nil
	}
	return &timeaxis.Encoding{Kind: timeaxis.Kind(r.Kind), Format: r.Format, Column: r.Column}
}

// PreprocessRequest represents preprocess request. Omitted fields use the
// server defaults.
type PreprocessRequest struct {
	Target           string               `json:"target,omitempty"`
	Strategy         string               `json:"strategy,omitempty"`
	BackWindow       int                  `json:"back_window,omitempty" validate:"gte=0"`
	SegmentLength    int                  `json:"segment_length,omitempty" validate:"gte=0"`
	Tolerance        float64              `json:"tolerance,omitempty" validate:"gte=0"`
	Drift            *float64             `json:"drift,omitempty"`
	Threshold        float64              `json:"threshold,omitempty" validate:"gte=0"`
	ReestimateWindow int                  `json:"reestimate_window,omitempty" validate:"gte=0"`
	Baseline         string               `json:"baseline,omitempty" validate:"omitempty,oneof=running global"`
	FractalWindow    int                  `json:"fractal_window,omitempty" validate:"gte=0"`
	Time             *TimeEncodingRequest `json:"time,omitempty"`
}

// TrainRequest represents train request. Omitted fields use the server
// defaults.
type TrainRequest struct {
	Target       string  `json:"target,omitempty"`
	Model        string  `json:"model,omitempty"`
	Window       int     `json:"window,omitempty" validate:"gte=0"`
	Horizon      int     `json:"horizon,omitempty" validate:"gte=0"`
	Epochs       int     `json:"epochs,omitempty" validate:"gte=0,lte=10000"`
	BatchSize    int     `json:"batch_size,omitempty" validate:"gte=0"`
	LearningRate float64 `json:"learning_rate,omitempty" validate:"gte=0,lte=1"`
	Seed         *int64  `json:"seed,omitempty"`
	Source       string  `json:"source,omitempty" validate:"omitempty,oneof=full segment"`
}

// ForecastRequest represents forecast request
type ForecastRequest struct {
	// Steps defaults to 1 when omitted; 0 yields an empty forecast
	Steps   *int                 `json:"steps,omitempty" validate:"omitempty,gte=0,lte=10000"`
	Context int                  `json:"context,omitempty" validate:"gte=0"`
	Holdout int                  `json:"holdout,omitempty" validate:"gte=0"`
	Time    *TimeEncodingRequest `json:"time,omitempty"`
}
