package models

import (
	"time"

	"github.com/chaoscast/chaoscast/internal/storage"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ProjectResponse represents project metadata response
type ProjectResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Target      string   `json:"target,omitempty"`
	Features    []string `json:"features,omitempty"`
	Model       string   `json:"model,omitempty"`
	Window      int      `json:"window,omitempty"`
	Horizon     int      `json:"horizon,omitempty"`
	HasData     bool     `json:"has_data"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// NewProjectResponse converts a stored project
func NewProjectResponse(p *storage.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		Target:      p.Target,
		Features:    p.Features,
		Model:       p.Model,
		Window:      p.Window,
		Horizon:     p.Horizon,
		HasData:     p.DataPath != "",
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

// ProjectListResponse represents list projects response
type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
	Count    int               `json:"count"`
}

// UploadResponse represents upload response
type UploadResponse struct {
	Project ProjectResponse `json:"project"`
	Preview interface{}     `json:"preview"`
}

// StageResponse wraps the result of a pipeline stage
type StageResponse struct {
	ProjectID string      `json:"project_id"`
	Status    string      `json:"status"`
	Result    interface{} `json:"result"`
}

// SnapshotResponse represents the stored stage results of a project
type SnapshotResponse struct {
	Project  ProjectResponse  `json:"project"`
	Snapshot storage.Snapshot `json:"snapshot"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
