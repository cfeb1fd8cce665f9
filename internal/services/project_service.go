package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/queue"
	"github.com/chaoscast/chaoscast/internal/storage"
)

// DefaultProjectName is used when a project is created without a name
const DefaultProjectName = "New project"

// ProjectService manages the project lifecycle
type ProjectService struct {
	logger      *logging.Logger
	store       storage.Store
	events      *queue.Emitter
	projectsDir string
}

// NewProjectService creates a new ProjectService. projectsDir holds the
// per-project files (uploaded data and model artifacts).
func NewProjectService(logger *logging.Logger, store storage.Store, events *queue.Emitter, projectsDir string) *ProjectService {
	if events == nil {
		events = queue.NewEmitter(nil, "", logger)
	}
	return &ProjectService{
		logger:      logger,
		store:       store,
		events:      events,
		projectsDir: projectsDir,
	}
}

// ProjectUpdate holds the editable project fields; nil fields are unchanged
type ProjectUpdate struct {
	Name        *string
	Description *string
}

// Create creates a project with status new
func (s *ProjectService) Create(ctx context.Context, name, description string) (*storage.Project, error) {
	now := time.Now().UTC()
	p := &storage.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Status:      storage.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Name == "" {
		p.Name = DefaultProjectName
	}

	if err := s.store.PutProject(ctx, p); err != nil {
		return nil, classify(err, CodeStorageError)
	}

	s.logger.Info("Project created", "project_id", p.ID, "name", p.Name)
	_ = s.events.Emit(ctx, queue.Event{Type: queue.EventProjectCreated, ProjectID: p.ID, Status: p.Status})
	return p, nil
}

// List returns all projects, newest first
func (s *ProjectService) List(ctx context.Context) ([]*storage.Project, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, classify(err, CodeStorageError)
	}
	return projects, nil
}

// Get returns one project
func (s *ProjectService) Get(ctx context.Context, id string) (*storage.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, classify(err, CodeStorageError)
	}
	return p, nil
}

// Update changes the name or description of a project
func (s *ProjectService) Update(ctx context.Context, id string, upd ProjectUpdate) (*storage.Project, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		p.Name = strings.TrimSpace(*upd.Name)
		if p.Name == "" {
			p.Name = DefaultProjectName
		}
	}
	if upd.Description != nil {
		p.Description = strings.TrimSpace(*upd.Description)
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.store.PutProject(ctx, p); err != nil {
		return nil, classify(err, CodeStorageError)
	}
	return p, nil
}

// Delete removes a project, its snapshot and its files
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return classify(err, CodeStorageError)
	}

	if storage.ValidID(id) && s.projectsDir != "" {
		if err := os.RemoveAll(filepath.Join(s.projectsDir, id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove project files", "project_id", id, "error", err)
		}
	}

	s.logger.Info("Project deleted", "project_id", id)
	_ = s.events.Emit(ctx, queue.Event{Type: queue.EventProjectDeleted, ProjectID: id})
	return nil
}

// Snapshot returns the stored stage results of a project
func (s *ProjectService) Snapshot(ctx context.Context, id string) (storage.Snapshot, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	snap, err := s.store.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, classify(err, CodeStorageError)
	}
	return snap, nil
}
