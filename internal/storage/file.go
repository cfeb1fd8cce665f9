package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chaoscast/chaoscast/internal/utils"
)

// FileStore keeps the project list in <dir>/projects.json and each snapshot
// in <dir>/projects/<id>/snapshot.json. Writes go through a temp file and a
// rename so readers never see a partial document.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "projects"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// ProjectDir returns the directory holding the files of project id
func (s *FileStore) ProjectDir(id string) string {
	return filepath.Join(s.dir, "projects", id)
}

func (s *FileStore) listPath() string {
	return filepath.Join(s.dir, utils.ProjectsFile)
}

func (s *FileStore) snapshotPath(id string) string {
	return filepath.Join(s.ProjectDir(id), utils.SnapshotFile)
}

// readAll returns the stored projects; a missing file is an empty list
func (s *FileStore) readAll() ([]*Project, error) {
	data, err := os.ReadFile(s.listPath())
	if errors.Is(err, os.ErrNotExist) {
		return []*Project{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project list: %w", err)
	}

	var projects []*Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse project list: %w", err)
	}
	return projects, nil
}

func (s *FileStore) writeAll(projects []*Project) error {
	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project list: %w", err)
	}
	return writeFileAtomic(s.listPath(), data)
}

func (s *FileStore) ListProjects(ctx context.Context) ([]*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.readAll()
	if err != nil {
		return nil, err
	}
	sortNewestFirst(projects)
	return projects, nil
}

func (s *FileStore) GetProject(ctx context.Context, id string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, notFound(id)
}

func (s *FileStore) PutProject(ctx context.Context, p *Project) error {
	if !ValidID(p.ID) {
		return fmt.Errorf("invalid project id: %q", p.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.readAll()
	if err != nil {
		return err
	}

	replaced := false
	for i := range projects {
		if projects[i].ID == p.ID {
			projects[i] = p.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		projects = append(projects, p.Clone())
	}
	return s.writeAll(projects)
}

func (s *FileStore) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.readAll()
	if err != nil {
		return err
	}

	kept := projects[:0]
	for _, p := range projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(projects) {
		return notFound(id)
	}
	if err := s.writeAll(kept); err != nil {
		return err
	}
	if ValidID(id) {
		if err := os.RemoveAll(s.ProjectDir(id)); err != nil {
			return fmt.Errorf("failed to remove project files: %w", err)
		}
	}
	return nil
}

func (s *FileStore) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	if !ValidID(id) {
		return nil, notFound(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.snapshotPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snap := Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return snap, nil
}

func (s *FileStore) SaveSnapshot(ctx context.Context, id string, snap Snapshot) error {
	if !ValidID(id) {
		return fmt.Errorf("invalid project id: %q", id)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.ProjectDir(id), 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}
	return writeFileAtomic(s.snapshotPath(id), data)
}

func (s *FileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
