package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps everything in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	projects  map[string]*Project
	snapshots map[string]Snapshot
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:  make(map[string]*Project),
		snapshots: make(map[string]Snapshot),
	}
}

func (s *MemoryStore) ListProjects(ctx context.Context) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) GetProject(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, notFound(id)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) PutProject(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return notFound(id)
	}
	delete(s.projects, id)
	delete(s.snapshots, id)
	return nil
}

func (s *MemoryStore) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copySnapshot(s.snapshots[id]), nil
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, id string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[id] = copySnapshot(snap)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copySnapshot(snap Snapshot) Snapshot {
	out := make(Snapshot, len(snap))
	for k, v := range snap {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
