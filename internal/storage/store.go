// Package storage persists projects and their snapshots.
//
// A project is a small metadata record; its snapshot is one JSON document
// with a section per pipeline stage (preview, selection, sample, preprocess,
// train, forecast). Both are read and replaced whole, last writer wins.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/chaoscast/chaoscast/internal/compression"
	"github.com/chaoscast/chaoscast/internal/config"
)

var ErrNotFound = errors.New("project not found")

// Project statuses in lifecycle order
const (
	StatusNew          = "new"
	StatusUploaded     = "uploaded"
	StatusSelected     = "selected"
	StatusPreprocessed = "preprocessed"
	StatusTrained      = "trained"
	StatusForecasted   = "forecasted"
)

// Project is the metadata record of one analysis project
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	DataPath    string    `json:"data_path,omitempty"`
	Target      string    `json:"target,omitempty"`
	Features    []string  `json:"features,omitempty"`
	Model       string    `json:"model,omitempty"`
	Window      int       `json:"window,omitempty"`
	Horizon     int       `json:"horizon,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no slices with p
func (p *Project) Clone() *Project {
	out := *p
	out.Features = append([]string(nil), p.Features...)
	return &out
}

// Snapshot holds the JSON section written by each pipeline stage
type Snapshot map[string]json.RawMessage

// Set replaces a section
func (s Snapshot) Set(section string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot section %s: %w", section, err)
	}
	s[section] = data
	return nil
}

// Get decodes a section into v and reports whether it was present
func (s Snapshot) Get(section string, v interface{}) (bool, error) {
	data, ok := s[section]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to unmarshal snapshot section %s: %w", section, err)
	}
	return true, nil
}

// Store persists projects and snapshots. Implementations are safe for
// concurrent use.
type Store interface {
	// ListProjects returns all projects, newest first
	ListProjects(ctx context.Context) ([]*Project, error)
	// GetProject returns ErrNotFound for unknown ids
	GetProject(ctx context.Context, id string) (*Project, error)
	// PutProject creates or replaces a project
	PutProject(ctx context.Context, p *Project) error
	// DeleteProject removes a project and its snapshot
	DeleteProject(ctx context.Context, id string) error
	// LoadSnapshot returns an empty snapshot when none was saved
	LoadSnapshot(ctx context.Context, id string) (Snapshot, error)
	SaveSnapshot(ctx context.Context, id string, snap Snapshot) error
	Close() error
}

// New creates the store selected by cfg.Storage.Type
func New(cfg *config.Config) (Store, error) {
	algo, err := compression.ParseAlgorithm(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}
	codec, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "file", "":
		return NewFileStore(cfg.Storage.DataDir)
	case "redis":
		return NewRedisStore(cfg.Storage.RedisURL, cfg.Storage.RedisPrefix, codec)
	case "etcd":
		return NewEtcdStore(EtcdStoreConfig{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.Etcd.DialTimeout,
			Username:    cfg.Etcd.Username,
			Password:    cfg.Etcd.Password,
			Prefix:      cfg.Storage.EtcdPrefix,
		}, codec)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// ValidID reports whether id is a well-formed project id
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// sortNewestFirst orders projects by creation time, newest first
func sortNewestFirst(projects []*Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
