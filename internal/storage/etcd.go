package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/chaoscast/chaoscast/internal/compression"
)

// EtcdStoreConfig configures the etcd connection
type EtcdStoreConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	Username    string
	Password    string
	// Prefix roots every key, e.g. /chaoscast
	Prefix string
	// CacheTTL bounds how long project reads are served from memory
	CacheTTL time.Duration
}

// EtcdStore keeps projects under <prefix>/projects/<id> and snapshots under
// <prefix>/snapshots/<id>
type EtcdStore struct {
	client *clientv3.Client
	prefix string
	codec  compression.Compressor
	cache  *kvCache
}

// NewEtcdStore connects to etcd
func NewEtcdStore(cfg EtcdStoreConfig, codec compression.Compressor) (*EtcdStore, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/chaoscast"
	}
	if codec == nil {
		codec = &compression.NoneCompressor{}
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &EtcdStore{
		client: client,
		prefix: cfg.Prefix,
		codec:  codec,
		cache:  newKVCache(cfg.CacheTTL),
	}, nil
}

func (s *EtcdStore) projectsPrefix() string       { return path.Join(s.prefix, "projects") + "/" }
func (s *EtcdStore) projectKey(id string) string  { return path.Join(s.prefix, "projects", id) }
func (s *EtcdStore) snapshotKey(id string) string { return path.Join(s.prefix, "snapshots", id) }

func (s *EtcdStore) ListProjects(ctx context.Context) ([]*Project, error) {
	resp, err := s.client.Get(ctx, s.projectsPrefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list projects from etcd: %w", err)
	}

	projects := make([]*Project, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		p, err := decodeProject(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", strings.TrimPrefix(string(kv.Key), s.projectsPrefix()), err)
		}
		projects = append(projects, p)
	}
	sortNewestFirst(projects)
	return projects, nil
}

func (s *EtcdStore) GetProject(ctx context.Context, id string) (*Project, error) {
	key := s.projectKey(id)
	if cached, ok := s.cache.get(key); ok {
		if p, err := decodeProject(cached); err == nil {
			return p, nil
		}
	}

	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get project from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, notFound(id)
	}

	p, err := decodeProject(resp.Kvs[0].Value)
	if err != nil {
		return nil, err
	}
	s.cache.set(key, resp.Kvs[0].Value)
	return p, nil
}

func (s *EtcdStore) PutProject(ctx context.Context, p *Project) error {
	value, err := s.encode(p)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	key := s.projectKey(p.ID)
	if _, err := s.client.Put(ctx, key, string(value)); err != nil {
		return fmt.Errorf("failed to store project in etcd: %w", err)
	}
	s.cache.set(key, value)
	return nil
}

func (s *EtcdStore) DeleteProject(ctx context.Context, id string) error {
	key := s.projectKey(id)
	s.cache.delete(key)

	resp, err := s.client.Txn(ctx).Then(
		clientv3.OpDelete(key),
		clientv3.OpDelete(s.snapshotKey(id)),
	).Commit()
	if err != nil {
		return fmt.Errorf("failed to delete project from etcd: %w", err)
	}
	if len(resp.Responses) == 0 || resp.Responses[0].GetResponseDeleteRange().Deleted == 0 {
		return notFound(id)
	}
	return nil
}

func (s *EtcdStore) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	resp, err := s.client.Get(ctx, s.snapshotKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return Snapshot{}, nil
	}
	return decodeSnapshot(resp.Kvs[0].Value)
}

func (s *EtcdStore) SaveSnapshot(ctx context.Context, id string, snap Snapshot) error {
	value, err := s.encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if _, err := s.client.Put(ctx, s.snapshotKey(id), string(value)); err != nil {
		return fmt.Errorf("failed to store snapshot in etcd: %w", err)
	}
	return nil
}

func (s *EtcdStore) Close() error {
	s.cache.stop()
	return s.client.Close()
}

func (s *EtcdStore) encode(v interface{}) ([]byte, error) {
	return encodeValue(s.codec, v)
}
