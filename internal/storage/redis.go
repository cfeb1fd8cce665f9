package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/chaoscast/chaoscast/internal/compression"
)

// RedisStore keeps projects and snapshots as compressed JSON values. The
// sorted set <prefix>:projects indexes project ids by creation time.
type RedisStore struct {
	client *redis.Client
	prefix string
	codec  compression.Compressor
}

// NewRedisStore connects to the redis server at url (redis://host:port/db)
func NewRedisStore(url, prefix string, codec compression.Compressor) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), prefix, codec), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string, codec compression.Compressor) *RedisStore {
	if codec == nil {
		codec = &compression.NoneCompressor{}
	}
	return &RedisStore{client: client, prefix: strings.TrimSuffix(prefix, ":"), codec: codec}
}

func (s *RedisStore) indexKey() string             { return s.prefix + ":projects" }
func (s *RedisStore) projectKey(id string) string  { return s.prefix + ":project:" + id }
func (s *RedisStore) snapshotKey(id string) string { return s.prefix + ":snapshot:" + id }

func (s *RedisStore) encode(v interface{}) ([]byte, error) {
	return encodeValue(s.codec, v)
}

func (s *RedisStore) ListProjects(ctx context.Context) ([]*Project, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects from redis: %w", err)
	}
	if len(ids) == 0 {
		return []*Project{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.projectKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load projects from redis: %w", err)
	}

	projects := make([]*Project, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decodeProject([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", ids[i], err)
		}
		projects = append(projects, p)
	}
	sortNewestFirst(projects)
	return projects, nil
}

func (s *RedisStore) GetProject(ctx context.Context, id string) (*Project, error) {
	raw, err := s.client.Get(ctx, s.projectKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project from redis: %w", err)
	}
	return decodeProject(raw)
}

func (s *RedisStore) PutProject(ctx context.Context, p *Project) error {
	value, err := s.encode(p)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.projectKey(p.ID), value, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(p.CreatedAt.UnixNano()), Member: p.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store project in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteProject(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, s.projectKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete project from redis: %w", err)
	}
	if removed == 0 {
		return notFound(id)
	}
	if err := s.client.Del(ctx, s.snapshotKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot from redis: %w", err)
	}
	if err := s.client.ZRem(ctx, s.indexKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to update project index: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	raw, err := s.client.Get(ctx, s.snapshotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}
	return decodeSnapshot(raw)
}

func (s *RedisStore) SaveSnapshot(ctx context.Context, id string, snap Snapshot) error {
	value, err := s.encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.snapshotKey(id), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeValue(codec compression.Compressor, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return compression.Encode(codec, data)
}

func decodeProject(value []byte) (*Project, error) {
	data, err := compression.Decode(value)
	if err != nil {
		return nil, err
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return &p, nil
}

func decodeSnapshot(value []byte) (Snapshot, error) {
	data, err := compression.Decode(value)
	if err != nil {
		return nil, err
	}
	snap := Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}
