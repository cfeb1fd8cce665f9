package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/chaoscast/chaoscast/internal/config"
)

// Type names a queue backend
type Type string

const (
	TypeNone   Type = "none"
	TypeMemory Type = "memory"
	TypeNATS   Type = "nats"
	TypeRedis  Type = "redis"
	TypeKafka  Type = "kafka"
)

// NewQueue creates the queue selected by cfg.Type. An empty type disables
// publishing.
func NewQueue(cfg config.QueueConfig) (Queue, error) {
	queueType := Type(strings.ToLower(cfg.Type))
	if queueType == "" {
		queueType = TypeNone
	}

	switch queueType {
	case TypeNone:
		return NopQueue{}, nil

	case TypeMemory:
		return newMemoryQueue(), nil

	case TypeNATS:
		return newNATSQueue(NATSConfig{
			URL:      cfg.URL,
			Username: cfg.Username,
			Password: cfg.Password,
			Subject:  cfg.Subject,
		})

	case TypeRedis:
		return newRedisQueue(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
		})

	case TypeKafka:
		return newKafkaQueue(KafkaConfig{
			Brokers: cfg.KafkaBrokers,
		})

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: none, memory, nats, redis, kafka)", queueType)
	}
}

// NopQueue drops every message
type NopQueue struct{}

func (NopQueue) Publish(context.Context, string, []byte) error { return nil }
func (NopQueue) Subscribe(string, MessageHandler) error        { return nil }
func (NopQueue) Unsubscribe(string) error                      { return nil }
func (NopQueue) Close() error                                  { return nil }
