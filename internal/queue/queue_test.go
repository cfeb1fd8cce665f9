package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaoscast/chaoscast/internal/config"
	"github.com/chaoscast/chaoscast/internal/logging"
)

// collector gathers delivered events
type collector struct {
	mu     sync.Mutex
	events []Event
	got    chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 100)}
}

func (c *collector) handle(data []byte) error {
	ev, err := DecodeEvent(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.got <- struct{}{}
	return nil
}

func (c *collector) wait(t *testing.T, n int) []Event {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// roundTrip emits two events through q and checks they arrive in order
func roundTrip(t *testing.T, q Queue) {
	emitter := NewEmitter(q, "test", logging.NewNop())
	c := newCollector()
	require.NoError(t, q.Subscribe(emitter.Subject(EventModelTrained), c.handle))

	ctx := context.Background()
	require.NoError(t, emitter.Emit(ctx, Event{Type: EventModelTrained, ProjectID: "p1", Status: "trained"}))
	require.NoError(t, emitter.Emit(ctx, Event{
		Type:      EventModelTrained,
		ProjectID: "p2",
		Details:   map[string]interface{}{"loss": 0.5},
	}))

	events := c.wait(t, 2)
	require.Len(t, events, 2)
	assert.Equal(t, "p1", events[0].ProjectID)
	assert.Equal(t, "trained", events[0].Status)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Time.IsZero())
	assert.Equal(t, "p2", events[1].ProjectID)
	assert.Equal(t, 0.5, events[1].Details["loss"])

	require.NoError(t, q.Unsubscribe(emitter.Subject(EventModelTrained)))
	assert.Error(t, q.Unsubscribe(emitter.Subject(EventModelTrained)))
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue()
	defer func() { _ = q.Close() }()
	roundTrip(t, q)
}

func TestMemoryQueue_PendingAndDuplicate(t *testing.T) {
	q := NewMemoryQueue()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, "a", []byte("1")))
	require.NoError(t, q.Publish(ctx, "a", []byte("2")))
	assert.Equal(t, 2, q.Pending("a"))
	assert.Equal(t, 0, q.Pending("b"))

	require.NoError(t, q.Subscribe("a", func([]byte) error { return nil }))
	assert.Error(t, q.Subscribe("a", func([]byte) error { return nil }))
	assert.Eventually(t, func() bool { return q.Pending("a") == 0 }, time.Second, 10*time.Millisecond)
}

func TestMemoryQueue_Full(t *testing.T) {
	q := NewMemoryQueue()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	for i := 0; i < memoryBuffer; i++ {
		require.NoError(t, q.Publish(ctx, "full", []byte("x")))
	}
	assert.Error(t, q.Publish(ctx, "full", []byte("x")))
}

func TestMemoryQueue_CloseWhilePublishing(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.Subscribe("busy", func([]byte) error { return nil }))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if err := q.Publish(ctx, "busy", []byte("x")); errors.Is(err, ErrQueueClosed) {
					return
				}
			}
		}()
	}
	time.Sleep(time.Millisecond)
	require.NoError(t, q.Close())
	wg.Wait()

	assert.True(t, errors.Is(q.Publish(ctx, "busy", []byte("x")), ErrQueueClosed))
	assert.True(t, errors.Is(q.Subscribe("other", func([]byte) error { return nil }), ErrQueueClosed))
	assert.NoError(t, q.Close())
}

// setupTestNATS creates an embedded NATS server with JetStream
func setupTestNATS(t *testing.T) string {
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNATSQueue(t *testing.T) {
	url := setupTestNATS(t)

	q, err := newNATSQueue(NATSConfig{URL: url, Subject: "test"})
	require.NoError(t, err)
	defer func() { _ = q.Close() }()
	assert.Equal(t, "test-events", q.stream)

	roundTrip(t, q)
}

func TestNATSQueue_ReusesStream(t *testing.T) {
	url := setupTestNATS(t)

	conn, err := nats.Connect(url)
	require.NoError(t, err)
	defer conn.Close()

	_, err = newNATSQueueWithConn(conn, "again")
	require.NoError(t, err)
	_, err = newNATSQueueWithConn(conn, "again")
	require.NoError(t, err)
}

func TestNATSQueue_Unreachable(t *testing.T) {
	_, err := newNATSQueue(NATSConfig{URL: "nats://127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisQueue(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	q, err := newRedisQueue(RedisConfig{URL: "redis://" + mr.Addr(), Consumer: "test"})
	require.NoError(t, err)
	defer func() { _ = q.Close() }()

	roundTrip(t, q)
}

func TestRedisQueue_StreamEntries(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := newRedisQueueWithClient(client, RedisConfig{})
	defer func() { _ = q.Close() }()
	assert.Equal(t, "chaoscast-group", q.config.Group)
	assert.NotEmpty(t, q.config.Consumer)

	emitter := NewEmitter(q, "cc", logging.NewNop())
	require.NoError(t, emitter.Emit(context.Background(), Event{Type: EventDataUploaded, ProjectID: "p"}))

	n, err := client.XLen(context.Background(), "cc.data.uploaded").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisQueue_Unreachable(t *testing.T) {
	_, err := newRedisQueue(RedisConfig{URL: "redis://127.0.0.1:1"})
	assert.Error(t, err)
}

func TestKafkaQueue_Config(t *testing.T) {
	_, err := newKafkaQueue(KafkaConfig{})
	assert.Error(t, err)

	q, err := newKafkaQueue(KafkaConfig{Brokers: []string{"127.0.0.1:1"}})
	require.NoError(t, err)
	assert.Equal(t, "chaoscast-group", q.config.GroupID)
	assert.Equal(t, 3, q.config.MaxAttempts)
	assert.Equal(t, int64(0), q.Stats("none").Messages)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.Error(t, q.Publish(ctx, "topic", []byte("x")))
	assert.NoError(t, q.Close())
}

func TestNewQueue(t *testing.T) {
	q, err := NewQueue(config.QueueConfig{})
	require.NoError(t, err)
	assert.IsType(t, NopQueue{}, q)

	q, err = NewQueue(config.QueueConfig{Type: "MEMORY"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryQueue{}, q)
	_ = q.Close()

	_, err = NewQueue(config.QueueConfig{Type: "kafka"})
	assert.Error(t, err)

	_, err = NewQueue(config.QueueConfig{Type: "rabbitmq"})
	assert.Error(t, err)
}

type failingPublisher struct{ NopQueue }

func (failingPublisher) Publish(context.Context, string, []byte) error {
	return errors.New("broker down")
}

func TestEmitter(t *testing.T) {
	e := NewEmitter(nil, "", nil)
	assert.Equal(t, "chaoscast.project.created", e.Subject(EventProjectCreated))
	assert.NoError(t, e.Emit(context.Background(), Event{Type: EventProjectCreated}))

	failing := NewEmitter(failingPublisher{}, "x", logging.NewNop())
	assert.Error(t, failing.Emit(context.Background(), Event{Type: EventForecasted}))

	_, err := DecodeEvent([]byte("{"))
	assert.Error(t, err)
}
