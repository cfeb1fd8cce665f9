package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueClosed is returned by operations on a closed queue
var ErrQueueClosed = errors.New("queue is closed")

// memoryBuffer is the capacity of every subject channel
const memoryBuffer = 1024

// MemoryQueue delivers messages through in-process channels, one per
// subject. Used in tests and single-process deployments.
type MemoryQueue struct {
	channels      map[string]chan []byte
	subscriptions map[string]context.CancelFunc
	closed        bool
	mu            sync.RWMutex
}

func newMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		channels:      make(map[string]chan []byte),
		subscriptions: make(map[string]context.CancelFunc),
	}
}

// NewMemoryQueue creates an empty in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return newMemoryQueue()
}

// channel returns the subject channel, creating it. Callers hold mu.
func (q *MemoryQueue) channel(subject string) chan []byte {
	if ch, ok := q.channels[subject]; ok {
		return ch
	}
	ch := make(chan []byte, memoryBuffer)
	q.channels[subject] = ch
	return ch
}

// Publish enqueues a copy of data; a full subject is an error. The send
// never blocks, so it runs under mu and cannot race with Close.
func (q *MemoryQueue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := append([]byte(nil), data...)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	ch := q.channel(subject)

	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("channel full for subject: %s", subject)
	}
}

// Subscribe consumes subject in a background goroutine. Messages published
// before the subscription are delivered too.
func (q *MemoryQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	ch := q.channel(subject)
	if _, ok := q.subscriptions[subject]; ok {
		q.mu.Unlock()
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.subscriptions[subject] = cancel
	q.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-ch:
				if !ok {
					return
				}
				_ = handler(data)
			}
		}
	}()
	return nil
}

func (q *MemoryQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancel, ok := q.subscriptions[subject]
	if !ok {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}
	cancel()
	delete(q.subscriptions, subject)
	return nil
}

// Close stops every subscription and drops pending messages
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for subject, cancel := range q.subscriptions {
		cancel()
		delete(q.subscriptions, subject)
	}
	for subject, ch := range q.channels {
		close(ch)
		delete(q.channels, subject)
	}
	return nil
}

// Pending returns the number of undelivered messages on subject
func (q *MemoryQueue) Pending(subject string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if ch, ok := q.channels[subject]; ok {
		return len(ch)
	}
	return 0
}
