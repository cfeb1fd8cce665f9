package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/utils"
)

// EventType names a project lifecycle transition
type EventType string

const (
	EventProjectCreated  EventType = "project.created"
	EventProjectDeleted  EventType = "project.deleted"
	EventDataUploaded    EventType = "data.uploaded"
	EventColumnsSelected EventType = "columns.selected"
	EventPreprocessed    EventType = "pipeline.preprocessed"
	EventModelTrained    EventType = "model.trained"
	EventForecasted      EventType = "model.forecasted"
)

// EventTypes lists every lifecycle event
var EventTypes = []EventType{
	EventProjectCreated,
	EventProjectDeleted,
	EventDataUploaded,
	EventColumnsSelected,
	EventPreprocessed,
	EventModelTrained,
	EventForecasted,
}

// Event is the JSON payload published for a lifecycle transition
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	ProjectID string                 `json:"project_id"`
	Status    string                 `json:"status,omitempty"`
	Time      time.Time              `json:"time"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// DecodeEvent parses a published event
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return ev, nil
}

// Emitter publishes lifecycle events under <prefix>.<type>
type Emitter struct {
	pub     Publisher
	prefix  string
	timeout time.Duration
	logger  *logging.Logger
}

// NewEmitter creates an emitter. A nil publisher drops every event.
func NewEmitter(pub Publisher, prefix string, logger *logging.Logger) *Emitter {
	if pub == nil {
		pub = NopQueue{}
	}
	if prefix == "" {
		prefix = "chaoscast"
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Emitter{
		pub:     pub,
		prefix:  prefix,
		timeout: utils.EventPublishTimeout,
		logger:  logger,
	}
}

// Subject returns the subject events of type t are published on
func (e *Emitter) Subject(t EventType) string {
	return e.prefix + "." + string(t)
}

// Emit publishes ev, filling its id and time when unset. Publishing failures
// are logged and returned; callers treat them as non-fatal.
func (e *Emitter) Emit(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.pub.Publish(ctx, e.Subject(ev.Type), data); err != nil {
		e.logger.Warn("Failed to publish event",
			"type", string(ev.Type),
			"project_id", ev.ProjectID,
			"error", err)
		return err
	}
	e.logger.Debug("Published event", "type", string(ev.Type), "project_id", ev.ProjectID)
	return nil
}

// Close closes the underlying publisher
func (e *Emitter) Close() error {
	return e.pub.Close()
}
