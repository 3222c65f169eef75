package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a configuration lifecycle event.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Kind is the configuration kind the event is about.
	Kind string `json:"kind"`

	// Path is the configuration file path.
	Path string `json:"path"`

	// FromVersion is the version before the operation, -1 if not applicable.
	FromVersion int `json:"from_version"`

	// ToVersion is the version after the operation, -1 if not applicable.
	ToVersion int `json:"to_version"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeCreated   = "config.created"
	EventTypeLoaded    = "config.loaded"
	EventTypeMigrated  = "config.migrated"
	EventTypeCommitted = "config.committed"
	EventTypeFailed    = "config.failed"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// ErrPublisherClosed is returned by Publish after an async publisher was shut down.
var ErrPublisherClosed = errors.New("event publisher is shut down")

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher delivers events to subscribers in publication order.
// A nil *EventPublisher, or one built with events disabled, drops everything.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	mu          sync.RWMutex
	wg          sync.WaitGroup
	closeOnce   sync.Once
	sendMu      sync.RWMutex
	closed      bool
	now         func() time.Time
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{config: cfg, now: time.Now}
	if !cfg.Enabled {
		return ep, nil
	}

	if cfg.EnableAsync {
		if cfg.BufferSize <= 0 {
			return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
		}
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish stamps the event with an ID and timestamp and delivers it.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = ep.now().UTC()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	if ep.buffer != nil {
		ep.sendMu.RLock()
		defer ep.sendMu.RUnlock()
		if ep.closed {
			return ErrPublisherClosed
		}
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event %s dropped", event.Type)
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishCreated publishes a file-created-from-default event.
func (ep *EventPublisher) PublishCreated(kind, path string, version int) error {
	return ep.Publish(Event{
		Type:        EventTypeCreated,
		Kind:        kind,
		Path:        path,
		FromVersion: -1,
		ToVersion:   version,
		Message:     fmt.Sprintf("created %s config at v%d", kind, version),
	})
}

// PublishLoaded publishes a successful load event.
func (ep *EventPublisher) PublishLoaded(kind, path string, version int) error {
	return ep.Publish(Event{
		Type:        EventTypeLoaded,
		Kind:        kind,
		Path:        path,
		FromVersion: version,
		ToVersion:   version,
		Message:     fmt.Sprintf("loaded %s config at v%d", kind, version),
	})
}

// PublishMigrated publishes a completed, persisted migration from one version to another.
func (ep *EventPublisher) PublishMigrated(kind, path string, from, to int, steps []string) error {
	return ep.Publish(Event{
		Type:        EventTypeMigrated,
		Kind:        kind,
		Path:        path,
		FromVersion: from,
		ToVersion:   to,
		Message:     fmt.Sprintf("migrated %s config from v%d to v%d", kind, from, to),
		Data: map[string]interface{}{
			"steps": steps,
		},
	})
}

// PublishCommitted publishes a successful commit event.
func (ep *EventPublisher) PublishCommitted(kind, path string, version int) error {
	return ep.Publish(Event{
		Type:        EventTypeCommitted,
		Kind:        kind,
		Path:        path,
		FromVersion: version,
		ToVersion:   version,
		Message:     fmt.Sprintf("committed %s config", kind),
	})
}

// PublishFailed publishes a failed lifecycle operation.
func (ep *EventPublisher) PublishFailed(kind, path, operation, class, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypeFailed,
		Kind:        kind,
		Path:        path,
		FromVersion: -1,
		ToVersion:   -1,
		Message:     reason,
		Level:       EventLevelError,
		Data: map[string]interface{}{
			"operation": operation,
			"class":     class,
		},
	})
}

// Subscribe adds a new event subscriber. filter may be nil.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	if ep == nil {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents drains the buffer until it is closed.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()
	for event := range ep.buffer {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers, one after another.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops accepting async events and waits until the buffer is drained.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil || ep.buffer == nil {
		return nil
	}

	ep.closeOnce.Do(func() {
		ep.sendMu.Lock()
		ep.closed = true
		close(ep.buffer)
		ep.sendMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByKind creates a filter that only allows events for one configuration kind.
func FilterByKind(kind string) EventFilter {
	return func(event Event) bool {
		return event.Kind == kind
	}
}
