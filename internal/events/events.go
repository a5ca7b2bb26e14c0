// Package events provides a small typed publish/subscribe bus used to
// report pipeline progress and lifecycle state to HTTP/SSE consumers
// (spec.md §4.9 "progress_emitter", §6 exposed interfaces).
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies the kind of event carried by an Event.
type EventType string

const (
	PipelineRunStarted   EventType = "PIPELINE_RUN_STARTED"
	PipelineRunProgress  EventType = "PIPELINE_RUN_PROGRESS"
	PipelineRunCompleted EventType = "PIPELINE_RUN_COMPLETED"
	PipelineRunFailed    EventType = "PIPELINE_RUN_FAILED"
	WebsocketSkipped     EventType = "WEBSOCKET_UPDATE_SKIPPED"
)

// EventData is implemented by every typed event payload.
type EventData interface {
	EventType() EventType
}

// RunProgressData reports phase-level progress of RunPipeline/RefreshPipeline.
type RunProgressData struct {
	RunID    string `json:"run_id"`
	Phase    string `json:"phase"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Message  string `json:"message,omitempty"`
}

// EventType implements EventData.
func (d *RunProgressData) EventType() EventType { return PipelineRunProgress }

// RunCompletedData reports a finished pipeline run.
type RunCompletedData struct {
	RunID    string `json:"run_id"`
	Duration string `json:"duration"`
	NodeCnt  int    `json:"node_count"`
}

// EventType implements EventData.
func (d *RunCompletedData) EventType() EventType { return PipelineRunCompleted }

// RunFailedData reports a fatal pipeline failure.
type RunFailedData struct {
	RunID string `json:"run_id"`
	Phase string `json:"phase"`
	Error string `json:"error"`
}

// EventType implements EventData.
func (d *RunFailedData) EventType() EventType { return PipelineRunFailed }

// Event is the envelope published on the Bus.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}

// Bus fans an emitted Event out to any number of subscribers. An event is
// dropped for any subscriber whose buffer is full rather than blocking
// emitters, since progress reporting must never stall the pipeline thread.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Emit publishes ev to every current subscriber, non-blockingly.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Manager wraps a Bus with structured logging, mirroring the teacher's
// events.Manager: every emission is both published and logged.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a Manager over bus.
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{bus: bus, log: log.With().Str("service", "events").Logger()}
}

// Bus returns the underlying Bus, e.g. for an SSE handler to Subscribe to.
func (m *Manager) Bus() *Bus { return m.bus }

// EmitTyped marshals data to a map and publishes/logs it.
func (m *Manager) EmitTyped(module string, data EventData) {
	dataMap := toMap(data)
	ev := Event{
		Type:      data.EventType(),
		Timestamp: time.Now(),
		Module:    module,
		Data:      dataMap,
	}
	m.bus.Emit(ev)

	evJSON, _ := json.Marshal(ev)
	m.log.Info().
		Str("event_type", string(ev.Type)).
		Str("module", module).
		RawJSON("event", evJSON).
		Msg("event emitted")
}

func toMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}
