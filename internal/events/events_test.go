package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	bus.Emit(Event{Type: PipelineRunStarted, Module: "pipeline"})

	select {
	case ev := <-ch:
		assert.Equal(t, PipelineRunStarted, ev.Type)
	default:
		t.Fatal("expected an event on the subscriber channel")
	}
}

func TestBusDropsOnFullBuffer(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	bus.Emit(Event{Type: PipelineRunStarted})
	bus.Emit(Event{Type: PipelineRunCompleted}) // buffer full, dropped, not blocked

	ev := <-ch
	assert.Equal(t, PipelineRunStarted, ev.Type)
	assert.Len(t, ch, 0)
}

func TestManagerEmitTypedPublishesToBus(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	m := NewManager(bus, zerolog.Nop())
	m.EmitTyped("pipeline", &RunProgressData{RunID: "r1", Phase: "LoadData", Current: 1, Total: 4})

	ev := <-ch
	require.Equal(t, PipelineRunProgress, ev.Type)
	assert.Equal(t, "r1", ev.Data["run_id"])
	assert.Equal(t, "LoadData", ev.Data["phase"])
}
