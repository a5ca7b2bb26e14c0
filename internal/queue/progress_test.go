package queue

import (
	"testing"
	"time"

	"github.com/aristath/epochscript/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEventManager() (*events.Manager, <-chan events.Event) {
	bus := events.NewBus()
	manager := events.NewManager(bus, zerolog.Nop())
	ch, _ := bus.Subscribe(10)
	return manager, ch
}

func TestProgressReporterReport(t *testing.T) {
	em, ch := setupEventManager()
	reporter := NewProgressReporter(em, "run-1")

	reporter.Report(PhaseLoadData, 3, 7, "loading assets")

	select {
	case ev := <-ch:
		assert.Equal(t, events.PipelineRunProgress, ev.Type)
		assert.Equal(t, "run-1", ev.Data["run_id"])
		assert.Equal(t, PhaseLoadData, ev.Data["phase"])
		assert.Equal(t, float64(3), ev.Data["current"])
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected a progress event")
	}
}

func TestProgressReporterThrottles(t *testing.T) {
	em, ch := setupEventManager()
	reporter := NewProgressReporter(em, "run-2")

	reporter.Report(PhaseResampleBarData, 1, 10, "step 1")
	<-ch

	reporter.Report(PhaseResampleBarData, 2, 10, "step 2") // within 100ms, throttled
	select {
	case <-ch:
		t.Fatal("second report should have been throttled")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestProgressReporterBypassesThrottleAtCompletion(t *testing.T) {
	em, ch := setupEventManager()
	reporter := NewProgressReporter(em, "run-3")

	reporter.Report(PhaseBuildTimestampIndex, 1, 5, "step 1")
	<-ch

	reporter.Report(PhaseBuildTimestampIndex, 5, 5, "done") // current==total bypasses throttle
	select {
	case ev := <-ch:
		require.Equal(t, float64(5), ev.Data["current"])
	case <-time.After(100 * time.Millisecond):
		t.Fatal("completion report should bypass throttle")
	}
}

func TestProgressReporterNilManagerDoesNotPanic(t *testing.T) {
	reporter := NewProgressReporter(nil, "run-4")
	assert.NotPanics(t, func() {
		reporter.Report(PhaseLoadData, 1, 1, "x")
		reporter.ReportUnthrottled(PhaseLoadData, 1, 1, "x")
	})
}
