// Package queue provides a throttled progress reporter used as the
// progress_emitter argument of RunPipeline/RefreshPipeline (spec.md §4.9,
// §6).
package queue

import (
	"time"

	"github.com/aristath/epochscript/internal/events"
)

// Phase names reported during a pipeline run, matching spec §4.9's phase
// order.
const (
	PhaseLoadData               = "LoadData"
	PhaseAppendFuturesContinuations = "AppendFuturesContinuations"
	PhaseResampleBarData        = "ResampleBarData"
	PhaseTransformBarData       = "TransformBarData"
	PhaseBuildTimestampIndex    = "BuildTimestampIndex"
)

// ProgressReporter emits throttled progress events for one pipeline run.
type ProgressReporter struct {
	eventManager *events.Manager
	runID        string
	lastReport   time.Time
	minInterval  time.Duration
}

// NewProgressReporter creates a reporter throttled to at most 10
// updates/second, always letting 100%-complete reports through.
func NewProgressReporter(em *events.Manager, runID string) *ProgressReporter {
	return &ProgressReporter{
		eventManager: em,
		runID:        runID,
		minInterval:  100 * time.Millisecond,
	}
}

// Report emits a progress event for phase, throttled unless current==total.
func (pr *ProgressReporter) Report(phase string, current, total int, message string) {
	if pr.eventManager == nil {
		return
	}
	now := time.Now()
	if now.Sub(pr.lastReport) < pr.minInterval && current != total {
		return
	}
	pr.lastReport = now

	pr.eventManager.EmitTyped("pipeline", &events.RunProgressData{
		RunID:   pr.runID,
		Phase:   phase,
		Current: current,
		Total:   total,
		Message: message,
	})
}

// ReportUnthrottled always emits, bypassing the throttle — used at phase
// boundaries where a progress jump must not be swallowed.
func (pr *ProgressReporter) ReportUnthrottled(phase string, current, total int, message string) {
	if pr.eventManager == nil {
		return
	}
	pr.lastReport = time.Now()
	pr.eventManager.EmitTyped("pipeline", &events.RunProgressData{
		RunID:   pr.runID,
		Phase:   phase,
		Current: current,
		Total:   total,
		Message: message,
	})
}
