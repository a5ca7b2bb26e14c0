package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/epochscript/internal/audit"
	"github.com/aristath/epochscript/internal/queue"
)

// Pipeline is the subset of pipeline.Database this job drives; kept narrow
// so the scheduler package does not import pipeline directly.
type Pipeline interface {
	RunPipeline(progress *queue.ProgressReporter) error
}

// PipelineRefreshConfig configures a PipelineRefreshJob.
type PipelineRefreshConfig struct {
	Log      zerolog.Logger
	Pipeline Pipeline
	Progress *queue.ProgressReporter
	Audit    *audit.Store // optional
}

// PipelineRefreshJob re-runs the full load/resample/transform/index cycle
// on a schedule (spec §4.9), recording the run in the audit store when one
// is configured.
type PipelineRefreshJob struct {
	log      zerolog.Logger
	pipeline Pipeline
	progress *queue.ProgressReporter
	audit    *audit.Store
}

// NewPipelineRefreshJob builds a PipelineRefreshJob.
func NewPipelineRefreshJob(cfg PipelineRefreshConfig) *PipelineRefreshJob {
	return &PipelineRefreshJob{
		log:      cfg.Log.With().Str("job", "pipeline_refresh").Logger(),
		pipeline: cfg.Pipeline,
		progress: cfg.Progress,
		audit:    cfg.Audit,
	}
}

// Name implements scheduler.Job.
func (j *PipelineRefreshJob) Name() string { return "pipeline_refresh" }

// Run implements scheduler.Job.
func (j *PipelineRefreshJob) Run() error {
	runID := uuid.NewString()
	startedAt := time.Now()
	if j.audit != nil {
		if err := j.audit.RecordStart(runID, startedAt); err != nil {
			j.log.Warn().Err(err).Msg("failed to record run start")
		}
	}

	err := j.pipeline.RunPipeline(j.progress)

	if j.audit != nil {
		if err != nil {
			if auditErr := j.audit.RecordFailed(runID, time.Now(), err); auditErr != nil {
				j.log.Warn().Err(auditErr).Msg("failed to record run failure")
			}
		} else if auditErr := j.audit.RecordCompleted(runID, time.Now(), 0); auditErr != nil {
			j.log.Warn().Err(auditErr).Msg("failed to record run completion")
		}
	}
	return err
}
