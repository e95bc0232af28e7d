package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/repos"
)

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailed
	outcomeCancelled
)

// Orchestrator runs the full pipeline for one video as a single
// sequential task. Stages execute one after another; each invocation
// is wrapped in a retry loop that re-reads the job's persisted status
// from the database after every attempt, never trusting the in-memory
// copy across a stage boundary.
//
// Multiple Run calls for different videos may execute concurrently;
// nothing mutable is shared between them beyond the database.
type Orchestrator struct {
	log      *logger.Logger
	jobs     repos.JobRepo
	attempts int

	download   Stage
	ingest     Stage
	transcribe Stage
	analyze    Stage
	render     Stage
}

func NewOrchestrator(jobs repos.JobRepo, download, ingest, transcribe, analyze, render Stage, attempts int, log *logger.Logger) *Orchestrator {
	if attempts <= 0 {
		attempts = 2
	}
	return &Orchestrator{
		log:        log.With("service", "Orchestrator"),
		jobs:       jobs,
		attempts:   attempts,
		download:   download,
		ingest:     ingest,
		transcribe: transcribe,
		analyze:    analyze,
		render:     render,
	}
}

// Run drives the pipeline to completion. Job ids for the download and
// ingest stages may be supplied by the caller (the HTTP layer creates
// them up front so it can return them in the response); jobs for the
// remaining stages are created here as the pipeline reaches them.
// Run never returns an error: every failure is persisted on the
// failing job row, which is the pipeline's source of truth.
func (o *Orchestrator) Run(ctx context.Context, videoID uuid.UUID, downloadJobID, ingestJobID *uuid.UUID, settings config.ClipSettings) {
	settings = settings.Normalized()
	log := o.log.With("video_id", videoID)
	log.Info("Pipeline started")

	if downloadJobID != nil {
		if out := o.runWithRetry(ctx, o.download, *downloadJobID, settings); out != outcomeSuccess {
			log.Warn("Pipeline stopped at download", "outcome", out)
			return
		}
	}

	stages := []Stage{o.ingest, o.transcribe, o.analyze}
	jobIDs := []*uuid.UUID{ingestJobID, nil, nil}
	for i, stage := range stages {
		jobID, err := o.ensureJob(ctx, videoID, stage.Type(), jobIDs[i])
		if err != nil {
			log.Error("Failed to create stage job", "job_type", stage.Type(), "error", err)
			return
		}
		if out := o.runWithRetry(ctx, stage, jobID, settings); out != outcomeSuccess {
			log.Warn("Pipeline stopped", "job_type", stage.Type(), "outcome", out)
			return
		}
	}

	// The render stage is last: nothing depends on it, so its failure
	// only marks its own job.
	renderJobID, err := o.ensureJob(ctx, videoID, o.render.Type(), nil)
	if err != nil {
		log.Error("Failed to create render job", "error", err)
		return
	}
	o.runWithRetry(ctx, o.render, renderJobID, settings)
	log.Info("Pipeline complete")
}

func (o *Orchestrator) ensureJob(ctx context.Context, videoID uuid.UUID, jobType domain.JobType, existing *uuid.UUID) (uuid.UUID, error) {
	if existing != nil {
		return *existing, nil
	}
	job := &domain.Job{
		ID:      uuid.New(),
		VideoID: videoID,
		JobType: jobType,
		Status:  domain.JobPending,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return uuid.Nil, err
	}
	return job.ID, nil
}

func (o *Orchestrator) runWithRetry(ctx context.Context, stage Stage, jobID uuid.UUID, settings config.ClipSettings) outcome {
	log := o.log.With("job_type", stage.Type(), "job_id", jobID)
	for attempt := 1; attempt <= o.attempts; attempt++ {
		log.Info("Running stage", "attempt", attempt, "max_attempts", o.attempts)

		if err := o.execute(ctx, stage, jobID, settings); err != nil {
			log.Warn("Stage attempt errored", "attempt", attempt, "error", err)
		}

		// Fresh read: the stage may have run in another goroutine's
		// transaction scope, so the in-memory state is not trusted.
		job, err := o.jobs.GetByID(ctx, jobID)
		if err != nil || job == nil {
			log.Error("Failed to re-read job status", "error", err)
			continue
		}
		if job.Cancelled() {
			log.Info("Stage cancelled, stopping retries")
			return outcomeCancelled
		}
		if job.Status == domain.JobSuccess {
			log.Info("Stage completed", "attempt", attempt)
			return outcomeSuccess
		}
		log.Warn("Stage attempt did not succeed", "attempt", attempt, "status", job.Status, "error_message", job.ErrorMessage)
	}
	return outcomeFailed
}

// execute shields the orchestrator from a panicking stage; a panic
// counts as a failed attempt like any other error.
func (o *Orchestrator) execute(ctx context.Context, stage Stage, jobID uuid.UUID, settings config.ClipSettings) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage.Type(), r)
			if merr := o.jobs.MarkFailed(ctx, jobID, err.Error()); merr != nil {
				o.log.Error("Failed to record panic", "job_id", jobID, "error", merr)
			}
		}
	}()
	return stage.Execute(ctx, jobID, settings)
}
