package pipeline

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/repos"
)

// Stage is one unit of pipeline work. Execute owns the job's status
// transitions: it marks the job RUNNING, SUCCESS or FAILED itself, and
// the returned error only signals the orchestrator that the attempt
// did not complete. Every stage is idempotent: when its output already
// exists it marks SUCCESS without repeating work.
//
// The settings bundle travels as an argument so concurrent pipelines
// for different videos never share mutable configuration.
type Stage interface {
	Type() domain.JobType
	Execute(ctx context.Context, jobID uuid.UUID, settings config.ClipSettings) error
}

// errCancelled is returned from inside a stage when it observes the
// cancellation sentinel on its job. The job row already carries the
// FAILED status, so the stage must not overwrite it.
var errCancelled = errors.New("job cancelled")

// loadJob fetches the job with a fresh read and honors cancellation
// observed at a checkpoint.
func loadJob(ctx context.Context, jobs repos.JobRepo, jobID uuid.UUID) (*domain.Job, error) {
	job, err := jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errors.New("job not found")
	}
	if job.Cancelled() {
		return nil, errCancelled
	}
	return job, nil
}

// finish records the outcome of a stage attempt on the job row. A
// cancelled run is left untouched so the sentinel survives.
func finish(ctx context.Context, jobs repos.JobRepo, log *logger.Logger, jobID uuid.UUID, step string, runErr error) error {
	if runErr == nil {
		if err := jobs.MarkSuccess(ctx, jobID, step); err != nil {
			log.Error("Failed to mark job success", "job_id", jobID, "error", err)
			return err
		}
		return nil
	}
	if errors.Is(runErr, errCancelled) {
		log.Info("Stage observed cancellation", "job_id", jobID, "step", step)
		return runErr
	}
	if err := jobs.MarkFailed(ctx, jobID, runErr.Error()); err != nil {
		log.Error("Failed to mark job failed", "job_id", jobID, "error", err)
	}
	return runErr
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
