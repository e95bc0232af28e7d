package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

// JobRepo is the stage state machine's persistence surface. GetByID is
// always a fresh database read, never a request-scoped cache: stages may
// run in a different goroutine than the orchestrator that polls them.
type JobRepo interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Job, error)
	MarkRunning(ctx context.Context, id uuid.UUID, step string) error
	SetProgress(ctx context.Context, id uuid.UUID, progress float64, step string) error
	MarkSuccess(ctx context.Context, id uuid.UUID, step string) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = domain.JobPending
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Job, error) {
	var out []*domain.Job
	err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) MarkRunning(ctx context.Context, id uuid.UUID, step string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     domain.JobRunning,
			"step":       step,
			"progress":   0.0,
			"updated_at": time.Now(),
		}).Error
}

// SetProgress only moves progress forward; a stale writer cannot make a
// RUNNING job's progress go backwards.
func (r *jobRepo) SetProgress(ctx context.Context, id uuid.UUID, progress float64, step string) error {
	updates := map[string]interface{}{
		"progress":   progress,
		"updated_at": time.Now(),
	}
	if step != "" {
		updates["step"] = step
	}
	return r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND status = ? AND progress <= ?", id, domain.JobRunning, progress).
		Updates(updates).Error
}

func (r *jobRepo) MarkSuccess(ctx context.Context, id uuid.UUID, step string) error {
	updates := map[string]interface{}{
		"status":     domain.JobSuccess,
		"progress":   1.0,
		"updated_at": time.Now(),
	}
	if step != "" {
		updates["step"] = step
	}
	return r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// MarkFailed persists a truncated failure message. A cancellation
// sentinel already in place wins: the generic failure never overwrites
// "stopped by user".
func (r *jobRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND NOT (status = ? AND error_message = ?)",
			id, domain.JobFailed, domain.CancelledMessage).
		Updates(map[string]interface{}{
			"status":        domain.JobFailed,
			"error_message": domain.TruncateError(message),
			"updated_at":    time.Now(),
		}).Error
}

// Cancel forces a non-terminal job to FAILED with the sentinel message.
// Returns whether a row was affected.
func (r *jobRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND status IN ?", id, []domain.JobStatus{domain.JobPending, domain.JobRunning}).
		Updates(map[string]interface{}{
			"status":        domain.JobFailed,
			"error_message": domain.CancelledMessage,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
