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

type ClipRepo interface {
	CreateBatch(ctx context.Context, clips []*domain.Clip) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Clip, error)
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Clip, error)
	CountByVideo(ctx context.Context, videoID uuid.UUID) (int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByVideo(ctx context.Context, videoID uuid.UUID) error
}

type clipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClipRepo(db *gorm.DB, baseLog *logger.Logger) ClipRepo {
	return &clipRepo{db: db, log: baseLog.With("repo", "ClipRepo")}
}

func (r *clipRepo) CreateBatch(ctx context.Context, clips []*domain.Clip) error {
	if len(clips) == 0 {
		return nil
	}
	for _, c := range clips {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&clips).Error
}

func (r *clipRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Clip, error) {
	var clip domain.Clip
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&clip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &clip, nil
}

// ListByVideo returns clips in rank order (1 = best).
func (r *clipRepo) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Clip, error) {
	var out []*domain.Clip
	err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("rank ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *clipRepo) CountByVideo(ctx context.Context, videoID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.Clip{}).
		Where("video_id = ?", videoID).
		Count(&n).Error
	return n, err
}

func (r *clipRepo) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.db.WithContext(ctx).
		Model(&domain.Clip{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteByVideo clears a video's clip set so analysis can re-rank from
// scratch. Rank is dense per video; partial deletes would leave gaps.
func (r *clipRepo) DeleteByVideo(ctx context.Context, videoID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Delete(&domain.Clip{}).Error
}
