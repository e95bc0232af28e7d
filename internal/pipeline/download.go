package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/platform/ytdlp"
	"github.com/yungbote/clipcut-backend/internal/repos"
)

const placeholderTitle = "Downloaded Video"

// DownloadStage fetches the source media for videos registered from a
// URL. Progress tracks the downloader's own reporting, scaled to leave
// headroom for merge and finalization.
type DownloadStage struct {
	log        *logger.Logger
	videos     repos.VideoRepo
	jobs       repos.JobRepo
	downloader ytdlp.Downloader
}

func NewDownloadStage(videos repos.VideoRepo, jobs repos.JobRepo, dl ytdlp.Downloader, log *logger.Logger) *DownloadStage {
	return &DownloadStage{
		log:        log.With("stage", "download"),
		videos:     videos,
		jobs:       jobs,
		downloader: dl,
	}
}

func (s *DownloadStage) Type() domain.JobType { return domain.JobTypeDownload }

func (s *DownloadStage) Execute(ctx context.Context, jobID uuid.UUID, settings config.ClipSettings) error {
	return finish(ctx, s.jobs, s.log, jobID, "downloading", s.run(ctx, jobID))
}

func (s *DownloadStage) run(ctx context.Context, jobID uuid.UUID) error {
	job, err := loadJob(ctx, s.jobs, jobID)
	if err != nil {
		return err
	}
	video, err := s.videos.GetByID(ctx, job.VideoID)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("video %s not found", job.VideoID)
	}
	if video.SourceURL == nil || *video.SourceURL == "" {
		return fmt.Errorf("video %s has no source url", video.ID)
	}

	if err := s.jobs.MarkRunning(ctx, jobID, "downloading"); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(video.OriginalPath), 0o755); err != nil {
		return fmt.Errorf("create video dir: %w", err)
	}

	err = s.downloader.Download(ctx, *video.SourceURL, video.OriginalPath, func(fraction float64) {
		if perr := s.jobs.SetProgress(ctx, jobID, fraction, "downloading"); perr != nil {
			s.log.Debug("Progress update skipped", "job_id", jobID, "error", perr)
		}
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", *video.SourceURL, err)
	}
	if !fileExists(video.OriginalPath) {
		return fmt.Errorf("downloaded file not found at %s", video.OriginalPath)
	}

	if video.Title == "" || video.Title == placeholderTitle {
		if title, terr := s.downloader.FetchTitle(ctx, *video.SourceURL); terr == nil && title != "" {
			if uerr := s.videos.UpdateFields(ctx, video.ID, map[string]interface{}{"title": title}); uerr != nil {
				s.log.Warn("Failed to store fetched title", "video_id", video.ID, "error", uerr)
			}
		}
	}
	return nil
}
