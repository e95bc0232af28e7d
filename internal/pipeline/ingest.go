package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/localmedia"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/repos"
)

// IngestStage probes the source file and extracts a mono 16kHz PCM
// track for the downstream transcription and energy analysis.
type IngestStage struct {
	log      *logger.Logger
	videos   repos.VideoRepo
	jobs     repos.JobRepo
	tools    localmedia.Tools
	audioDir string
}

func NewIngestStage(videos repos.VideoRepo, jobs repos.JobRepo, tools localmedia.Tools, audioDir string, log *logger.Logger) *IngestStage {
	return &IngestStage{
		log:      log.With("stage", "ingest"),
		videos:   videos,
		jobs:     jobs,
		tools:    tools,
		audioDir: audioDir,
	}
}

func (s *IngestStage) Type() domain.JobType { return domain.JobTypeIngest }

func (s *IngestStage) Execute(ctx context.Context, jobID uuid.UUID, settings config.ClipSettings) error {
	return finish(ctx, s.jobs, s.log, jobID, "ingest", s.run(ctx, jobID))
}

func (s *IngestStage) run(ctx context.Context, jobID uuid.UUID) error {
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

	// Already ingested: audio on disk plus probe results recorded.
	if video.AudioPath != nil && fileExists(*video.AudioPath) &&
		video.DurationSeconds != nil && video.FPS != nil {
		s.log.Info("Ingest already complete", "video_id", video.ID)
		return nil
	}

	if err := s.jobs.MarkRunning(ctx, jobID, "ingest"); err != nil {
		return err
	}
	if !fileExists(video.OriginalPath) {
		return fmt.Errorf("source file not found at %s", video.OriginalPath)
	}

	probe, err := s.tools.Probe(ctx, video.OriginalPath)
	if err != nil {
		return fmt.Errorf("probe %s: %w", video.OriginalPath, err)
	}

	audioPath := filepath.Join(s.audioDir, video.ID.String()+".wav")
	if _, err := s.tools.ExtractAudio(ctx, video.OriginalPath, audioPath, localmedia.AudioExtractOptions{
		SampleRateHz: 16000,
		Channels:     1,
	}); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}

	updates := map[string]interface{}{
		"audio_path": audioPath,
	}
	if probe.DurationSeconds != nil {
		updates["duration_seconds"] = *probe.DurationSeconds
	}
	if probe.FPS != nil {
		updates["fps"] = *probe.FPS
	}
	if len(probe.Raw) > 0 {
		updates["raw_metadata"] = datatypes.JSON(probe.Raw)
	}
	if err := s.videos.UpdateFields(ctx, video.ID, updates); err != nil {
		return fmt.Errorf("persist ingest results: %w", err)
	}
	return nil
}
