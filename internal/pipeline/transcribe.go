package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/repos"
	"github.com/yungbote/clipcut-backend/internal/services"
)

// TranscribeStage runs speech-to-text over the extracted audio and
// stores the time-aligned segments under the video's analysis data.
type TranscribeStage struct {
	log         *logger.Logger
	videos      repos.VideoRepo
	jobs        repos.JobRepo
	transcriber services.Transcriber
}

func NewTranscribeStage(videos repos.VideoRepo, jobs repos.JobRepo, transcriber services.Transcriber, log *logger.Logger) *TranscribeStage {
	return &TranscribeStage{
		log:         log.With("stage", "transcribe"),
		videos:      videos,
		jobs:        jobs,
		transcriber: transcriber,
	}
}

func (s *TranscribeStage) Type() domain.JobType { return domain.JobTypeTranscription }

func (s *TranscribeStage) Execute(ctx context.Context, jobID uuid.UUID, settings config.ClipSettings) error {
	return finish(ctx, s.jobs, s.log, jobID, "transcribing", s.run(ctx, jobID, settings))
}

func (s *TranscribeStage) run(ctx context.Context, jobID uuid.UUID, settings config.ClipSettings) error {
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

	if len(domain.TranscriptFrom(video.AnalysisData)) > 0 {
		s.log.Info("Transcript already present", "video_id", video.ID)
		return nil
	}

	if err := s.jobs.MarkRunning(ctx, jobID, "transcribing"); err != nil {
		return err
	}
	if video.AudioPath == nil || *video.AudioPath == "" {
		return fmt.Errorf("audio path missing; ingest must complete first")
	}
	if !fileExists(*video.AudioPath) {
		return fmt.Errorf("audio file not found at %s", *video.AudioPath)
	}

	result, err := s.transcriber.Transcribe(ctx, *video.AudioPath, settings.Device)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	merged, err := domain.MergeAnalysisData(video.AnalysisData, map[string]any{
		domain.AnalysisKeyTranscript:         result.Segments,
		domain.AnalysisKeyTranscriptLanguage: result.Language,
	})
	if err != nil {
		return fmt.Errorf("merge transcript: %w", err)
	}
	if err := s.videos.UpdateFields(ctx, video.ID, map[string]interface{}{"analysis_data": merged}); err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}
	s.log.Info("Transcription complete", "video_id", video.ID, "segments", len(result.Segments), "language", result.Language)
	return nil
}
