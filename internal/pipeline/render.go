package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/localmedia"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/repos"
	"github.com/yungbote/clipcut-backend/internal/services"
)

// RenderStage encodes each selected clip in rank order: vertical crop,
// capped resolution, loudness normalization, optional burned captions
// and title overlay. Before every clip it re-reads the job so an
// external cancel takes effect between clips; clips rendered before
// the cancel keep their files.
type RenderStage struct {
	log       *logger.Logger
	cfg       *config.Config
	videos    repos.VideoRepo
	jobs      repos.JobRepo
	clips     repos.ClipRepo
	tools     localmedia.Tools
	captioner services.Captioner
	notifier  services.ClipNotifier
}

func NewRenderStage(cfg *config.Config, videos repos.VideoRepo, jobs repos.JobRepo, clips repos.ClipRepo, tools localmedia.Tools, captioner services.Captioner, notifier services.ClipNotifier, log *logger.Logger) *RenderStage {
	return &RenderStage{
		log:       log.With("stage", "render"),
		cfg:       cfg,
		videos:    videos,
		jobs:      jobs,
		clips:     clips,
		tools:     tools,
		captioner: captioner,
		notifier:  notifier,
	}
}

func (s *RenderStage) Type() domain.JobType { return domain.JobTypeGenerateClips }

func (s *RenderStage) Execute(ctx context.Context, jobID uuid.UUID, settings config.ClipSettings) error {
	return finish(ctx, s.jobs, s.log, jobID, "generating_clips", s.run(ctx, jobID, settings))
}

func (s *RenderStage) run(ctx context.Context, jobID uuid.UUID, settings config.ClipSettings) error {
	job, err := loadJob(ctx, s.jobs, jobID)
	if err != nil {
		return err
	}
	clips, err := s.clips.ListByVideo(ctx, job.VideoID)
	if err != nil {
		return err
	}

	if done, n := allRendered(clips); done {
		s.log.Info("Clips already rendered", "video_id", job.VideoID, "clips", n)
		return nil
	}

	if err := s.jobs.MarkRunning(ctx, jobID, "generating_clips"); err != nil {
		return err
	}
	if len(clips) == 0 {
		return fmt.Errorf("no clips found to generate")
	}

	video, err := s.videos.GetByID(ctx, job.VideoID)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("video %s not found", job.VideoID)
	}

	transcript := domain.TranscriptFrom(video.AnalysisData)
	titleText := s.resolveTitle(ctx, video, transcript, settings)

	outDir := s.cfg.RendersDirFor(video.ID.String())
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create renders dir: %w", err)
	}

	total := len(clips)
	for idx, clip := range clips {
		// Cancellation checkpoint: a fresh read, never the copy the
		// loop started with.
		fresh, err := s.jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if fresh == nil || fresh.Cancelled() {
			return errCancelled
		}

		step := fmt.Sprintf("generating_clip_%d_of_%d", idx+1, total)
		if err := s.jobs.SetProgress(ctx, jobID, float64(idx)/float64(total), step); err != nil {
			return err
		}

		outPath := filepath.Join(outDir, fmt.Sprintf("clip_%d_%s.mp4", clip.Rank, clip.ID))
		clipDuration := clip.EndTime - clip.StartTime

		if fileExists(outPath) {
			if err := s.clips.UpdateFields(ctx, clip.ID, map[string]interface{}{
				"output_path": outPath,
				"duration":    clipDuration,
			}); err != nil {
				return err
			}
			continue
		}

		clipTranscript := transcriptSlice(transcript, clip.StartTime, clip.EndTime)
		subtitlePath := ""
		if settings.BurnCaptions && len(clipTranscript) > 0 {
			subtitlePath, err = s.writeSubtitles(clip.ID, clipTranscript)
			if err != nil {
				s.log.Warn("Subtitle synthesis failed, rendering without captions", "clip_id", clip.ID, "error", err)
				subtitlePath = ""
			}
		}

		err = s.tools.RenderClip(ctx, localmedia.RenderClipOptions{
			InputPath:         video.OriginalPath,
			OutputPath:        outPath,
			StartTime:         clip.StartTime,
			EndTime:           clip.EndTime,
			AspectRatio:       settings.AspectRatio,
			VideoQuality:      settings.VideoQuality,
			VideoFormat:       settings.VideoFormat,
			NormalizeLoudness: true,
			SubtitlePath:      subtitlePath,
			TitleText:         titleText,
		})
		if subtitlePath != "" {
			_ = os.Remove(subtitlePath)
		}
		if err != nil {
			return fmt.Errorf("render clip rank %d: %w", clip.Rank, err)
		}

		updates := map[string]interface{}{
			"output_path": outPath,
			"duration":    clipDuration,
		}
		clipText := transcriptText(clipTranscript)
		if tags := s.captioner.Hashtags(ctx, clipText); tags != "" {
			updates["hashtags"] = tags
			clip.Hashtags = &tags
		}
		if err := s.clips.UpdateFields(ctx, clip.ID, updates); err != nil {
			return err
		}
		clip.OutputPath = &outPath
		clip.Duration = &clipDuration

		// Delivery failures are logged inside the notifier and never
		// fail the render.
		s.notifier.NotifyClip(ctx, clip, video.Title, outPath)
	}
	return nil
}

// resolveTitle picks the overlay text: the stored title when present,
// otherwise a generated one when enough transcript exists.
func (s *RenderStage) resolveTitle(ctx context.Context, video *domain.Video, transcript []domain.TranscriptSegment, settings config.ClipSettings) string {
	if !settings.TitleOverlay {
		return ""
	}
	if video.Title != "" && video.Title != placeholderTitle {
		return video.Title
	}
	text := transcriptText(transcript)
	if len(text) < settings.AutoTitleMinChars {
		return ""
	}
	if title := s.captioner.VideoTitle(ctx, text); title != "" {
		if err := s.videos.UpdateFields(ctx, video.ID, map[string]interface{}{"title": title}); err != nil {
			s.log.Warn("Failed to store generated title", "video_id", video.ID, "error", err)
		}
		return title
	}
	return ""
}

func (s *RenderStage) writeSubtitles(clipID uuid.UUID, segments []domain.TranscriptSegment) (string, error) {
	dir := s.cfg.ArtifactsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, clipID.String()+".srt")
	if err := os.WriteFile(path, []byte(buildSRT(segments)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// allRendered reports whether every clip that already has an output
// path also has its file on disk, and at least one such clip exists.
func allRendered(clips []*domain.Clip) (bool, int) {
	n := 0
	for _, c := range clips {
		if c.OutputPath == nil || *c.OutputPath == "" {
			continue
		}
		if !fileExists(*c.OutputPath) {
			return false, 0
		}
		n++
	}
	return n > 0, n
}
