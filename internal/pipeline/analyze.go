package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/engagement"
	"github.com/yungbote/clipcut-backend/internal/platform/llm"
	"github.com/yungbote/clipcut-backend/internal/platform/localmedia"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/repos"
	"github.com/yungbote/clipcut-backend/internal/services"
)

const (
	storedSegmentsCap = 100
	storedScenesCap   = 50
)

// AnalyzeStage builds the engagement heatmap and selects clip
// candidates: per-second audio energy, scene changes, the heuristic
// score blend and the sliding-window selection. Clip rows are created
// here in rank order; the render stage fills them in later.
type AnalyzeStage struct {
	log        *logger.Logger
	videos     repos.VideoRepo
	jobs       repos.JobRepo
	clips      repos.ClipRepo
	tools      localmedia.Tools
	scenes     services.SceneDetector
	llm        llm.Client
	heatmapDir string
}

func NewAnalyzeStage(videos repos.VideoRepo, jobs repos.JobRepo, clips repos.ClipRepo, tools localmedia.Tools, scenes services.SceneDetector, llmClient llm.Client, heatmapDir string, log *logger.Logger) *AnalyzeStage {
	return &AnalyzeStage{
		log:        log.With("stage", "analyze"),
		videos:     videos,
		jobs:       jobs,
		clips:      clips,
		tools:      tools,
		scenes:     scenes,
		llm:        llmClient,
		heatmapDir: heatmapDir,
	}
}

func (s *AnalyzeStage) Type() domain.JobType { return domain.JobTypeAnalysis }

func (s *AnalyzeStage) Execute(ctx context.Context, jobID uuid.UUID, settings config.ClipSettings) error {
	return finish(ctx, s.jobs, s.log, jobID, "analyzing", s.run(ctx, jobID, settings))
}

func (s *AnalyzeStage) run(ctx context.Context, jobID uuid.UUID, settings config.ClipSettings) error {
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

	// Clips plus a stored heatmap mean a previous run finished.
	count, err := s.clips.CountByVideo(ctx, video.ID)
	if err != nil {
		return err
	}
	var heatmap []engagement.ScoredSegment
	if count > 0 && domain.AnalysisDataKey(video.AnalysisData, domain.AnalysisKeyHeatmap, &heatmap) && len(heatmap) > 0 {
		s.log.Info("Analysis already complete", "video_id", video.ID, "clips", count)
		return nil
	}

	if err := s.jobs.MarkRunning(ctx, jobID, "analyzing"); err != nil {
		return err
	}
	if video.AudioPath == nil || video.DurationSeconds == nil {
		return fmt.Errorf("video must be ingested before analysis")
	}
	duration := *video.DurationSeconds

	if err := s.jobs.SetProgress(ctx, jobID, 0.2, "analyzing_audio"); err != nil {
		return err
	}
	energies, err := s.tools.AudioEnergy(ctx, *video.AudioPath, duration)
	if err != nil {
		return fmt.Errorf("audio energy: %w", err)
	}
	windows := make([]engagement.EnergyWindow, len(energies))
	for i, e := range energies {
		windows[i] = engagement.EnergyWindow{Start: float64(i), End: float64(i + 1), Energy: e}
	}

	if err := s.jobs.SetProgress(ctx, jobID, 0.5, "detecting_scenes"); err != nil {
		return err
	}
	sceneChanges, err := s.scenes.DetectScenes(ctx, video.OriginalPath)
	if err != nil {
		return fmt.Errorf("scene detection: %w", err)
	}

	if err := s.jobs.SetProgress(ctx, jobID, 0.7, "scoring_engagement"); err != nil {
		return err
	}
	scored := engagement.ScoreSegments(windows, sceneChanges, duration)
	transcript := domain.TranscriptFrom(video.AnalysisData)
	scored = engagement.Refine(ctx, s.llm, s.log, scored, transcript)

	if err := s.jobs.SetProgress(ctx, jobID, 0.9, "finding_clips"); err != nil {
		return err
	}
	best := engagement.FindBestClips(scored, settings.MinDuration, settings.MaxDuration, float64(settings.MinEngagementScore))

	clipRows := make([]*domain.Clip, 0, len(best))
	for i, c := range best {
		clipRows = append(clipRows, &domain.Clip{
			ID:              uuid.New(),
			VideoID:         video.ID,
			StartTime:       c.Start,
			EndTime:         c.End,
			EngagementScore: c.AvgEngagementScore,
			Rank:            i + 1,
		})
	}
	if len(clipRows) > 0 {
		if err := s.clips.CreateBatch(ctx, clipRows); err != nil {
			return fmt.Errorf("persist clips: %w", err)
		}
	}

	merged, err := domain.MergeAnalysisData(video.AnalysisData, map[string]any{
		domain.AnalysisKeySegments:     capSegments(scored, storedSegmentsCap),
		domain.AnalysisKeySceneChanges: capFloats(sceneChanges, storedScenesCap),
		domain.AnalysisKeyBestClips:    best,
		domain.AnalysisKeyHeatmap:      scored,
	})
	if err != nil {
		return fmt.Errorf("merge analysis data: %w", err)
	}
	if err := s.videos.UpdateFields(ctx, video.ID, map[string]interface{}{"analysis_data": merged}); err != nil {
		return fmt.Errorf("persist analysis data: %w", err)
	}

	s.exportHeatmap(video.ID, scored)
	s.log.Info("Analysis complete", "video_id", video.ID, "clips", len(clipRows), "scenes", len(sceneChanges))
	return nil
}

// exportHeatmap writes the full scored sequence to disk for external
// display tooling. Failures only log; the database copy is canonical.
func (s *AnalyzeStage) exportHeatmap(videoID uuid.UUID, scored []engagement.ScoredSegment) {
	if s.heatmapDir == "" {
		return
	}
	if err := os.MkdirAll(s.heatmapDir, 0o755); err != nil {
		s.log.Warn("Heatmap dir unavailable", "error", err)
		return
	}
	path := filepath.Join(s.heatmapDir, videoID.String()+".json")
	data, err := json.Marshal(scored)
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		s.log.Warn("Heatmap export failed", "video_id", videoID, "error", err)
	}
}

func capSegments(segs []engagement.ScoredSegment, n int) []engagement.ScoredSegment {
	if len(segs) > n {
		return segs[:n]
	}
	return segs
}

func capFloats(vals []float64, n int) []float64 {
	if len(vals) > n {
		return vals[:n]
	}
	return vals
}
