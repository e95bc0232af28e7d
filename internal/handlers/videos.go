package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/pipeline"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/repos"
)

type VideosHandler struct {
	log    *logger.Logger
	cfg    *config.Config
	videos repos.VideoRepo
	jobs   repos.JobRepo
	clips  repos.ClipRepo

	orch    *pipeline.Orchestrator
	ingest  pipeline.Stage
	analyze pipeline.Stage
	render  pipeline.Stage
}

func NewVideosHandler(cfg *config.Config, videos repos.VideoRepo, jobs repos.JobRepo, clips repos.ClipRepo, orch *pipeline.Orchestrator, ingest, analyze, render pipeline.Stage, log *logger.Logger) *VideosHandler {
	return &VideosHandler{
		log:     log.With("handler", "VideosHandler"),
		cfg:     cfg,
		videos:  videos,
		jobs:    jobs,
		clips:   clips,
		orch:    orch,
		ingest:  ingest,
		analyze: analyze,
		render:  render,
	}
}

// clipSettingsRequest mirrors config.ClipSettings for request bodies;
// zero values fall back to the configured defaults.
type clipSettingsRequest struct {
	MinDuration        float64 `json:"min_duration" form:"min_duration"`
	MaxDuration        float64 `json:"max_duration" form:"max_duration"`
	MinEngagementScore int     `json:"min_engagement_score" form:"min_engagement_score"`
	VideoQuality       string  `json:"video_quality" form:"video_quality"`
	VideoFormat        string  `json:"video_format" form:"video_format"`
	AspectRatio        string  `json:"aspect_ratio" form:"aspect_ratio"`
	Device             string  `json:"device" form:"device"`
	BurnCaptions       bool    `json:"burn_captions" form:"burn_captions"`
	TitleOverlay       bool    `json:"title_overlay" form:"title_overlay"`
}

func (r clipSettingsRequest) toSettings(defaults config.ClipSettings) config.ClipSettings {
	s := config.ClipSettings{
		MinDuration:        r.MinDuration,
		MaxDuration:        r.MaxDuration,
		MinEngagementScore: r.MinEngagementScore,
		VideoQuality:       r.VideoQuality,
		VideoFormat:        r.VideoFormat,
		AspectRatio:        r.AspectRatio,
		Device:             r.Device,
		BurnCaptions:       r.BurnCaptions,
		TitleOverlay:       r.TitleOverlay,
		AutoTitleMinChars:  defaults.AutoTitleMinChars,
	}
	return s.Normalized()
}

type youtubeDownloadRequest struct {
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
	clipSettingsRequest
}

// POST /api/videos
// Multipart upload; registers the video and runs the ingest stage only.
func (h *VideosHandler) Upload(c *gin.Context) {
	video, job, ok := h.registerUpload(c)
	if !ok {
		return
	}
	go func() {
		if err := h.ingest.Execute(context.Background(), job.ID, h.cfg.Defaults.Normalized()); err != nil {
			h.log.Warn("Ingest run ended with error", "job_id", job.ID, "error", err)
		}
	}()
	RespondAccepted(c, gin.H{"video_id": video.ID, "job_id": job.ID, "status": job.Status})
}

// POST /api/videos/process-upload
// Multipart upload; runs the whole pipeline in the background.
func (h *VideosHandler) ProcessUpload(c *gin.Context) {
	var req clipSettingsRequest
	_ = c.ShouldBind(&req)
	settings := req.toSettings(h.cfg.Defaults)

	video, job, ok := h.registerUpload(c)
	if !ok {
		return
	}
	ingestJobID := job.ID
	go h.orch.Run(context.Background(), video.ID, nil, &ingestJobID, settings)
	RespondAccepted(c, gin.H{
		"video_id":       video.ID,
		"initial_job_id": job.ID,
		"message":        "Upload received; pipeline is running.",
	})
}

// POST /api/videos/youtube
// Registers a remote video and runs download plus the whole pipeline.
func (h *VideosHandler) DownloadFromYouTube(c *gin.Context) {
	h.runYouTubePipeline(c, "YouTube download started; pipeline is running.")
}

// POST /api/videos/process-youtube
// Same pipeline as /youtube; kept as a separate route for clients that
// distinguish "download" from "process" entry points.
func (h *VideosHandler) ProcessFromYouTube(c *gin.Context) {
	h.runYouTubePipeline(c, "Processing started. Check job status for progress.")
}

func (h *VideosHandler) runYouTubePipeline(c *gin.Context, message string) {
	var req youtubeDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	settings := req.toSettings(h.cfg.Defaults)

	videoID := uuid.New()
	originalPath := filepath.Join(h.cfg.VideosDir(), videoID.String()+".mp4")
	title := req.Title
	if title == "" {
		title = "Downloaded Video"
	}
	sourceURL := req.URL
	video := &domain.Video{
		ID:           videoID,
		Title:        title,
		OriginalPath: originalPath,
		SourceURL:    &sourceURL,
	}
	if err := h.videos.Create(c.Request.Context(), video); err != nil {
		RespondError(c, http.StatusInternalServerError, "video_create_failed", err)
		return
	}
	job := &domain.Job{ID: uuid.New(), VideoID: videoID, JobType: domain.JobTypeDownload, Status: domain.JobPending}
	if err := h.jobs.Create(c.Request.Context(), job); err != nil {
		RespondError(c, http.StatusInternalServerError, "job_create_failed", err)
		return
	}

	downloadJobID := job.ID
	go h.orch.Run(context.Background(), videoID, &downloadJobID, nil, settings)
	RespondAccepted(c, gin.H{
		"video_id":       videoID,
		"initial_job_id": job.ID,
		"message":        message,
	})
}

// GET /api/videos/:id/heatmap
// Per-second engagement scores gathered during analysis.
func (h *VideosHandler) Heatmap(c *gin.Context) {
	video, ok := h.loadVideo(c)
	if !ok {
		return
	}
	var heatmap []json.RawMessage
	if !domain.AnalysisDataKey(video.AnalysisData, domain.AnalysisKeyHeatmap, &heatmap) || len(heatmap) == 0 {
		RespondError(c, http.StatusNotFound, "heatmap_not_available", fmt.Errorf("video %s has not been analyzed", video.ID))
		return
	}
	RespondOK(c, gin.H{"video_id": video.ID, "heatmap": heatmap})
}

// POST /api/videos/:id/reprocess
// Re-runs the pipeline from ingest; idempotent stages skip finished work.
func (h *VideosHandler) Reprocess(c *gin.Context) {
	video, ok := h.loadVideo(c)
	if !ok {
		return
	}
	var req clipSettingsRequest
	_ = c.ShouldBindJSON(&req)
	settings := req.toSettings(h.cfg.Defaults)

	go h.orch.Run(context.Background(), video.ID, nil, nil, settings)
	RespondAccepted(c, gin.H{
		"video_id": video.ID,
		"message":  "Reprocess started; pipeline is running.",
	})
}

// POST /api/videos/:id/ingest
func (h *VideosHandler) StartIngest(c *gin.Context) {
	h.startStage(c, h.ingest, nil)
}

// POST /api/videos/:id/analyze
func (h *VideosHandler) StartAnalysis(c *gin.Context) {
	h.startStage(c, h.analyze, func(video *domain.Video) error {
		if video.AudioPath == nil || video.DurationSeconds == nil {
			return fmt.Errorf("video must be ingested before analysis")
		}
		return nil
	})
}

// POST /api/videos/:id/generate-clips
func (h *VideosHandler) GenerateClips(c *gin.Context) {
	h.startStage(c, h.render, func(video *domain.Video) error {
		count, err := h.clips.CountByVideo(c.Request.Context(), video.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("video must be analyzed before generating clips")
		}
		return nil
	})
}

// GET /api/videos/:id
func (h *VideosHandler) Get(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_video_id", err)
		return
	}
	video, err := h.videos.GetWithJobs(c.Request.Context(), videoID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "video_lookup_failed", err)
		return
	}
	if video == nil {
		RespondError(c, http.StatusNotFound, "video_not_found", fmt.Errorf("video %s not found", videoID))
		return
	}
	RespondOK(c, gin.H{"video": video})
}

// GET /api/videos
func (h *VideosHandler) List(c *gin.Context) {
	videos, err := h.videos.List(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "video_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"videos": videos})
}

// DELETE /api/videos/:id
// Removes the video row (jobs and clips cascade) and its files.
func (h *VideosHandler) Delete(c *gin.Context) {
	video, ok := h.loadVideo(c)
	if !ok {
		return
	}
	if err := h.videos.Delete(c.Request.Context(), video.ID); err != nil {
		RespondError(c, http.StatusInternalServerError, "video_delete_failed", err)
		return
	}
	_ = os.Remove(video.OriginalPath)
	if video.AudioPath != nil {
		_ = os.Remove(*video.AudioPath)
	}
	_ = os.RemoveAll(h.cfg.RendersDirFor(video.ID.String()))
	RespondOK(c, gin.H{"deleted": video.ID})
}

func (h *VideosHandler) registerUpload(c *gin.Context) (*domain.Video, *domain.Job, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return nil, nil, false
	}

	videoID := uuid.New()
	suffix := filepath.Ext(file.Filename)
	if suffix == "" {
		suffix = ".mp4"
	}
	originalPath := filepath.Join(h.cfg.VideosDir(), videoID.String()+suffix)
	if err := os.MkdirAll(filepath.Dir(originalPath), 0o755); err != nil {
		RespondError(c, http.StatusInternalServerError, "storage_unavailable", err)
		return nil, nil, false
	}
	if err := c.SaveUploadedFile(file, originalPath); err != nil {
		RespondError(c, http.StatusInternalServerError, "upload_save_failed", err)
		return nil, nil, false
	}

	video := &domain.Video{
		ID:           videoID,
		Title:        c.PostForm("title"),
		OriginalPath: originalPath,
	}
	if err := h.videos.Create(c.Request.Context(), video); err != nil {
		RespondError(c, http.StatusInternalServerError, "video_create_failed", err)
		return nil, nil, false
	}
	job := &domain.Job{ID: uuid.New(), VideoID: videoID, JobType: domain.JobTypeIngest, Status: domain.JobPending}
	if err := h.jobs.Create(c.Request.Context(), job); err != nil {
		RespondError(c, http.StatusInternalServerError, "job_create_failed", err)
		return nil, nil, false
	}
	return video, job, true
}

func (h *VideosHandler) startStage(c *gin.Context, stage pipeline.Stage, precheck func(*domain.Video) error) {
	video, ok := h.loadVideo(c)
	if !ok {
		return
	}
	if precheck != nil {
		if err := precheck(video); err != nil {
			RespondError(c, http.StatusConflict, "precondition_failed", err)
			return
		}
	}

	var req clipSettingsRequest
	_ = c.ShouldBindJSON(&req)
	settings := req.toSettings(h.cfg.Defaults)

	job := &domain.Job{ID: uuid.New(), VideoID: video.ID, JobType: stage.Type(), Status: domain.JobPending}
	if err := h.jobs.Create(c.Request.Context(), job); err != nil {
		RespondError(c, http.StatusInternalServerError, "job_create_failed", err)
		return
	}
	go func() {
		if err := stage.Execute(context.Background(), job.ID, settings); err != nil {
			h.log.Warn("Stage run ended with error", "job_type", stage.Type(), "job_id", job.ID, "error", err)
		}
	}()
	RespondAccepted(c, gin.H{"job_id": job.ID, "status": job.Status})
}

func (h *VideosHandler) loadVideo(c *gin.Context) (*domain.Video, bool) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_video_id", err)
		return nil, false
	}
	video, err := h.videos.GetByID(c.Request.Context(), videoID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "video_lookup_failed", err)
		return nil, false
	}
	if video == nil {
		RespondError(c, http.StatusNotFound, "video_not_found", fmt.Errorf("video %s not found", videoID))
		return nil, false
	}
	return video, true
}
