package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/repos"
)

type ClipsHandler struct {
	log    *logger.Logger
	clips  repos.ClipRepo
	videos repos.VideoRepo
}

func NewClipsHandler(clips repos.ClipRepo, videos repos.VideoRepo, log *logger.Logger) *ClipsHandler {
	return &ClipsHandler{
		log:    log.With("handler", "ClipsHandler"),
		clips:  clips,
		videos: videos,
	}
}

// GET /api/videos/:id/clips
func (h *ClipsHandler) ListByVideo(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_video_id", err)
		return
	}
	video, err := h.videos.GetByID(c.Request.Context(), videoID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "video_lookup_failed", err)
		return
	}
	if video == nil {
		RespondError(c, http.StatusNotFound, "video_not_found", fmt.Errorf("video %s not found", videoID))
		return
	}
	clips, err := h.clips.ListByVideo(c.Request.Context(), videoID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "clip_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"clips": clips})
}

// GET /api/clips/:id/download
func (h *ClipsHandler) Download(c *gin.Context) {
	clipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_clip_id", err)
		return
	}
	clip, err := h.clips.GetByID(c.Request.Context(), clipID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "clip_lookup_failed", err)
		return
	}
	if clip == nil {
		RespondError(c, http.StatusNotFound, "clip_not_found", fmt.Errorf("clip %s not found", clipID))
		return
	}
	if clip.OutputPath == nil || *clip.OutputPath == "" {
		RespondError(c, http.StatusNotFound, "clip_not_rendered", fmt.Errorf("clip %s not yet generated", clipID))
		return
	}
	if _, err := os.Stat(*clip.OutputPath); err != nil {
		RespondError(c, http.StatusNotFound, "clip_file_missing", fmt.Errorf("clip file not found"))
		return
	}
	c.FileAttachment(*clip.OutputPath, filepath.Base(*clip.OutputPath))
}
