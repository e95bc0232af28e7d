package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/repos"
)

type JobsHandler struct {
	log  *logger.Logger
	jobs repos.JobRepo
}

func NewJobsHandler(jobs repos.JobRepo, log *logger.Logger) *JobsHandler {
	return &JobsHandler{
		log:  log.With("handler", "JobsHandler"),
		jobs: jobs,
	}
}

// GET /api/jobs/:id
func (h *JobsHandler) Get(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "job_lookup_failed", err)
		return
	}
	if job == nil {
		RespondError(c, http.StatusNotFound, "job_not_found", fmt.Errorf("job %s not found", jobID))
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// GET /api/videos/:id/jobs
func (h *JobsHandler) ListByVideo(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_video_id", err)
		return
	}
	jobs, err := h.jobs.ListByVideo(c.Request.Context(), videoID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "job_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"jobs": jobs})
}

// POST /api/jobs/:id/cancel
// Forces a non-terminal job to FAILED with the cancellation sentinel.
// Running stages observe it at their next checkpoint; the orchestrator
// stops retrying once it sees the sentinel.
func (h *JobsHandler) Cancel(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	cancelled, err := h.jobs.Cancel(c.Request.Context(), jobID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "job_cancel_failed", err)
		return
	}
	if !cancelled {
		RespondError(c, http.StatusConflict, "job_not_cancellable", fmt.Errorf("job %s is already terminal or missing", jobID))
		return
	}
	h.log.Info("Job cancelled", "job_id", jobID)
	RespondOK(c, gin.H{"cancelled": jobID})
}
