package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/engine"
	"github.com/yungbote/sagacore/internal/httpapi/response"
	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/provider"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

// JobHandler exposes read-only inspection of Job/Step/Chunk state plus a
// manual requeue operation, scoped to this domain's own verbs: a saga
// has no "cancel", only requeue-for-another-pass.
type JobHandler struct {
	prov        provider.Provider
	retryEngine engine.Engine
	log         *logger.Logger
}

func NewJobHandler(prov provider.Provider, retryEngine engine.Engine, log *logger.Logger) *JobHandler {
	return &JobHandler{prov: prov, retryEngine: retryEngine, log: log.With("component", "JobHandler")}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	jobs, err := h.prov.GetJobStates(c.Request.Context(), []uuid.UUID{id})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "load_job_failed", err)
		return
	}
	if len(jobs) == 0 {
		response.RespondError(c, http.StatusNotFound, "job_not_found", nil)
		return
	}
	response.RespondOK(c, gin.H{"job": jobs[0]})
}

// GET /api/jobs/:id/steps/:step_id/chunks?cursor=&page_size=
func (h *JobHandler) ListStepChunks(c *gin.Context) {
	stepID, err := uuid.Parse(c.Param("step_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_step_id", err)
		return
	}
	pageSize := 200
	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pageSize = n
		}
	}
	chunks, next, err := h.prov.GetChunksForStep(c.Request.Context(), stepID, c.Query("cursor"), pageSize)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "load_chunks_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"chunks": chunks, "next_cursor": next})
}

// POST /api/jobs/:id/requeue
//
// Hands the job back to the retry Engine for another batch pass. This
// never resets any Job/Step/Chunk state — a saga resumes exactly where
// its persisted CurrentStepIndex/Direction left it, so requeue is safe
// to call on any non-terminal job at any time.
func (h *JobHandler) RequeueJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	if h.retryEngine == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "requeue_unavailable", nil)
		return
	}
	jobs, err := h.prov.GetJobStates(c.Request.Context(), []uuid.UUID{id})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "load_job_failed", err)
		return
	}
	if len(jobs) == 0 {
		response.RespondError(c, http.StatusNotFound, "job_not_found", nil)
		return
	}
	job := jobs[0]
	if isTerminal(job.Status) {
		response.RespondError(c, http.StatusConflict, "job_already_terminal", nil)
		return
	}
	if err := h.retryEngine.Start(c.Request.Context(), []*sagatypes.Job{job}); err != nil {
		response.RespondError(c, http.StatusBadGateway, "requeue_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

func isTerminal(status sagatypes.JobStatus) bool {
	switch status {
	case sagatypes.JobCompleted, sagatypes.JobFailed, sagatypes.JobCompensationFailed:
		return true
	default:
		return false
	}
}
