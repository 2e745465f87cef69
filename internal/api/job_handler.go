package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/api/shared"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/service"
)

// JobHandler handles research-job HTTP requests
type JobHandler struct {
	jobService service.JobService
	validator  *validator.Validate
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobService service.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		validator:  validator.New(),
	}
}

// CreateJob handles POST /api/jobs requests
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid owner ID")
		return
	}

	depth := domain.ResearchDepth(req.Depth)
	if req.Depth == "" {
		depth = domain.ResearchDepthQuick
	}

	job, err := h.jobService.CreateJob(r.Context(), ownerID, req.Subjects, depth, req.Concurrency)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	detail := &service.JobDetail{Job: job}
	detail.Counts.Total = job.TotalCount
	detail.Counts.Pending = job.TotalCount

	// 202: the research itself happens asynchronously.
	shared.RespondWithJSON(w, r, http.StatusAccepted, NewJobResponse(detail))
}

// GetJob handles GET /api/jobs/{id} requests
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDFromURL(w, r)
	if !ok {
		return
	}

	detail, err := h.jobService.GetJob(r.Context(), jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewJobResponse(detail))
}

// TickJob handles POST /api/jobs/{id}/tick requests
func (h *JobHandler) TickJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDFromURL(w, r)
	if !ok {
		return
	}

	// The body is optional: an empty tick uses the job's depth default.
	var req TickRequest
	if err := shared.DecodeJSON(r, &req); err != nil && err != io.EOF {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.jobService.TriggerTick(r.Context(), jobID, req.Concurrency); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]string{
		"job_id": jobID.String(),
		"status": "tick_enqueued",
	})
}

// CancelJob handles POST /api/jobs/{id}/cancel requests
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.jobService.CancelJob(r.Context(), jobID); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"job_id": jobID.String(),
		"status": "cancelled",
	})
}

// jobIDFromURL parses the {id} path parameter, responding with 400 on
// malformed IDs.
func (h *JobHandler) jobIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return jobID, true
}
