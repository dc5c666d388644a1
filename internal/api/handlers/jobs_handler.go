package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/engine/internal/api/types"
	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/services"
)

// JobsHandler exposes the batch job lifecycle.
type JobsHandler struct {
	jobs services.BatchJobService
}

func NewJobsHandler(jobs services.BatchJobService) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.JobCreateRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.jobs.InitiateBatchJob(r.Context(), chi.URLParam(r, "type"), req.Input, req.Env)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "job submitted", job)
}

func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.JobStatus(r.URL.Query().Get("status"))
	jobs, err := h.jobs.GetAllJobs(r.Context(), chi.URLParam(r, "type"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    jobs,
		Meta:    &types.Meta{Total: int64(len(jobs))},
	})
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJobStatus(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", job)
}

func (h *JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.jobs.DeleteBatchJob(r.Context(), chi.URLParam(r, "type"), name); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "deleted", map[string]string{"name": name})
}

// Abort stops the job's runner and marks the record aborted.
func (h *JobsHandler) Abort(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.RemoveJobAndUpdateStatus(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "aborted", job)
}
