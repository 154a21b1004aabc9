package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"vidsum/internal/jobs"
	"vidsum/internal/logging"
	"vidsum/internal/pipeline"
	"vidsum/internal/services"
	"vidsum/internal/workflow"
)

const maxSubmissionBytes = 64 << 10

type handlers struct {
	store    *jobs.Store
	workflow StatusReporter
	logger   *slog.Logger
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	var sub jobs.Submission
	body := io.LimitReader(r.Body, maxSubmissionBytes)
	if err := json.NewDecoder(body).Decode(&sub); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	job, err := pipeline.NewJob(sub.SourceURL, sub.UserID, sub.ID)
	if err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid submission", services.Reason(err))
		return
	}
	created, err := h.store.Submit(r.Context(), jobs.Submission{ID: job.ID, UserID: job.UserID, SourceURL: job.SourceURL})
	switch {
	case errors.Is(err, jobs.ErrDuplicate):
		WriteErrorDetail(w, http.StatusConflict, "job already exists", job.ID)
		return
	case errors.Is(err, jobs.ErrInvalid):
		WriteErrorDetail(w, http.StatusBadRequest, "invalid submission", err.Error())
		return
	case err != nil:
		h.internal(w, r, err)
		return
	}
	logging.WithContext(r.Context(), h.logger).Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String(logging.FieldJobID, created.ID),
		logging.String(logging.FieldUserID, created.UserID),
	)
	WriteJSON(w, http.StatusAccepted, FromJob(created))
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	var statuses []jobs.Status
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, ok := jobs.ParseStatus(part)
			if !ok {
				WriteErrorDetail(w, http.StatusBadRequest, "unknown status", part)
				return
			}
			statuses = append(statuses, status)
		}
	}
	list, err := h.store.List(r.Context(), statuses...)
	if err != nil {
		h.internal(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, JobListResponse{Jobs: FromJobs(list)})
}

func (h *handlers) describe(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, FromJob(job))
}

func (h *handlers) result(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if job.Status != jobs.StatusCompleted && job.Status != jobs.StatusCompletedEmpty {
		detail := string(job.Status)
		if job.Status == jobs.StatusFailed && job.ErrorMessage != "" {
			detail += ": " + job.ErrorMessage
		}
		WriteErrorDetail(w, http.StatusConflict, "result not available", detail)
		return
	}
	result, err := pipeline.LoadResult(job.ResultPath)
	if errors.Is(err, os.ErrNotExist) {
		WriteErrorDetail(w, http.StatusNotFound, "result file missing", job.ResultPath)
		return
	}
	if err != nil {
		h.internal(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *handlers) retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.Retry(r.Context(), id)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		WriteError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, jobs.ErrNotRetryable):
		WriteErrorDetail(w, http.StatusConflict, "job is not retryable", id)
		return
	case err != nil:
		h.internal(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, FromJob(job))
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch err := h.store.Remove(r.Context(), id); {
	case errors.Is(err, jobs.ErrNotFound):
		WriteError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrInFlight):
		WriteErrorDetail(w, http.StatusConflict, "job is in flight", id)
	case err != nil:
		h.internal(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthResponse reports store reachability and workflow readiness.
type HealthResponse struct {
	Status   string                  `json:"status"`
	Database string                  `json:"database"`
	Workflow *workflow.StatusSummary `json:"workflow,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		resp.Status = "unavailable"
		resp.Database = err.Error()
		code = http.StatusServiceUnavailable
	}
	if h.workflow != nil {
		summary := h.workflow.Status(r.Context())
		resp.Workflow = &summary
		if code == http.StatusOK && (!summary.Running || !summary.Ready()) {
			resp.Status = "degraded"
		}
	}
	WriteJSON(w, code, resp)
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (*jobs.Job, bool) {
	id := chi.URLParam(r, "id")
	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.internal(w, r, err)
		return nil, false
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

func (h *handlers) internal(w http.ResponseWriter, r *http.Request, err error) {
	logging.ErrorWithContext(logging.WithContext(r.Context(), h.logger), "request failed", "http_error",
		logging.String("path", r.URL.Path),
		logging.Error(err),
	)
	WriteError(w, http.StatusInternalServerError, "internal server error")
}
