package api

import (
	"encoding/json"
	"net/http"
	"time"

	"vidsum/internal/jobs"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job record in a transport-friendly format.
type Job struct {
	ID            string `json:"jobId"`
	UserID        string `json:"userId"`
	SourceURL     string `json:"sourceUrl"`
	Status        string `json:"status"`
	Stage         string `json:"stage,omitempty"`
	Error         string `json:"error,omitempty"`
	ResultPath    string `json:"resultPath,omitempty"`
	SceneCount    int    `json:"sceneCount"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	LastHeartbeat string `json:"lastHeartbeat,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// FromJob converts a store record.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}
	out := Job{
		ID:         job.ID,
		UserID:     job.UserID,
		SourceURL:  job.SourceURL,
		Status:     string(job.Status),
		Stage:      job.Stage,
		Error:      job.ErrorMessage,
		ResultPath: job.ResultPath,
		SceneCount: job.SceneCount,
		CreatedAt:  formatTime(job.CreatedAt),
		UpdatedAt:  formatTime(job.UpdatedAt),
	}
	if job.LastHeartbeat != nil {
		out.LastHeartbeat = formatTime(*job.LastHeartbeat)
	}
	return out
}

// FromJobs converts a list of store records.
func FromJobs(list []*jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorDetail writes a JSON error response with detail.
func WriteErrorDetail(w http.ResponseWriter, status int, msg, detail string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Detail: detail})
}
