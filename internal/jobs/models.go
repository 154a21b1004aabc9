package jobs

import (
	"errors"
	"time"
)

// Status represents the lifecycle of a job record.
type Status string

const (
	StatusPending        Status = "pending"
	StatusFetching       Status = "fetching"
	StatusExtracting     Status = "extracting"
	StatusTranscribing   Status = "transcribing"
	StatusSegmenting     Status = "segmenting"
	StatusCompleted      Status = "completed"
	StatusCompletedEmpty Status = "completed_empty"
	StatusFailed         Status = "failed"
)

var (
	// ErrDuplicate is returned when a submission reuses an existing job id.
	ErrDuplicate = errors.New("job already exists")
	// ErrInvalid is returned for submissions missing required fields.
	ErrInvalid = errors.New("invalid job submission")
	// ErrNotFound is returned when a job id is unknown.
	ErrNotFound = errors.New("job not found")
	// ErrNotRetryable is returned by Retry for jobs that have not failed.
	ErrNotRetryable = errors.New("job is not in a retryable state")
	// ErrInFlight is returned by Remove while a pipeline owns the job.
	ErrInFlight = errors.New("job is in flight")
)

var allStatuses = []Status{
	StatusPending,
	StatusFetching,
	StatusExtracting,
	StatusTranscribing,
	StatusSegmenting,
	StatusCompleted,
	StatusCompletedEmpty,
	StatusFailed,
}

var workingStatuses = []Status{
	StatusFetching,
	StatusExtracting,
	StatusTranscribing,
	StatusSegmenting,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a user-supplied status string.
func ParseStatus(value string) (Status, bool) {
	for _, status := range allStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether the status ends a pipeline run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCompletedEmpty || s == StatusFailed
}

// Working reports whether a pipeline run is in flight.
func (s Status) Working() bool {
	for _, status := range workingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Submission is the externally supplied description of a job.
type Submission struct {
	ID        string `json:"jobId"`
	UserID    string `json:"userId"`
	SourceURL string `json:"sourceUrl"`
}

// Job is a persisted job record.
type Job struct {
	ID            string     `json:"jobId"`
	UserID        string     `json:"userId"`
	SourceURL     string     `json:"sourceUrl"`
	Status        Status     `json:"status"`
	Stage         string     `json:"stage,omitempty"`
	ErrorMessage  string     `json:"error,omitempty"`
	ResultPath    string     `json:"resultPath,omitempty"`
	SceneCount    int        `json:"sceneCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	LastHeartbeat *time.Time `json:"lastHeartbeat,omitempty"`
}

// Update is a status transition reported by the pipeline. Stage names the
// failing stage for StatusFailed; Message carries the failure reason.
type Update struct {
	Status     Status
	Stage      string
	Message    string
	ResultPath string
	SceneCount int
}

// Stats counts jobs per status.
type Stats map[Status]int

// Total sums all counts.
func (s Stats) Total() int {
	total := 0
	for _, count := range s {
		total += count
	}
	return total
}
