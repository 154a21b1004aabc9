package pipeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"vidsum/internal/media/fetch"
	"vidsum/internal/stage"
)

// Job is one submission. SourceURL is stored normalized.
type Job struct {
	ID        string
	UserID    string
	SourceURL string
}

// NewJob validates and normalizes a submission. An empty jobID is replaced
// with a random UUID.
func NewJob(sourceURL, userID, jobID string) (Job, error) {
	ref, err := fetch.NormalizeReference(sourceURL)
	if err != nil {
		return Job{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Job{}, fmt.Errorf("user id is required")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		jobID = uuid.NewString()
	}
	return Job{ID: jobID, UserID: userID, SourceURL: ref}, nil
}

// StageError reports the stage a fatal failure happened in.
type StageError struct {
	Stage stage.State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Outcome describes how a run ended. Stage is set for failures; Result and
// ResultPath are set for both completed variants.
type Outcome struct {
	State      stage.State
	Stage      stage.State
	Result     *Result
	ResultPath string
	Err        error
}
