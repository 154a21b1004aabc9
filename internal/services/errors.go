package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAcquisition   = errors.New("acquisition failure")
	ErrExtraction    = errors.New("extraction failure")
	ErrTranscription = errors.New("transcription failure")
	ErrSummarization = errors.New("summarization failure")
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

var markers = []error{
	ErrAcquisition,
	ErrExtraction,
	ErrTranscription,
	ErrSummarization,
	ErrExternalTool,
	ErrValidation,
	ErrConfiguration,
	ErrNotFound,
}

// ServiceError carries the stage context attached by Wrap.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is and errors.As.
func (e *ServiceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrExternalTool
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a wrapped failure used for status
// records and log attributes.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Cause     string
}

// Details extracts the outermost ServiceError context from err. Errors that
// were never wrapped report their message as the cause and an empty stage.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var se *ServiceError
	if errors.As(err, &se) {
		d := ErrorDetails{
			Kind:      se.Marker.Error(),
			Stage:     se.Stage,
			Operation: se.Operation,
			Message:   se.Message,
		}
		if se.Cause != nil {
			d.Cause = se.Cause.Error()
		}
		return d
	}
	d := ErrorDetails{Cause: err.Error()}
	if marker := Marker(err); marker != nil {
		d.Kind = marker.Error()
	}
	return d
}

// Marker returns the first known sentinel err matches, or nil.
func Marker(err error) error {
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

// Reason renders a compact one-line failure description for status records.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	d := Details(err)
	parts := make([]string, 0, 2)
	if d.Message != "" {
		parts = append(parts, d.Message)
	}
	if d.Cause != "" {
		parts = append(parts, d.Cause)
	}
	if len(parts) == 0 {
		return err.Error()
	}
	return strings.Join(parts, ": ")
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
