package stage

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State is a position in the job pipeline state machine.
type State string

const (
	Received       State = "received"
	Fetching       State = "fetching"
	Extracting     State = "extracting"
	Transcribing   State = "transcribing"
	Segmenting     State = "segmenting"
	Completed      State = "completed"
	CompletedEmpty State = "completed_empty"
	Failed         State = "failed"
)

// Sequence lists the working states in execution order.
var Sequence = []State{Fetching, Extracting, Transcribing, Segmenting}

var titleCaser = cases.Title(language.Und)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	switch s {
	case Completed, CompletedEmpty, Failed:
		return true
	default:
		return false
	}
}

// Working reports whether s is one of the in-flight stage states.
func (s State) Working() bool {
	for _, candidate := range Sequence {
		if s == candidate {
			return true
		}
	}
	return false
}

// Label renders a human-readable name such as "Completed Empty".
func Label(s State) string {
	raw := strings.TrimSpace(strings.ReplaceAll(string(s), "_", " "))
	if raw == "" {
		return ""
	}
	return titleCaser.String(raw)
}
