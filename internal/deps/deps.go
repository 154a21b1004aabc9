// Package deps reports whether the external tools the pipeline shells out
// to are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"vidsum/internal/config"
	"vidsum/internal/stage"
)

// Requirement names an external binary.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// PipelineRequirements lists the binaries cfg needs. ffprobe is optional
// and uvx is only required for the WhisperX transcription backend.
func PipelineRequirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "yt-dlp", Command: cfg.Fetch.YTDLPBinary, Description: "Downloads remote media"},
		{Name: "FFmpeg", Command: cfg.Audio.FFmpegBinary, Description: "Extracts mono PCM audio"},
		{Name: "FFprobe", Command: cfg.Audio.FFprobeBinary, Description: "Picks the spoken audio track", Optional: true},
	}
	reqs = append(reqs, Requirement{
		Name:        "uvx",
		Command:     "uvx",
		Description: "Runs WhisperX transcription",
		Optional:    cfg.Transcription.Backend != config.BackendWhisperX,
	})
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// Satisfied reports whether every non-optional dependency is available.
func Satisfied(statuses []Status) bool {
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			return false
		}
	}
	return true
}

// BinaryHealth reports capability as ready when command resolves on PATH.
// tool names the binary in the unhealthy detail.
func BinaryHealth(capability, tool, command string) stage.Health {
	status := CheckBinaries([]Requirement{{Name: tool, Command: command}})[0]
	if !status.Available {
		return stage.Unhealthy(capability, status.Detail)
	}
	return stage.Healthy(capability)
}
