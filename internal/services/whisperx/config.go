package whisperx

import "strings"

// UVXCommand launches WhisperX in an isolated Python environment.
const UVXCommand = "uvx"

// Package indexes, devices, and VAD methods understood by buildArgs.
const (
	DefaultModel      = "large-v3-turbo"
	PypiIndexURL      = "https://pypi.org/simple"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodSilero   = "silero"
	VADMethodPyannote = "pyannote"
)

// decodeFlags are passed on every run. Sentence-level segments with a short
// chunk size keep timestamps tight enough for fixed scene windows, and a wide
// beam at temperature zero keeps reruns of the same audio stable.
var decodeFlags = []string{
	"--output_format", "json",
	"--segment_resolution", "sentence",
	"--batch_size", "4",
	"--chunk_size", "15",
	"--vad_onset", "0.08",
	"--vad_offset", "0.07",
	"--beam_size", "10",
	"--best_of", "10",
	"--temperature", "0.0",
	"--patience", "1.0",
}

// Config selects the model and hardware for a WhisperX run.
type Config struct {
	Model       string
	CUDAEnabled bool
	// VADMethod is VADMethodSilero (default) or VADMethodPyannote.
	VADMethod string
	// HFToken is only forwarded for pyannote, which needs gated models.
	HFToken string
	// Language pins the spoken language; blank lets WhisperX detect it.
	Language string
}

func (c Config) normalized() Config {
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = DefaultModel
	}
	c.VADMethod = strings.ToLower(strings.TrimSpace(c.VADMethod))
	if c.VADMethod == "" {
		c.VADMethod = VADMethodSilero
	}
	return c
}
