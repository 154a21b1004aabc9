package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSummary(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if c.Segments.ChunkSeconds <= 0 {
		return errors.New("segments.chunk_seconds must be positive")
	}
	if c.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"fetch.timeout_seconds":         c.Fetch.TimeoutSeconds,
		"transcription.timeout_seconds": c.Transcription.TimeoutSeconds,
		"summary.timeout_seconds":       c.Summary.TimeoutSeconds,
	})
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case BackendWhisperX:
		switch c.Transcription.VADMethod {
		case "silero", "pyannote":
		default:
			return fmt.Errorf("transcription.vad_method %q is not supported (use silero or pyannote)", c.Transcription.VADMethod)
		}
		if c.Transcription.VADMethod == "pyannote" && c.Transcription.HFToken == "" {
			return errors.New("transcription.hf_token must be set when transcription.vad_method is pyannote (or set HF_TOKEN)")
		}
	case BackendWhisperAPI:
		if c.Transcription.APIURL == "" {
			return errors.New("transcription.api_url must be set when transcription.backend is whisper_api (or set WHISPER_API_URL)")
		}
	default:
		return fmt.Errorf("transcription.backend %q is not supported (use %s or %s)", c.Transcription.Backend, BackendWhisperX, BackendWhisperAPI)
	}
	return nil
}

func (c *Config) validateSummary() error {
	switch c.Summary.Backend {
	case BackendOpenRouter, BackendGemini, BackendNone:
	default:
		return fmt.Errorf("summary.backend %q is not supported (use %s, %s, or %s)", c.Summary.Backend, BackendOpenRouter, BackendGemini, BackendNone)
	}
	if c.Summary.MaxInputChars <= 0 {
		return errors.New("summary.max_input_chars must be positive")
	}
	if c.Summary.Concurrency < 1 {
		return errors.New("summary.concurrency must be at least 1")
	}
	if c.Summary.Backend == BackendOpenRouter && strings.TrimSpace(c.Summary.BaseURL) == "" {
		return errors.New("summary.base_url must be set when summary.backend is openrouter")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.max_jobs":             c.Workflow.MaxJobs,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
