package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFetch()
	c.normalizeAudio()
	c.normalizeTranscription()
	c.normalizeSummary()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		c.Paths.InboxDir = defaultInboxDir
	}
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFetch() {
	c.Fetch.YTDLPBinary = strings.TrimSpace(c.Fetch.YTDLPBinary)
	if c.Fetch.YTDLPBinary == "" {
		c.Fetch.YTDLPBinary = defaultYTDLPBinary
	}
	c.Fetch.Format = strings.TrimSpace(c.Fetch.Format)
	if c.Fetch.Format == "" {
		c.Fetch.Format = defaultFetchFormat
	}
}

func (c *Config) normalizeAudio() {
	c.Audio.FFmpegBinary = strings.TrimSpace(c.Audio.FFmpegBinary)
	if c.Audio.FFmpegBinary == "" {
		c.Audio.FFmpegBinary = defaultFFmpegBinary
	}
	c.Audio.FFprobeBinary = strings.TrimSpace(c.Audio.FFprobeBinary)
	if c.Audio.FFprobeBinary == "" {
		c.Audio.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = defaultSampleRate
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Backend = strings.ToLower(strings.TrimSpace(c.Transcription.Backend))
	if c.Transcription.Backend == "" {
		c.Transcription.Backend = defaultTranscriptionBackend
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperXModel
	}
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultVADMethod
	}
	c.Transcription.HFToken = strings.TrimSpace(c.Transcription.HFToken)
	if c.Transcription.HFToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Transcription.HFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Transcription.HFToken = strings.TrimSpace(value)
		}
	}
	c.Transcription.APIURL = strings.TrimSpace(c.Transcription.APIURL)
	if c.Transcription.APIURL == "" {
		if value, ok := os.LookupEnv("WHISPER_API_URL"); ok {
			c.Transcription.APIURL = strings.TrimSpace(value)
		}
	}
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	if c.Transcription.APIKey == "" {
		if value, ok := os.LookupEnv("WHISPER_API_KEY"); ok {
			c.Transcription.APIKey = strings.TrimSpace(value)
		}
	}
	c.Transcription.APIModel = strings.TrimSpace(c.Transcription.APIModel)
	if c.Transcription.APIModel == "" {
		c.Transcription.APIModel = defaultWhisperAPIModel
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
}

func (c *Config) normalizeSummary() {
	c.Summary.Backend = strings.ToLower(strings.TrimSpace(c.Summary.Backend))
	if c.Summary.Backend == "" {
		c.Summary.Backend = defaultSummaryBackend
	}
	c.Summary.BaseURL = strings.TrimSpace(c.Summary.BaseURL)
	if c.Summary.BaseURL == "" && c.Summary.Backend == BackendOpenRouter {
		c.Summary.BaseURL = defaultOpenRouterBaseURL
	}
	c.Summary.Model = strings.TrimSpace(c.Summary.Model)
	if c.Summary.Model == "" {
		switch c.Summary.Backend {
		case BackendGemini:
			c.Summary.Model = defaultGeminiModel
		default:
			c.Summary.Model = defaultOpenRouterModel
		}
	}
	c.Summary.Referer = strings.TrimSpace(c.Summary.Referer)
	if c.Summary.Referer == "" {
		c.Summary.Referer = defaultSummaryReferer
	}
	c.Summary.Title = strings.TrimSpace(c.Summary.Title)
	if c.Summary.Title == "" {
		c.Summary.Title = defaultSummaryTitle
	}
	c.Summary.Prompt = strings.TrimSpace(c.Summary.Prompt)
	if c.Summary.Prompt == "" {
		c.Summary.Prompt = defaultSummaryPrompt
	}
	c.Summary.APIKey = strings.TrimSpace(c.Summary.APIKey)
	if c.Summary.APIKey == "" {
		switch c.Summary.Backend {
		case BackendGemini:
			if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
				c.Summary.APIKey = strings.TrimSpace(value)
			} else if value, ok := os.LookupEnv("GOOGLE_API_KEY"); ok {
				c.Summary.APIKey = strings.TrimSpace(value)
			}
		case BackendOpenRouter:
			if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
				c.Summary.APIKey = strings.TrimSpace(value)
			}
		}
	}
	if c.Summary.MaxInputChars == 0 {
		c.Summary.MaxInputChars = defaultSummaryMaxInputChars
	}
	if c.Summary.Concurrency == 0 {
		c.Summary.Concurrency = defaultSummaryConcurrency
	}
	if c.Summary.TimeoutSeconds == 0 {
		c.Summary.TimeoutSeconds = defaultSummaryTimeoutSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.MaxJobs == 0 {
		c.Workflow.MaxJobs = defaultMaxJobs
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("VIDSUM_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}
