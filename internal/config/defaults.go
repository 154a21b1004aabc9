package config

const (
	defaultWorkDir               = "~/.local/share/vidsum/jobs"
	defaultStateDir              = "~/.local/share/vidsum"
	defaultLogDir                = "~/.local/share/vidsum/logs"
	defaultInboxDir              = "~/.local/share/vidsum/inbox"
	defaultYTDLPBinary           = "yt-dlp"
	defaultFetchFormat           = "ba"
	defaultFetchTimeout          = 900
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultSampleRate            = 16000
	defaultTranscriptionBackend  = BackendWhisperX
	defaultWhisperXModel         = "large-v3-turbo"
	defaultVADMethod             = "silero"
	defaultWhisperAPIModel       = "whisper-1"
	defaultTranscriptionTimeout  = 3600
	defaultSummaryBackend        = BackendOpenRouter
	defaultOpenRouterBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel       = "google/gemini-3-flash-preview"
	defaultGeminiModel           = "gemini-2.5-flash"
	defaultSummaryReferer        = "https://github.com/vidsum/vidsum"
	defaultSummaryTitle          = "vidsum"
	defaultSummaryPrompt         = "Summarize this video segment clearly in 2-3 sentences:"
	defaultSummaryMaxInputChars  = 3500
	defaultSummaryConcurrency    = 4
	defaultSummaryTimeoutSeconds = 60
	defaultChunkSeconds          = 15
	defaultPollInterval          = 5
	defaultErrorRetryInterval    = 10
	defaultHeartbeatInterval     = 15
	defaultHeartbeatTimeout      = 120
	defaultMaxJobs               = 2
	defaultAPIBind               = "127.0.0.1:7490"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Transcription backends.
const (
	BackendWhisperX   = "whisperx"
	BackendWhisperAPI = "whisper_api"
)

// Summary backends.
const (
	BackendOpenRouter = "openrouter"
	BackendGemini     = "gemini"
	BackendNone       = "none"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			InboxDir: defaultInboxDir,
		},
		Fetch: Fetch{
			YTDLPBinary:    defaultYTDLPBinary,
			Format:         defaultFetchFormat,
			TimeoutSeconds: defaultFetchTimeout,
		},
		Audio: Audio{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			SampleRate:    defaultSampleRate,
		},
		Transcription: Transcription{
			Backend:        defaultTranscriptionBackend,
			Model:          defaultWhisperXModel,
			VADMethod:      defaultVADMethod,
			APIModel:       defaultWhisperAPIModel,
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		Summary: Summary{
			Backend:        defaultSummaryBackend,
			BaseURL:        defaultOpenRouterBaseURL,
			Model:          defaultOpenRouterModel,
			Referer:        defaultSummaryReferer,
			Title:          defaultSummaryTitle,
			Prompt:         defaultSummaryPrompt,
			MaxInputChars:  defaultSummaryMaxInputChars,
			Concurrency:    defaultSummaryConcurrency,
			TimeoutSeconds: defaultSummaryTimeoutSeconds,
		},
		Segments: Segments{
			ChunkSeconds: defaultChunkSeconds,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			MaxJobs:            defaultMaxJobs,
		},
		API: API{
			Enabled: true,
			Bind:    defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
