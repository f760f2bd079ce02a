package config

const (
	defaultClipsDir            = "~/matches/clips"
	defaultResultsDir          = "~/.local/share/matchlens/results"
	defaultLogDir              = "~/.local/share/matchlens/logs"
	defaultGeminiBaseURL       = "https://generativelanguage.googleapis.com"
	defaultGeminiModel         = "gemini-2.5-flash"
	defaultGeminiTimeout       = 120
	defaultPollInterval        = 1
	defaultPollTimeout         = 300
	defaultRetryMaxAttempts    = 4
	defaultRetryBaseDelay      = 1
	defaultRetryMaxDelay       = 10
	defaultConcurrency         = 20
	defaultConfidenceThreshold = 7
	defaultDedupWindowSeconds  = 5
	defaultHalfMinMinutes      = 15
	defaultHalfMaxMinutes      = 45
	defaultBreakMinMinutes     = 3
	defaultBreakMaxMinutes     = 15
	defaultHalfBoundarySeconds = 35 * 60
	defaultEvidenceMinLength   = 12
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ClipsDir:   defaultClipsDir,
			ResultsDir: defaultResultsDir,
			LogDir:     defaultLogDir,
		},
		Gemini: Gemini{
			BaseURL:             defaultGeminiBaseURL,
			Model:               defaultGeminiModel,
			TimeoutSeconds:      defaultGeminiTimeout,
			PollIntervalSeconds: defaultPollInterval,
			PollTimeoutSeconds:  defaultPollTimeout,
			RetryMaxAttempts:    defaultRetryMaxAttempts,
			RetryBaseDelaySecs:  defaultRetryBaseDelay,
			RetryMaxDelaySecs:   defaultRetryMaxDelay,
		},
		Pool: Pool{
			Concurrency: defaultConcurrency,
		},
		Synthesis: Synthesis{
			ConfidenceThreshold: defaultConfidenceThreshold,
			DedupWindowSeconds:  defaultDedupWindowSeconds,
			HalfMinMinutes:      defaultHalfMinMinutes,
			HalfMaxMinutes:      defaultHalfMaxMinutes,
			BreakMinMinutes:     defaultBreakMinMinutes,
			BreakMaxMinutes:     defaultBreakMaxMinutes,
			HalfBoundarySeconds: defaultHalfBoundarySeconds,
			EvidenceMinLength:   defaultEvidenceMinLength,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
