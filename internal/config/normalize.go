package config

import (
	"os"
	"strings"
)

// normalize expands path fields, applies environment overrides, and fills
// zero-valued settings with defaults so Validate only sees usable values.
func (c *Config) normalize() error {
	for _, field := range []*string{&c.Paths.ClipsDir, &c.Paths.ResultsDir, &c.Paths.LogDir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = defaultGeminiTimeout
	}
	if c.Gemini.PollIntervalSeconds <= 0 {
		c.Gemini.PollIntervalSeconds = defaultPollInterval
	}
	if c.Gemini.PollTimeoutSeconds <= 0 {
		c.Gemini.PollTimeoutSeconds = defaultPollTimeout
	}
	if c.Gemini.RetryMaxAttempts <= 0 {
		c.Gemini.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if c.Gemini.RetryBaseDelaySecs <= 0 {
		c.Gemini.RetryBaseDelaySecs = defaultRetryBaseDelay
	}
	if c.Gemini.RetryMaxDelaySecs <= 0 {
		c.Gemini.RetryMaxDelaySecs = defaultRetryMaxDelay
	}

	if c.Pool.Concurrency <= 0 {
		c.Pool.Concurrency = defaultConcurrency
	}
	if c.Pool.Limit < 0 {
		c.Pool.Limit = 0
	}

	if c.Synthesis.ConfidenceThreshold <= 0 {
		c.Synthesis.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if c.Synthesis.DedupWindowSeconds <= 0 {
		c.Synthesis.DedupWindowSeconds = defaultDedupWindowSeconds
	}
	if c.Synthesis.HalfMinMinutes <= 0 {
		c.Synthesis.HalfMinMinutes = defaultHalfMinMinutes
	}
	if c.Synthesis.HalfMaxMinutes <= 0 {
		c.Synthesis.HalfMaxMinutes = defaultHalfMaxMinutes
	}
	if c.Synthesis.BreakMinMinutes <= 0 {
		c.Synthesis.BreakMinMinutes = defaultBreakMinMinutes
	}
	if c.Synthesis.BreakMaxMinutes <= 0 {
		c.Synthesis.BreakMaxMinutes = defaultBreakMaxMinutes
	}
	if c.Synthesis.HalfBoundarySeconds <= 0 {
		c.Synthesis.HalfBoundarySeconds = defaultHalfBoundarySeconds
	}
	if c.Synthesis.EvidenceMinLength <= 0 {
		c.Synthesis.EvidenceMinLength = defaultEvidenceMinLength
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}
