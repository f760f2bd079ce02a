package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validatePool(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ResultsDir == "" {
		return errors.New("paths.results_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateGemini() error {
	if c.Gemini.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/matchlens/config.toml"
		}
		return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'matchlens config init')", defaultPath)
	}
	if c.Gemini.PollIntervalSeconds > c.Gemini.PollTimeoutSeconds {
		return errors.New("gemini.poll_interval_seconds must not exceed gemini.poll_timeout_seconds")
	}
	if c.Gemini.RetryBaseDelaySecs > c.Gemini.RetryMaxDelaySecs {
		return errors.New("gemini.retry_base_delay_seconds must not exceed gemini.retry_max_delay_seconds")
	}
	return nil
}

func (c *Config) validatePool() error {
	if c.Pool.Concurrency > 128 {
		return errors.New("pool.concurrency must not exceed 128")
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if c.Synthesis.ConfidenceThreshold > 10 {
		return errors.New("synthesis.confidence_threshold must be between 1 and 10")
	}
	if c.Synthesis.HalfMinMinutes >= c.Synthesis.HalfMaxMinutes {
		return errors.New("synthesis.half_min_minutes must be less than synthesis.half_max_minutes")
	}
	if c.Synthesis.BreakMinMinutes >= c.Synthesis.BreakMaxMinutes {
		return errors.New("synthesis.break_min_minutes must be less than synthesis.break_max_minutes")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
