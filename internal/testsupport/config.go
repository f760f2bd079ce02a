package testsupport

import (
	"path/filepath"
	"testing"

	"matchlens/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Gemini.APIKey = "test"
	cfg.Paths.ClipsDir = filepath.Join(base, "clips")
	cfg.Paths.ResultsDir = filepath.Join(base, "results")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Pool.Concurrency = 4
	cfg.Gemini.PollIntervalSeconds = 1
	cfg.Gemini.PollTimeoutSeconds = 5

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithConcurrency overrides the worker pool concurrency on the test config.
func WithConcurrency(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pool.Concurrency = n
	}
}

// WithConfidenceThreshold overrides the synthesis confidence threshold.
func WithConfidenceThreshold(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Synthesis.ConfidenceThreshold = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ResultsDir)
}
