package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"matchlens/internal/annotate"
	"matchlens/internal/clips"
	"matchlens/internal/config"
	"matchlens/internal/logging"
	"matchlens/internal/report"
	"matchlens/internal/services"
	"matchlens/internal/store"
	"matchlens/internal/synthesis"
)

const lockFileName = "matchlens.lock"

// Pipeline orchestrates a full analysis run: enumerate clips, register
// records, drive the annotation pool, and synthesize the timeline.
type Pipeline struct {
	cfg        *config.Config
	records    *store.Store
	capability annotate.Capability
	logger     *slog.Logger
	poolOpts   []annotate.PoolOption
}

// Option customizes the pipeline.
type Option func(*Pipeline)

// WithPoolOptions forwards options to the annotation pool.
func WithPoolOptions(opts ...annotate.PoolOption) Option {
	return func(p *Pipeline) {
		p.poolOpts = append(p.poolOpts, opts...)
	}
}

// New constructs a pipeline over an open store and capability.
func New(cfg *config.Config, records *store.Store, capability annotate.Capability, logger *slog.Logger, opts ...Option) *Pipeline {
	pipeline := &Pipeline{
		cfg:        cfg,
		records:    records,
		capability: capability,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(pipeline)
	}
	return pipeline
}

// AnalyzeResult is the full accounting of one analysis run.
type AnalyzeResult struct {
	RunID      string
	Enumerated int
	ResetCount int64
	Summary    annotate.Summary
}

// Analyze runs the annotation stage end to end. A filesystem lock serializes
// runs against the same results directory; stale in-flight records left by an
// interrupted run are reset to pending before work starts.
func (p *Pipeline) Analyze(ctx context.Context, mode annotate.Mode, filter clips.Filter) (AnalyzeResult, error) {
	var result AnalyzeResult
	result.RunID = uuid.NewString()
	ctx = services.WithRunID(ctx, result.RunID)
	logger := logging.WithContext(ctx, p.logger)

	lock := flock.New(filepath.Join(p.cfg.Paths.ResultsDir, lockFileName))
	acquired, err := lock.TryLock()
	if err != nil {
		return result, services.Wrap(services.ErrConfiguration, "pipeline", "lock", "acquire run lock", err)
	}
	if !acquired {
		return result, services.Wrap(services.ErrConfiguration, "pipeline", "lock", "another run is already active for this results directory", nil)
	}
	defer lock.Unlock()

	reset, err := p.records.ResetInFlight(ctx)
	if err != nil {
		return result, err
	}
	result.ResetCount = reset
	if reset > 0 {
		logger.Info("reset stale in-flight records", logging.Args(logging.Int64("count", reset))...)
	}

	items, err := clips.Enumerate(p.cfg.Paths.ClipsDir, filter, logger)
	if err != nil {
		return result, err
	}
	if len(items) == 0 {
		return result, services.Wrap(services.ErrConfiguration, "pipeline", "enumerate",
			fmt.Sprintf("no clip artifacts found under %s", p.cfg.Paths.ClipsDir), nil)
	}
	result.Enumerated = len(items)

	for _, clip := range items {
		if _, err := p.records.EnsurePending(ctx, clip.ID, clip.OffsetSeconds, clip.Segment); err != nil {
			return result, err
		}
	}

	logger.Info("starting annotation run", logging.Args(
		logging.String(logging.FieldMode, string(mode)),
		logging.Int("clips", len(items)),
		logging.Int("concurrency", p.cfg.Pool.Concurrency))...)

	pool := annotate.NewPool(p.capability, p.records, p.cfg, p.logger, p.poolOpts...)
	summary, err := pool.Run(ctx, mode, items)
	result.Summary = summary
	if err != nil {
		return result, err
	}

	logger.Info("analysis run finished", logging.Args(
		logging.Int64("done", summary.Done),
		logging.Int64("failed", summary.Failed),
		logging.Int64("skipped", summary.Skipped))...)
	return result, nil
}

// Synthesize reduces the persisted done records into a timeline and writes
// the structured artifact next to the record store.
func (p *Pipeline) Synthesize(ctx context.Context, mode annotate.Mode) (synthesis.Timeline, string, error) {
	records, err := p.records.List(ctx, store.StatusDone)
	if err != nil {
		return synthesis.Timeline{}, "", err
	}
	events := synthesis.EventsFromRecords(records, p.cfg.Synthesis.HalfBoundarySeconds)

	var timeline synthesis.Timeline
	switch mode {
	case annotate.ModeBoundary:
		timeline = synthesis.SynthesizeBoundary(events, p.cfg.Synthesis)
	case annotate.ModeKickout:
		timeline = synthesis.SynthesizeRecurring(events, p.cfg.Synthesis)
	default:
		return synthesis.Timeline{}, "", services.Wrap(services.ErrConfiguration, "pipeline", "synthesize",
			fmt.Sprintf("unknown analysis mode %q", mode), nil)
	}

	path := filepath.Join(p.cfg.Paths.ResultsDir, fmt.Sprintf("timeline_%s.json", mode))
	if err := report.WriteJSON(path, report.Build(timeline)); err != nil {
		return timeline, "", err
	}

	p.logger.Info("timeline synthesized", logging.Args(
		logging.String(logging.FieldMode, string(mode)),
		logging.Int("events", len(timeline.Entries)),
		logging.Int("unresolved", len(timeline.Unresolved)),
		logging.String("artifact", path))...)
	return timeline, path, nil
}
