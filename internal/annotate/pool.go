package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"matchlens/internal/clips"
	"matchlens/internal/config"
	"matchlens/internal/logging"
	"matchlens/internal/services"
	"matchlens/internal/services/gemini"
	"matchlens/internal/store"
)

// Summary aggregates the outcome of one annotation run.
type Summary struct {
	Processed int64
	Done      int64
	Failed    int64
	Skipped   int64
	Elapsed   time.Duration
}

// Pool fans clip annotation out across a bounded set of workers. Each clip
// runs the full submit/poll/infer/release protocol independently; one clip
// failing never aborts the run.
type Pool struct {
	capability Capability
	records    *store.Store
	cfg        *config.Config
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

// PoolOption customizes pool behavior.
type PoolOption func(*Pool)

// WithSleeper overrides the delay function used between poll ticks and retry
// attempts. Tests use this to avoid real waits.
func WithSleeper(sleep func(context.Context, time.Duration) error) PoolOption {
	return func(p *Pool) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// NewPool constructs an annotation pool.
func NewPool(capability Capability, records *store.Store, cfg *config.Config, logger *slog.Logger, opts ...PoolOption) *Pool {
	pool := &Pool{
		capability: capability,
		records:    records,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "annotate"),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run annotates every clip that is not already done. Records already in the
// done state are skipped without touching the capability, which makes reruns
// after interruption cheap and idempotent. Clips caught mid-flight by a
// cancellation are returned to pending and excluded from the failure count.
func (p *Pool) Run(ctx context.Context, mode Mode, items []clips.Clip) (Summary, error) {
	start := time.Now()
	var summary Summary

	concurrency := p.cfg.Pool.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(items) && len(items) > 0 {
		concurrency = len(items)
	}

	work := make(chan clips.Clip)
	var wg sync.WaitGroup
	var done, failed, skipped int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for clip := range work {
				switch p.processClip(ctx, mode, clip) {
				case outcomeDone:
					atomic.AddInt64(&done, 1)
				case outcomeFailed:
					atomic.AddInt64(&failed, 1)
				case outcomeSkipped:
					atomic.AddInt64(&skipped, 1)
				}
			}
		}()
	}

dispatch:
	for _, clip := range items {
		select {
		case <-ctx.Done():
			break dispatch
		case work <- clip:
		}
	}
	close(work)
	wg.Wait()

	summary.Done = atomic.LoadInt64(&done)
	summary.Failed = atomic.LoadInt64(&failed)
	summary.Skipped = atomic.LoadInt64(&skipped)
	summary.Processed = summary.Done + summary.Failed
	summary.Elapsed = time.Since(start)

	rate := 0.0
	if summary.Elapsed > 0 {
		rate = float64(summary.Processed) / summary.Elapsed.Seconds()
	}
	logging.WithContext(ctx, p.logger).Info("annotation run complete", logging.Args(
		logging.String(logging.FieldMode, string(mode)),
		logging.Int64("done", summary.Done),
		logging.Int64("failed", summary.Failed),
		logging.Int64("skipped", summary.Skipped),
		logging.Float64("clips_per_second", rate),
		logging.Duration("elapsed", summary.Elapsed))...)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeFailed
	outcomeSkipped
	outcomeCancelled
)

func (p *Pool) processClip(ctx context.Context, mode Mode, clip clips.Clip) outcome {
	ctx = services.WithClipID(ctx, clip.ID)
	logger := logging.WithContext(ctx, p.logger)

	record, err := p.records.Get(ctx, clip.ID)
	if err != nil {
		logger.Error("load record", logging.Args(logging.Error(err))...)
		return outcomeFailed
	}
	if record == nil {
		record, err = p.records.EnsurePending(ctx, clip.ID, clip.OffsetSeconds, clip.Segment)
		if err != nil {
			logger.Error("register record", logging.Args(logging.Error(err))...)
			return outcomeFailed
		}
	}
	if record.Status == store.StatusDone {
		logger.Debug("already annotated, skipping")
		return outcomeSkipped
	}

	record.Status = store.StatusInFlight
	if err := p.records.Put(ctx, record); err != nil {
		logger.Error("mark in flight", logging.Args(logging.Error(err))...)
		return outcomeFailed
	}

	raw, extraction, err := p.annotateWithRetry(ctx, mode, clip, logger)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation is not a clip failure. Return the record to
			// pending so the next run picks it up cleanly.
			record.Status = store.StatusPending
			if putErr := p.records.Put(context.WithoutCancel(ctx), record); putErr != nil {
				logger.Error("return record to pending", logging.Args(logging.Error(putErr))...)
			}
			logger.Debug("run cancelled mid-flight, record returned to pending")
			return outcomeCancelled
		}
		record.MarkFailed(services.FailureClass(err)+": "+err.Error(), raw)
		if putErr := p.records.Put(ctx, record); putErr != nil {
			logger.Error("persist failure", logging.Args(logging.Error(putErr))...)
		}
		logger.Warn("clip annotation failed", logging.Args(
			logging.String(logging.FieldMode, string(mode)),
			logging.String("failure_class", services.FailureClass(err)),
			logging.Error(err))...)
		return outcomeFailed
	}

	record.MarkDone(raw, extraction)
	if err := p.records.Put(ctx, record); err != nil {
		logger.Error("persist result", logging.Args(logging.Error(err))...)
		return outcomeFailed
	}
	logger.Info("clip annotated", logging.Args(
		logging.String(logging.FieldMode, string(mode)),
		logging.String("category", extraction.Category),
		logging.Int("confidence", extraction.Confidence))...)
	return outcomeDone
}

// annotateWithRetry drives the per-clip protocol, retrying transient failures
// with exponential backoff. Permanent and extraction failures abort
// immediately; the raw response, when one was received, accompanies the error.
func (p *Pool) annotateWithRetry(ctx context.Context, mode Mode, clip clips.Clip, logger *slog.Logger) (string, *store.Extraction, error) {
	maxAttempts := p.cfg.Gemini.RetryMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	var lastRaw string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return lastRaw, nil, err
		}
		raw, extraction, err := p.annotateOnce(ctx, mode, clip)
		if err == nil {
			return raw, extraction, nil
		}
		lastErr = err
		if raw != "" {
			lastRaw = raw
		}
		if !services.IsRetryable(err) || attempt == maxAttempts {
			break
		}
		delay := p.backoffDelay(attempt)
		logger.Debug("retrying after transient failure", logging.Args(
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err))...)
		if err := p.sleep(ctx, delay); err != nil {
			return lastRaw, nil, err
		}
	}
	return lastRaw, nil, lastErr
}

func (p *Pool) backoffDelay(attempt int) time.Duration {
	base := time.Duration(p.cfg.Gemini.RetryBaseDelaySecs) * time.Second
	if base <= 0 {
		base = time.Second
	}
	max := time.Duration(p.cfg.Gemini.RetryMaxDelaySecs) * time.Second
	if max <= 0 {
		max = 10 * time.Second
	}
	delay := base << (attempt - 1)
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}

// annotateOnce performs a single pass of the protocol. The handle acquired by
// Submit is released on every exit path.
func (p *Pool) annotateOnce(ctx context.Context, mode Mode, clip clips.Clip) (raw string, extraction *store.Extraction, err error) {
	prompt, err := Prompt(mode, clip)
	if err != nil {
		return "", nil, services.Wrap(services.ErrConfiguration, "annotate", "prompt", err.Error(), nil)
	}

	handle, err := p.capability.Submit(ctx, clip.Path)
	if err != nil {
		return "", nil, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if releaseErr := p.capability.Release(releaseCtx, handle); releaseErr != nil {
			logging.WithContext(releaseCtx, p.logger).Warn("release failed",
				logging.Args(logging.Error(releaseErr))...)
		}
	}()

	if err := p.waitReady(ctx, handle); err != nil {
		return "", nil, err
	}

	raw, err = p.capability.Infer(ctx, handle, prompt)
	if err != nil {
		return "", nil, err
	}

	extraction, err = Extract(mode, raw)
	if err != nil {
		return raw, nil, err
	}
	return raw, extraction, nil
}

func (p *Pool) waitReady(ctx context.Context, handle gemini.Handle) error {
	interval := time.Duration(p.cfg.Gemini.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	timeout := time.Duration(p.cfg.Gemini.PollTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	deadline := time.Now().Add(timeout)

	for {
		state, err := p.capability.Poll(ctx, handle)
		if err != nil {
			return err
		}
		switch state {
		case gemini.StateReady:
			return nil
		case gemini.StateFailed:
			return services.Wrap(services.ErrPermanent, "annotate", "poll",
				"capability reported processing failure", nil)
		}
		if time.Now().After(deadline) {
			return services.Wrap(services.ErrTimeout, "annotate", "poll",
				fmt.Sprintf("artifact not ready after %s", timeout), nil)
		}
		if err := p.sleep(ctx, interval); err != nil {
			return err
		}
	}
}
