package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"matchlens/internal/annotate"
	"matchlens/internal/clips"
	"matchlens/internal/logging"
	"matchlens/internal/pipeline"
	"matchlens/internal/services"
	"matchlens/internal/services/gemini"
	"matchlens/internal/store"
	"matchlens/internal/testsupport"
)

const activePlayResponse = `TIMESTAMP: 00:00
CATEGORY: ACTIVE_PLAY
CONFIDENCE: 8

KEY_INDICATORS:
- Organized teams contesting possession

TIMELINE_RELEVANCE:
Competitive play between organized teams is underway.`

type countingCapability struct {
	calls   int64
	respond string
}

func (c *countingCapability) Submit(ctx context.Context, path string) (gemini.Handle, error) {
	atomic.AddInt64(&c.calls, 1)
	return gemini.Handle{Name: "files/" + filepath.Base(path), URI: "uri", MIMEType: "video/mp4"}, nil
}

func (c *countingCapability) Poll(ctx context.Context, handle gemini.Handle) (gemini.HandleState, error) {
	return gemini.StateReady, nil
}

func (c *countingCapability) Infer(ctx context.Context, handle gemini.Handle, prompt string) (string, error) {
	return c.respond, nil
}

func (c *countingCapability) Release(ctx context.Context, handle gemini.Handle) error {
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func seedClips(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
			t.Fatalf("write clip: %v", err)
		}
	}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seedClips(t, cfg.Paths.ClipsDir,
		filepath.Join("first_half", "clip_00m00s.mp4"),
		filepath.Join("first_half", "clip_00m15s.mp4"),
		filepath.Join("second_half", "clip_35m10s.mp4"),
	)

	capability := &countingCapability{respond: activePlayResponse}
	p := pipeline.New(cfg, st, capability, logging.NewNop(),
		pipeline.WithPoolOptions(annotate.WithSleeper(noSleep)))

	result, err := p.Analyze(context.Background(), annotate.ModeBoundary, clips.Filter{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Enumerated != 3 || result.Summary.Done != 3 || result.Summary.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.RunID == "" {
		t.Fatal("expected a run id")
	}

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Done != 3 {
		t.Fatalf("unexpected store stats: %+v", stats)
	}

	timeline, artifact, err := p.Synthesize(context.Background(), annotate.ModeBoundary)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if timeline.Mode != "boundary" {
		t.Fatalf("unexpected timeline mode %q", timeline.Mode)
	}
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("expected timeline artifact on disk: %v", err)
	}
}

func TestAnalyzeResumesWithoutCapabilityCalls(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seedClips(t, cfg.Paths.ClipsDir, filepath.Join("first_half", "clip_00m00s.mp4"))

	ctx := context.Background()
	record, err := st.EnsurePending(ctx, "clip_00m00s", 0, "first_half")
	if err != nil {
		t.Fatalf("EnsurePending failed: %v", err)
	}
	record.MarkDone(activePlayResponse, &store.Extraction{Category: store.CategoryActivePlay, Confidence: 8, Evidence: "competitive play"})
	if err := st.Put(ctx, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	capability := &countingCapability{respond: activePlayResponse}
	p := pipeline.New(cfg, st, capability, logging.NewNop(),
		pipeline.WithPoolOptions(annotate.WithSleeper(noSleep)))

	result, err := p.Analyze(ctx, annotate.ModeBoundary, clips.Filter{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Summary.Skipped != 1 || result.Summary.Processed != 0 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if atomic.LoadInt64(&capability.calls) != 0 {
		t.Fatalf("resumption must perform zero capability calls, got %d", capability.calls)
	}
}

func TestAnalyzeFailsOnEmptyInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := os.MkdirAll(cfg.Paths.ClipsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	p := pipeline.New(cfg, st, &countingCapability{}, logging.NewNop())
	_, err := p.Analyze(context.Background(), annotate.ModeBoundary, clips.Filter{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty input, got %v", err)
	}
}

func TestAnalyzeRefusesConcurrentRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seedClips(t, cfg.Paths.ClipsDir, filepath.Join("first_half", "clip_00m00s.mp4"))

	lock := flock.New(filepath.Join(cfg.Paths.ResultsDir, "matchlens.lock"))
	acquired, err := lock.TryLock()
	if err != nil || !acquired {
		t.Fatalf("could not pre-acquire lock: acquired=%v err=%v", acquired, err)
	}
	defer lock.Unlock()

	p := pipeline.New(cfg, st, &countingCapability{respond: activePlayResponse}, logging.NewNop())
	_, err = p.Analyze(context.Background(), annotate.ModeBoundary, clips.Filter{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected lock contention to fail the run, got %v", err)
	}
}

func TestAnalyzeResetsStaleInFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seedClips(t, cfg.Paths.ClipsDir, filepath.Join("first_half", "clip_00m00s.mp4"))

	ctx := context.Background()
	record, err := st.EnsurePending(ctx, "clip_00m00s", 0, "first_half")
	if err != nil {
		t.Fatalf("EnsurePending failed: %v", err)
	}
	record.Status = store.StatusInFlight
	if err := st.Put(ctx, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	p := pipeline.New(cfg, st, &countingCapability{respond: activePlayResponse}, logging.NewNop(),
		pipeline.WithPoolOptions(annotate.WithSleeper(noSleep)))
	result, err := p.Analyze(ctx, annotate.ModeBoundary, clips.Filter{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.ResetCount != 1 {
		t.Fatalf("expected 1 stale record reset, got %d", result.ResetCount)
	}
	if result.Summary.Done != 1 {
		t.Fatalf("reset record must be reprocessed: %+v", result.Summary)
	}
}
