package annotate_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"matchlens/internal/annotate"
	"matchlens/internal/clips"
	"matchlens/internal/logging"
	"matchlens/internal/services"
	"matchlens/internal/services/gemini"
	"matchlens/internal/store"
	"matchlens/internal/testsupport"
)

type fakeCapability struct {
	mu       sync.Mutex
	submits  int
	releases int
	infers   int

	pollStates []gemini.HandleState
	pollIndex  int
	inferErrs  []error
	inferText  string
}

func (f *fakeCapability) Submit(ctx context.Context, path string) (gemini.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	return gemini.Handle{Name: "files/" + path, URI: "uri", MIMEType: "video/mp4"}, nil
}

func (f *fakeCapability) Poll(ctx context.Context, handle gemini.Handle) (gemini.HandleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollIndex < len(f.pollStates) {
		state := f.pollStates[f.pollIndex]
		f.pollIndex++
		return state, nil
	}
	return gemini.StateReady, nil
}

func (f *fakeCapability) Infer(ctx context.Context, handle gemini.Handle, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infers++
	if len(f.inferErrs) > 0 {
		err := f.inferErrs[0]
		f.inferErrs = f.inferErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.inferText, nil
}

func (f *fakeCapability) Release(ctx context.Context, handle gemini.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return nil
}

func (f *fakeCapability) counts() (submits, releases, infers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.releases, f.infers
}

func noSleep(context.Context, time.Duration) error { return nil }

func testClip(id string, offset int) clips.Clip {
	return clips.Clip{ID: id, Path: "/clips/" + id + ".mp4", OffsetSeconds: offset, Segment: clips.SegmentFirstHalf}
}

func TestRunSkipsDoneWithoutCapabilityCalls(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	record, err := st.EnsurePending(ctx, "clip_00m00s", 0, "first_half")
	if err != nil {
		t.Fatalf("EnsurePending failed: %v", err)
	}
	record.MarkDone("CATEGORY: GAME_START\nCONFIDENCE: 9", &store.Extraction{Category: store.CategoryGameStart, Confidence: 9})
	if err := st.Put(ctx, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	capability := &fakeCapability{}
	pool := annotate.NewPool(capability, st, cfg, logging.NewNop(), annotate.WithSleeper(noSleep))

	summary, err := pool.Run(ctx, annotate.ModeBoundary, []clips.Clip{testClip("clip_00m00s", 0)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Skipped != 1 || summary.Processed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if submits, releases, infers := capability.counts(); submits != 0 || releases != 0 || infers != 0 {
		t.Fatalf("done record must not touch the capability: submits=%d releases=%d infers=%d", submits, releases, infers)
	}
}

func TestRunAnnotatesAndReleases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	capability := &fakeCapability{
		pollStates: []gemini.HandleState{gemini.StateProcessing, gemini.StateReady},
		inferText:  boundaryResponse,
	}
	pool := annotate.NewPool(capability, st, cfg, logging.NewNop(), annotate.WithSleeper(noSleep))

	summary, err := pool.Run(ctx, annotate.ModeBoundary, []clips.Clip{testClip("clip_00m00s", 0)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Done != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	record, err := st.Get(ctx, "clip_00m00s")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.Status != store.StatusDone || record.Extraction == nil {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Extraction.Category != store.CategoryGameStart {
		t.Fatalf("unexpected category %q", record.Extraction.Category)
	}

	submits, releases, _ := capability.counts()
	if submits != 1 || releases != 1 {
		t.Fatalf("expected every submit to be released: submits=%d releases=%d", submits, releases)
	}
}

func TestTransientFailuresAreRetried(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Gemini.RetryMaxAttempts = 4
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	transient := services.Wrap(services.ErrTransient, "gemini", "infer", "http 503", nil)
	capability := &fakeCapability{
		inferErrs: []error{transient, transient, nil},
		inferText: boundaryResponse,
	}
	pool := annotate.NewPool(capability, st, cfg, logging.NewNop(), annotate.WithSleeper(noSleep))

	summary, err := pool.Run(ctx, annotate.ModeBoundary, []clips.Clip{testClip("clip_00m15s", 15)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Done != 1 {
		t.Fatalf("expected success after retries, got %+v", summary)
	}

	submits, releases, infers := capability.counts()
	if infers != 3 {
		t.Fatalf("expected 3 attempts, got %d", infers)
	}
	if submits != releases {
		t.Fatalf("every attempt must release its handle: submits=%d releases=%d", submits, releases)
	}
}

func TestRetryAttemptsAreBounded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Gemini.RetryMaxAttempts = 3
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	transient := services.Wrap(services.ErrTransient, "gemini", "infer", "http 503", nil)
	capability := &fakeCapability{
		inferErrs: []error{transient, transient, transient, transient},
		inferText: boundaryResponse,
	}
	pool := annotate.NewPool(capability, st, cfg, logging.NewNop(), annotate.WithSleeper(noSleep))

	summary, err := pool.Run(ctx, annotate.ModeBoundary, []clips.Clip{testClip("clip_00m30s", 30)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected terminal failure, got %+v", summary)
	}
	if _, _, infers := capability.counts(); infers != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", infers)
	}

	record, err := st.Get(ctx, "clip_00m30s")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.Status != store.StatusFailed {
		t.Fatalf("unexpected status %q", record.Status)
	}
	if !strings.HasPrefix(record.FailureReason, "transient_service_error") {
		t.Fatalf("unexpected failure reason %q", record.FailureReason)
	}
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Gemini.RetryMaxAttempts = 4
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	permanent := services.Wrap(services.ErrPermanent, "gemini", "infer", "content blocked", nil)
	capability := &fakeCapability{inferErrs: []error{permanent}}
	pool := annotate.NewPool(capability, st, cfg, logging.NewNop(), annotate.WithSleeper(noSleep))

	if _, err := pool.Run(ctx, annotate.ModeBoundary, []clips.Clip{testClip("clip_01m00s", 60)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, _, infers := capability.counts(); infers != 1 {
		t.Fatalf("permanent failure must not retry, got %d attempts", infers)
	}

	record, err := st.Get(ctx, "clip_01m00s")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !strings.HasPrefix(record.FailureReason, "permanent_service_error") {
		t.Fatalf("unexpected failure reason %q", record.FailureReason)
	}
}

func TestFailedProcessingShortCircuits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Gemini.RetryMaxAttempts = 4
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	capability := &fakeCapability{pollStates: []gemini.HandleState{gemini.StateFailed}}
	pool := annotate.NewPool(capability, st, cfg, logging.NewNop(), annotate.WithSleeper(noSleep))

	summary, err := pool.Run(ctx, annotate.ModeBoundary, []clips.Clip{testClip("clip_03m00s", 180)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected terminal failure, got %+v", summary)
	}

	submits, releases, infers := capability.counts()
	if submits != 1 || infers != 0 {
		t.Fatalf("failed processing must short-circuit without retry or inference: submits=%d infers=%d", submits, infers)
	}
	if releases != 1 {
		t.Fatalf("failed handle must still be released, got %d releases", releases)
	}

	record, err := st.Get(ctx, "clip_03m00s")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !strings.HasPrefix(record.FailureReason, "permanent_service_error") {
		t.Fatalf("unexpected failure reason %q", record.FailureReason)
	}
}

func TestCancellationLeavesClipPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	capability := &cancellingCapability{cancel: cancel}
	pool := annotate.NewPool(capability, st, cfg, logging.NewNop(), annotate.WithSleeper(noSleep))

	summary, err := pool.Run(ctx, annotate.ModeBoundary, []clips.Clip{testClip("clip_04m00s", 240)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Failed != 0 || summary.Done != 0 {
		t.Fatalf("cancelled work must not count as failure: %+v", summary)
	}

	record, err := st.Get(context.Background(), "clip_04m00s")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.Status != store.StatusPending {
		t.Fatalf("cancelled clip must return to pending, got %q", record.Status)
	}
	if record.FailureReason != "" {
		t.Fatalf("cancelled clip must carry no failure reason, got %q", record.FailureReason)
	}
}

func TestExtractionFailureKeepsRawResponse(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	capability := &fakeCapability{inferText: "An exciting passage of play unfolds."}
	pool := annotate.NewPool(capability, st, cfg, logging.NewNop(), annotate.WithSleeper(noSleep))

	if _, err := pool.Run(ctx, annotate.ModeBoundary, []clips.Clip{testClip("clip_02m00s", 120)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	record, err := st.Get(ctx, "clip_02m00s")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.Status != store.StatusFailed {
		t.Fatalf("unexpected status %q", record.Status)
	}
	if !strings.HasPrefix(record.FailureReason, "schema_extraction_error") {
		t.Fatalf("unexpected failure reason %q", record.FailureReason)
	}
	if record.RawResponse == "" {
		t.Fatal("raw response must be retained for diagnosis")
	}
	if _, _, infers := capability.counts(); infers != 1 {
		t.Fatalf("extraction failure must not retry, got %d attempts", infers)
	}
}

func TestFailureIsolationAcrossClips(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConcurrency(2))
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	capability := &failFirstCapability{failClip: "clip_00m00s", inferText: boundaryResponse}
	pool := annotate.NewPool(capability, st, cfg, logging.NewNop(), annotate.WithSleeper(noSleep))

	summary, err := pool.Run(ctx, annotate.ModeBoundary, []clips.Clip{
		testClip("clip_00m00s", 0),
		testClip("clip_00m15s", 15),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Done != 1 || summary.Failed != 1 {
		t.Fatalf("expected one success and one failure, got %+v", summary)
	}

	healthy, err := st.Get(ctx, "clip_00m15s")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if healthy.Status != store.StatusDone {
		t.Fatalf("healthy clip must complete despite sibling failure, got %q", healthy.Status)
	}
}

// cancellingCapability cancels the run on first contact, simulating an
// operator interrupt while a clip is mid-flight.
type cancellingCapability struct{ cancel context.CancelFunc }

func (c *cancellingCapability) Submit(ctx context.Context, path string) (gemini.Handle, error) {
	c.cancel()
	return gemini.Handle{}, services.Wrap(services.ErrTransient, "gemini", "submit", "connection reset", nil)
}

func (c *cancellingCapability) Poll(ctx context.Context, handle gemini.Handle) (gemini.HandleState, error) {
	return gemini.StateReady, nil
}

func (c *cancellingCapability) Infer(ctx context.Context, handle gemini.Handle, prompt string) (string, error) {
	return "", nil
}

func (c *cancellingCapability) Release(ctx context.Context, handle gemini.Handle) error {
	return nil
}

// failFirstCapability fails permanently for one clip id and succeeds for all
// others.
type failFirstCapability struct {
	failClip  string
	inferText string
}

func (f *failFirstCapability) Submit(ctx context.Context, path string) (gemini.Handle, error) {
	if strings.Contains(path, f.failClip) {
		return gemini.Handle{}, services.Wrap(services.ErrPermanent, "gemini", "submit", "http 400", nil)
	}
	return gemini.Handle{Name: "files/ok", URI: "uri", MIMEType: "video/mp4"}, nil
}

func (f *failFirstCapability) Poll(ctx context.Context, handle gemini.Handle) (gemini.HandleState, error) {
	return gemini.StateReady, nil
}

func (f *failFirstCapability) Infer(ctx context.Context, handle gemini.Handle, prompt string) (string, error) {
	return f.inferText, nil
}

func (f *failFirstCapability) Release(ctx context.Context, handle gemini.Handle) error {
	return nil
}
