package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dubber/internal/config"
	"dubber/internal/jobs"
	"dubber/internal/jobstore"
	"dubber/internal/progress"
	"dubber/internal/staging"
	"dubber/internal/testsupport"
)

type fakeFetcher struct {
	durationSec float64
	err         error
}

func (f *fakeFetcher) Fetch(_ context.Context, sourceURL, destDir string) (FetchResult, error) {
	if f.err != nil {
		return FetchResult{}, f.err
	}
	localPath := filepath.Join(destDir, "source.mp4")
	if err := os.WriteFile(localPath, []byte("source media"), 0o644); err != nil {
		return FetchResult{}, err
	}
	return FetchResult{
		LocalPath: localPath,
		Info: jobs.VideoInfo{
			Title:       "Test Video",
			DurationSec: f.durationSec,
			Uploader:    "testchan",
			Ext:         "mp4",
		},
	}, nil
}

type fakeSplitter struct{}

func (fakeSplitter) Plan(_ context.Context, _ string, durationSec float64, cfg jobs.PipelineConfig) ([]jobs.Span, error) {
	return jobs.PlanChunks(durationSec, cfg.ChunkDuration), nil
}

func (fakeSplitter) Split(_ context.Context, _ string, spans []jobs.Span, destDir string) ([]string, error) {
	paths := make([]string, 0, len(spans))
	for _, span := range spans {
		path := filepath.Join(destDir, fmt.Sprintf("chunk_%03d.mp4", span.Index))
		if err := os.WriteFile(path, []byte("chunk"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// fakeTranslator fails the chunk indices listed in failIndexes until they
// have been attempted failUntil times. With block set, every call parks
// until its context is cancelled.
type fakeTranslator struct {
	mu          sync.Mutex
	failIndexes map[int]bool
	failUntil   int
	attempts    map[int]int
	block       bool
	delay       time.Duration
	started     atomic.Int64
}

func (f *fakeTranslator) Translate(ctx context.Context, chunk jobs.Chunk, _ jobs.PipelineConfig, destDir string) (string, error) {
	f.started.Add(1)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = make(map[int]int)
	}
	f.attempts[chunk.Index]++
	attempt := f.attempts[chunk.Index]
	shouldFail := f.failIndexes[chunk.Index] && (f.failUntil == 0 || attempt <= f.failUntil)
	f.mu.Unlock()

	if shouldFail {
		return "", fmt.Errorf("dubbing service rejected chunk %d", chunk.Index)
	}

	path := filepath.Join(destDir, fmt.Sprintf("dubbed_%03d.mp4", chunk.Index))
	if err := os.WriteFile(path, []byte("dubbed"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeMerger struct {
	calls atomic.Int64
	err   error
}

func (f *fakeMerger) Merge(_ context.Context, dubbedPaths []string, cfg jobs.PipelineConfig, outputDir string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	outputPath := filepath.Join(outputDir, "dubbed."+cfg.OutputFormat)
	payload := fmt.Sprintf("merged %d chunks", len(dubbedPaths))
	if err := os.WriteFile(outputPath, []byte(payload), 0o644); err != nil {
		return "", err
	}
	return outputPath, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	started   []string
	completed []string
	failed    []string
	cancelled []string
}

func (f *fakeNotifier) JobStarted(_ context.Context, job *jobs.Job) {
	f.mu.Lock()
	f.started = append(f.started, job.ID)
	f.mu.Unlock()
}

func (f *fakeNotifier) JobCancelled(_ context.Context, job *jobs.Job) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, job.ID)
	f.mu.Unlock()
}

func (f *fakeNotifier) JobCompleted(_ context.Context, job *jobs.Job) {
	f.mu.Lock()
	f.completed = append(f.completed, job.ID)
	f.mu.Unlock()
}

func (f *fakeNotifier) JobFailed(_ context.Context, job *jobs.Job) {
	f.mu.Lock()
	f.failed = append(f.failed, job.ID)
	f.mu.Unlock()
}

type harness struct {
	cfg        *config.Config
	store      jobstore.Store
	staging    *staging.Manager
	bus        *progress.Bus
	fetcher    *fakeFetcher
	translator *fakeTranslator
	merger     *fakeMerger
	notifier   *fakeNotifier
	orch       *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	manager, err := staging.NewManager(cfg.WorkDir(), nil)
	if err != nil {
		t.Fatalf("new staging manager: %v", err)
	}

	h := &harness{
		cfg:        cfg,
		store:      store,
		staging:    manager,
		bus:        progress.NewBus(),
		fetcher:    &fakeFetcher{durationSec: 150},
		translator: &fakeTranslator{},
		merger:     &fakeMerger{},
		notifier:   &fakeNotifier{},
	}

	h.orch, err = NewOrchestrator(Options{
		Config:     cfg,
		Store:      store,
		Staging:    manager,
		Bus:        h.bus,
		Fetcher:    h.fetcher,
		Splitter:   fakeSplitter{},
		Translator: h.translator,
		Merger:     h.merger,
		Notifier:   h.notifier,
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	t.Cleanup(h.orch.Close)
	return h
}

func defaultJobConfig() jobs.PipelineConfig {
	return jobs.PipelineConfig{
		ChunkDuration:   60,
		TargetLanguage:  "es",
		MaxParallelJobs: 2,
	}
}
