package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"dubber/internal/jobs"
	"dubber/internal/progress"
	"dubber/internal/services"
)

func waitForStatus(t *testing.T, h *harness, jobID string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.store.GetByID(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, want)
	return nil
}

func TestPipelineCompletesJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	jobID, err := h.orch.Start(ctx, "https://example.com/watch?v=abc", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.orch.Wait()

	job, err := h.store.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", job.Status, job.ErrorMessage)
	}
	if job.ProgressPercent != 100 {
		t.Errorf("progress = %v, want 100", job.ProgressPercent)
	}
	if len(job.Chunks) != 3 {
		t.Fatalf("chunks = %d, want 3 for a 150s video in 60s chunks", len(job.Chunks))
	}
	for _, chunk := range job.Chunks {
		if chunk.Status != jobs.ChunkSucceeded || chunk.Attempts != 1 {
			t.Errorf("chunk %d = %s after %d attempts, want succeeded after 1", chunk.Index, chunk.Status, chunk.Attempts)
		}
	}

	if job.OutputFile == "" {
		t.Fatal("completed job must record its output file")
	}
	if _, err := os.Stat(job.OutputFile); err != nil {
		t.Errorf("output file missing: %v", err)
	}

	// Intermediates are gone, output survives.
	paths, err := h.staging.PathsFor(jobID)
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if _, err := os.Stat(paths.Source); !os.IsNotExist(err) {
		t.Error("source dir should be cleaned up after completion")
	}
	if _, err := os.Stat(paths.Output); err != nil {
		t.Errorf("output dir should survive completion: %v", err)
	}

	if len(h.notifier.completed) != 1 || h.notifier.completed[0] != jobID {
		t.Errorf("completion notification = %v, want [%s]", h.notifier.completed, jobID)
	}
	if len(h.notifier.started) != 1 {
		t.Errorf("start notifications = %v, want one", h.notifier.started)
	}
}

func TestPipelineKeepsIntermediatesWhenAsked(t *testing.T) {
	h := newHarness(t)

	cfg := defaultJobConfig()
	cfg.KeepIntermediateFiles = true
	jobID, err := h.orch.Start(context.Background(), "https://example.com/v", cfg)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.orch.Wait()

	paths, err := h.staging.PathsFor(jobID)
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if _, err := os.Stat(paths.Chunks); err != nil {
		t.Errorf("chunks dir should survive with keep_intermediate_files: %v", err)
	}
}

func TestPipelineChunkFailureFailsJobWithoutMerging(t *testing.T) {
	h := newHarness(t)
	h.translator.failIndexes = map[int]bool{1: true}

	jobID, err := h.orch.Start(context.Background(), "https://example.com/v", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.orch.Wait()

	job, err := h.store.GetByID(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Error("failed job must record an error message")
	}

	// The failure is isolated: siblings still finished.
	if got := job.FailedChunkIndexes(); len(got) != 1 || got[0] != 1 {
		t.Errorf("failed chunks = %v, want [1]", got)
	}
	for _, chunk := range job.Chunks {
		if chunk.Index != 1 && chunk.Status != jobs.ChunkSucceeded {
			t.Errorf("chunk %d = %s, want succeeded", chunk.Index, chunk.Status)
		}
	}

	if h.merger.calls.Load() != 0 {
		t.Error("merge must never run while any chunk is failed")
	}
	if len(h.notifier.failed) != 1 {
		t.Errorf("failure notifications = %v, want one", h.notifier.failed)
	}
}

func TestRetryFailedChunksCompletesJob(t *testing.T) {
	h := newHarness(t)
	h.translator.failIndexes = map[int]bool{1: true}
	h.translator.failUntil = 1 // fail the first attempt only

	ctx := context.Background()
	jobID, err := h.orch.Start(ctx, "https://example.com/v", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.orch.Wait()
	waitForStatus(t, h, jobID, jobs.StatusFailed)

	retried, err := h.orch.RetryFailedChunks(ctx, jobID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(retried) != 1 || retried[0] != 1 {
		t.Fatalf("retried = %v, want [1]", retried)
	}
	h.orch.Wait()

	job, err := h.store.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status after retry = %s (%s), want completed", job.Status, job.ErrorMessage)
	}
	chunk := job.ChunkByIndex(1)
	if chunk.Attempts != 2 {
		t.Errorf("retried chunk attempts = %d, want 2", chunk.Attempts)
	}
	// Successful siblings were not re-run.
	if job.ChunkByIndex(0).Attempts != 1 || job.ChunkByIndex(2).Attempts != 1 {
		t.Error("retry must not re-run succeeded chunks")
	}
	if h.merger.calls.Load() != 1 {
		t.Errorf("merge calls = %d, want 1", h.merger.calls.Load())
	}
}

func TestRetryFailedChunksValidation(t *testing.T) {
	h := newHarness(t)
	h.translator.failIndexes = map[int]bool{0: true}
	ctx := context.Background()

	jobID, err := h.orch.Start(ctx, "https://example.com/v", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.orch.Wait()
	waitForStatus(t, h, jobID, jobs.StatusFailed)

	if _, err := h.orch.RetryFailedChunks(ctx, "no-such-job"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("unknown job error = %v, want ErrNotFound", err)
	}
	if _, err := h.orch.RetryFailedChunks(ctx, jobID, 99); !errors.Is(err, services.ErrValidation) {
		t.Errorf("unknown index error = %v, want ErrValidation", err)
	}
	if _, err := h.orch.RetryFailedChunks(ctx, jobID, 1); !errors.Is(err, services.ErrValidation) {
		t.Errorf("non-failed index error = %v, want ErrValidation", err)
	}
}

func TestRetryRejectsNonFailedJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	jobID, err := h.orch.Start(ctx, "https://example.com/v", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.orch.Wait()
	waitForStatus(t, h, jobID, jobs.StatusCompleted)

	if _, err := h.orch.RetryFailedChunks(ctx, jobID); !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("retry completed job error = %v, want ErrInvalidState", err)
	}
}

func TestCancelRunningJob(t *testing.T) {
	h := newHarness(t)
	h.translator.block = true
	ctx := context.Background()

	jobID, err := h.orch.Start(ctx, "https://example.com/v", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, h, jobID, jobs.StatusDubbing)

	if err := h.orch.Cancel(ctx, jobID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	h.orch.Wait()

	job, err := h.store.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", job.Status)
	}
	if job.ErrorMessage != jobs.CancelledReason {
		t.Errorf("error message = %q, want %q", job.ErrorMessage, jobs.CancelledReason)
	}
	if h.merger.calls.Load() != 0 {
		t.Error("cancelled job must never merge")
	}

	h.notifier.mu.Lock()
	cancelled := len(h.notifier.cancelled)
	h.notifier.mu.Unlock()
	if cancelled != 1 {
		t.Errorf("cancel notifications = %d, want 1", cancelled)
	}

	paths, err := h.staging.PathsFor(jobID)
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if _, err := os.Stat(paths.Source); !os.IsNotExist(err) {
		t.Errorf("cancelled job should have intermediates removed, stat source: %v", err)
	}
}

func TestCancelGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.orch.Cancel(ctx, "no-such-job"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("cancel unknown job error = %v, want ErrNotFound", err)
	}

	jobID, err := h.orch.Start(ctx, "https://example.com/v", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.orch.Wait()
	waitForStatus(t, h, jobID, jobs.StatusCompleted)

	if err := h.orch.Cancel(ctx, jobID); !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("cancel completed job error = %v, want ErrInvalidState", err)
	}
}

func TestDeleteJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.orch.Delete(ctx, "no-such-job"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("delete unknown job error = %v, want ErrNotFound", err)
	}

	jobID, err := h.orch.Start(ctx, "https://example.com/v", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.orch.Wait()
	waitForStatus(t, h, jobID, jobs.StatusCompleted)

	unsub := h.bus.Subscribe(jobID, func(progress.Event) {})
	defer unsub()

	if err := h.orch.Delete(ctx, jobID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	job, err := h.store.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get deleted job: %v", err)
	}
	if job != nil {
		t.Error("deleted job should be gone from the store")
	}
	paths, _ := h.staging.PathsFor(jobID)
	if _, err := os.Stat(paths.Root); !os.IsNotExist(err) {
		t.Error("deleted job's staging tree should be removed")
	}
	if h.bus.SubscriberCount(jobID) != 0 {
		t.Error("delete must drop every progress subscription")
	}
}

func TestDeleteRejectsProcessingJob(t *testing.T) {
	h := newHarness(t)
	h.translator.block = true
	ctx := context.Background()

	jobID, err := h.orch.Start(ctx, "https://example.com/v", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, h, jobID, jobs.StatusDubbing)

	if err := h.orch.Delete(ctx, jobID); !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("delete processing job error = %v, want ErrInvalidState", err)
	}

	if err := h.orch.Cancel(ctx, jobID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	h.orch.Wait()
}

func TestDeleteRejectsPendingJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// A pending record with no live run, as left behind by a crash
	// between job creation and the first stage transition.
	job := &jobs.Job{
		ID:        "orphaned-pending",
		Status:    jobs.StatusPending,
		SourceURL: "https://example.com/v",
		Config:    defaultJobConfig().Normalized(),
	}
	if err := h.store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := h.orch.Delete(ctx, job.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("delete pending job error = %v, want ErrInvalidState", err)
	}

	// Cancel resolves it: no live run, so the job is marked failed and
	// becomes deletable.
	if err := h.orch.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, err := h.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status after cancel = %s, want failed", got.Status)
	}
	if err := h.orch.Delete(ctx, job.ID); err != nil {
		t.Fatalf("delete after cancel: %v", err)
	}
}

func TestStartValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.orch.Start(ctx, "  ", defaultJobConfig()); !errors.Is(err, services.ErrValidation) {
		t.Errorf("empty url error = %v, want ErrValidation", err)
	}

	bad := defaultJobConfig()
	bad.ChunkDuration = 45
	if _, err := h.orch.Start(ctx, "https://example.com/v", bad); !errors.Is(err, services.ErrValidation) {
		t.Errorf("bad chunk duration error = %v, want ErrValidation", err)
	}
}

func TestDownloadFailureFailsJob(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = errors.New("video unavailable")
	ctx := context.Background()

	jobID, err := h.orch.Start(ctx, "https://example.com/v", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.orch.Wait()

	job, err := h.store.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Error("download failure must surface in the error message")
	}
}

func TestProgressEventsReachSubscribers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		kinds  = make(map[progress.Kind]int)
		stages []string
	)

	// The translator delay keeps the dubbing stage open long enough for
	// the subscription below to land; the bus holds no history.
	h.translator.delay = 50 * time.Millisecond
	jobID, err := h.orch.Start(ctx, "https://example.com/v", defaultJobConfig())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	unsub := h.bus.Subscribe(jobID, func(event progress.Event) {
		mu.Lock()
		kinds[event.Kind]++
		if snap, ok := event.Payload.(jobs.Snapshot); ok {
			stages = append(stages, snap.Stage)
		}
		mu.Unlock()
	})
	defer unsub()

	h.orch.Wait()

	mu.Lock()
	defer mu.Unlock()
	if kinds[progress.KindComplete] != 1 {
		t.Errorf("complete events = %d, want 1", kinds[progress.KindComplete])
	}
	if kinds[progress.KindProgress] == 0 {
		t.Error("expected progress events during the run")
	}
	if kinds[progress.KindError] != 0 {
		t.Errorf("unexpected error events: %d", kinds[progress.KindError])
	}
	if len(stages) == 0 || stages[len(stages)-1] != "Completed" {
		t.Errorf("last observed stage = %v, want Completed", stages)
	}
}
