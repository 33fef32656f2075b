package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dubber/internal/config"
	"dubber/internal/jobs"
	"dubber/internal/jobstore"
	"dubber/internal/logging"
	"dubber/internal/progress"
	"dubber/internal/services"
	"dubber/internal/staging"
)

// Options wires the orchestrator's collaborators. Config, Store, Staging,
// Bus, Fetcher, Splitter, Translator, and Merger are required; Notifier
// and Logger are optional.
type Options struct {
	Config     *config.Config
	Store      jobstore.Store
	Staging    *staging.Manager
	Bus        *progress.Bus
	Logger     *slog.Logger
	Fetcher    MediaFetcher
	Splitter   ChunkSplitter
	Translator ChunkTranslator
	Merger     Merger
	Notifier   Notifier
}

// Orchestrator drives jobs through the dubbing pipeline. It is the single
// writer of a job's record, so per-job state transitions are strictly
// sequential.
type Orchestrator struct {
	cfg        *config.Config
	store      jobstore.Store
	staging    *staging.Manager
	bus        *progress.Bus
	fetcher    MediaFetcher
	splitter   ChunkSplitter
	translator ChunkTranslator
	merger     Merger
	notifier   Notifier
	logger     *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	timers  map[string]*time.Timer

	wg sync.WaitGroup
}

// NewOrchestrator validates the wiring and builds an orchestrator.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("pipeline: config is required")
	case opts.Store == nil:
		return nil, errors.New("pipeline: job store is required")
	case opts.Staging == nil:
		return nil, errors.New("pipeline: staging manager is required")
	case opts.Bus == nil:
		return nil, errors.New("pipeline: progress bus is required")
	case opts.Fetcher == nil:
		return nil, errors.New("pipeline: media fetcher is required")
	case opts.Splitter == nil:
		return nil, errors.New("pipeline: chunk splitter is required")
	case opts.Translator == nil:
		return nil, errors.New("pipeline: chunk translator is required")
	case opts.Merger == nil:
		return nil, errors.New("pipeline: merger is required")
	}

	logger := logging.NewComponentLogger(opts.Logger, "pipeline")
	return &Orchestrator{
		cfg:        opts.Config,
		store:      opts.Store,
		staging:    opts.Staging,
		bus:        opts.Bus,
		fetcher:    opts.Fetcher,
		splitter:   opts.Splitter,
		translator: opts.Translator,
		merger:     opts.Merger,
		notifier:   opts.Notifier,
		logger:     logger,
		cancels:    make(map[string]context.CancelFunc),
		timers:     make(map[string]*time.Timer),
	}, nil
}

// Start validates the request, creates the job record, and launches the
// pipeline in the background. It returns the new job id immediately.
func (o *Orchestrator) Start(ctx context.Context, sourceURL string, cfg jobs.PipelineConfig) (string, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return "", services.Wrap(services.ErrValidation, "", "start", "source url must not be empty", nil)
	}

	normalized := cfg.Normalized()
	if err := normalized.Validate(); err != nil {
		return "", err
	}

	job := &jobs.Job{
		ID:        uuid.NewString(),
		Status:    jobs.StatusPending,
		SourceURL: sourceURL,
		Config:    normalized,
	}
	job.SetProgress("Queued", "waiting to start", 0)

	if err := o.store.Create(ctx, job); err != nil {
		return "", services.Wrap(services.ErrPipelineFatal, "", "start", "create job record", err)
	}

	o.launch(job)

	o.logger.Info("job accepted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source_url", sourceURL),
		logging.String("target_language", normalized.TargetLanguage))
	return job.ID, nil
}

// launch registers a cancellable run context and starts the pipeline
// goroutine. The run context is detached from the caller so the job
// outlives the request that started it.
func (o *Orchestrator) launch(job *jobs.Job) {
	runCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.cancels[job.ID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			cancel()
			o.mu.Lock()
			delete(o.cancels, job.ID)
			o.mu.Unlock()
		}()
		o.run(runCtx, job)
	}()
}

// Cancel requests cooperative cancellation of a processing job and
// returns without waiting for in-flight chunk calls to drain.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "", "cancel", fmt.Sprintf("job %s", jobID), nil)
	}
	if !job.IsCancellable() {
		return services.Wrap(services.ErrInvalidState, "", "cancel",
			fmt.Sprintf("job %s is %s", jobID, job.Status), nil)
	}

	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if !ok {
		// Cancellable status but no live run: the process restarted under
		// the job. Mark it failed so it does not stay stuck.
		job.SetFailed("processing interrupted by restart")
		if err := o.store.Update(ctx, job); err != nil {
			return err
		}
		return nil
	}

	cancel()
	o.logger.Info("cancellation requested", logging.String(logging.FieldJobID, jobID))
	return nil
}

// RetryFailedChunks re-runs failed chunks of a failed job. With no
// indices it retries every failed chunk; explicit indices must each name
// a currently failed chunk. Returns the indices scheduled for retry.
func (o *Orchestrator) RetryFailedChunks(ctx context.Context, jobID string, indices ...int) ([]int, error) {
	job, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "retry", fmt.Sprintf("job %s", jobID), nil)
	}
	if job.Status != jobs.StatusFailed {
		return nil, services.Wrap(services.ErrInvalidState, "", "retry",
			fmt.Sprintf("job %s is %s, only failed jobs can be retried", jobID, job.Status), nil)
	}

	failed := job.FailedChunkIndexes()
	if len(failed) == 0 {
		return nil, services.Wrap(services.ErrInvalidState, "", "retry",
			fmt.Sprintf("job %s has no failed chunks", jobID), nil)
	}

	selected := indices
	if len(selected) == 0 {
		selected = failed
	} else {
		for _, index := range selected {
			chunk := job.ChunkByIndex(index)
			if chunk == nil {
				return nil, services.Wrap(services.ErrValidation, "", "retry",
					fmt.Sprintf("chunk %d does not exist", index), nil)
			}
			if chunk.Status != jobs.ChunkFailed {
				return nil, services.Wrap(services.ErrValidation, "", "retry",
					fmt.Sprintf("chunk %d is %s, not failed", index, chunk.Status), nil)
			}
		}
	}

	retried := append([]int(nil), selected...)
	sort.Ints(retried)

	// Reset the selected chunks; attempts survive so the history of
	// retries stays visible.
	for _, index := range retried {
		chunk := job.ChunkByIndex(index)
		chunk.Status = jobs.ChunkPending
		chunk.Error = ""
		chunk.DubbedPath = ""
	}
	job.Status = jobs.StatusDubbing
	job.ErrorMessage = ""
	job.SetProgress("Dubbing", fmt.Sprintf("retrying %d chunk(s)", len(retried)), pctDubbing)

	if err := o.store.Update(ctx, job); err != nil {
		return nil, err
	}
	o.publishProgress(job)

	o.launchResume(job)

	o.logger.Info("chunk retry scheduled",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("chunks", len(retried)))
	return retried, nil
}

func (o *Orchestrator) launchResume(job *jobs.Job) {
	runCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.cancels[job.ID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			cancel()
			o.mu.Lock()
			delete(o.cancels, job.ID)
			o.mu.Unlock()
		}()
		o.resume(runCtx, job)
	}()
}

// Job fetches one job record, returning (nil, nil) when it does not exist.
func (o *Orchestrator) Job(ctx context.Context, jobID string) (*jobs.Job, error) {
	return o.store.GetByID(ctx, jobID)
}

// List returns a page of jobs ordered by creation time, newest first.
func (o *Orchestrator) List(ctx context.Context, opts jobstore.ListOptions) (jobstore.ListResult, error) {
	return o.store.List(ctx, opts)
}

// Delete removes a finished job: its record, its staging tree, and every
// progress subscription. Pending and processing jobs must be cancelled
// first; a pending job's run goroutine may not have written its first
// transition yet, so deleting it would pull the record out from under a
// live run.
func (o *Orchestrator) Delete(ctx context.Context, jobID string) error {
	job, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "", "delete", fmt.Sprintf("job %s", jobID), nil)
	}
	if !job.IsTerminal() {
		return services.Wrap(services.ErrInvalidState, "", "delete",
			fmt.Sprintf("job %s is %s, cancel it first", jobID, job.Status), nil)
	}

	o.mu.Lock()
	if timer, ok := o.timers[jobID]; ok {
		timer.Stop()
		delete(o.timers, jobID)
	}
	o.mu.Unlock()

	if _, err := o.store.Remove(ctx, jobID); err != nil {
		return err
	}
	if err := o.staging.CleanupJobFiles(jobID); err != nil {
		logging.WarnWithContext(o.logger, "failed to remove job files", "cleanup_failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "orphaned directory until the stale reaper runs"))
	}
	o.bus.UnsubscribeAll(jobID)

	o.logger.Info("job deleted", logging.String(logging.FieldJobID, jobID))
	return nil
}

// Wait blocks until every running job goroutine has finished. Cancelled
// jobs count as finished once their in-flight calls drain.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels all running jobs, waits for them to drain, and stops
// pending output cleanup timers.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()

	o.wg.Wait()

	o.mu.Lock()
	for id, timer := range o.timers {
		timer.Stop()
		delete(o.timers, id)
	}
	o.mu.Unlock()
}
