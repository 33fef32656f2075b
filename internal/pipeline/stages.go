package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dubber/internal/dispatch"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/progress"
	"dubber/internal/services"
	"dubber/internal/staging"
)

// Progress percentages at each stage boundary. Dubbing owns the widest
// band because chunk translation dominates wall-clock time.
const (
	pctDownloading = 5.0
	pctChunking    = 20.0
	pctDubbing     = 30.0
	pctMerging     = 80.0
	pctFinalizing  = 95.0
	pctCompleted   = 100.0
)

const dubbingSpan = pctMerging - pctDubbing

// run drives a fresh job through every stage and records the terminal
// state.
func (o *Orchestrator) run(ctx context.Context, job *jobs.Job) {
	if o.notifier != nil {
		o.notifier.JobStarted(ctx, job)
	}
	err := o.execute(ctx, job)
	o.settle(ctx, job, err)
}

// resume picks a retried job up at the dubbing stage.
func (o *Orchestrator) resume(ctx context.Context, job *jobs.Job) {
	err := o.executeFromDubbing(ctx, job)
	o.settle(ctx, job, err)
}

func (o *Orchestrator) settle(ctx context.Context, job *jobs.Job, err error) {
	switch {
	case err == nil:
		return
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		o.markCancelled(job)
	default:
		o.markFailed(job, err)
	}
}

func (o *Orchestrator) execute(ctx context.Context, job *jobs.Job) error {
	paths, err := o.staging.CreateJobDirectories(job.ID)
	if err != nil {
		return services.Wrap(services.ErrPipelineFatal, string(jobs.StatusDownloading), "staging", "create job directories", err)
	}

	sourcePath, err := o.download(ctx, job, paths)
	if err != nil {
		return err
	}

	if err := o.chunk(ctx, job, sourcePath, paths); err != nil {
		return err
	}

	if err := o.dub(ctx, job, paths); err != nil {
		return err
	}

	return o.mergeAndFinalize(ctx, job, paths)
}

// executeFromDubbing re-enters the pipeline for a job whose chunks
// already exist on disk.
func (o *Orchestrator) executeFromDubbing(ctx context.Context, job *jobs.Job) error {
	paths, err := o.staging.CreateJobDirectories(job.ID)
	if err != nil {
		return services.Wrap(services.ErrPipelineFatal, string(jobs.StatusDubbing), "staging", "create job directories", err)
	}

	if err := o.dub(ctx, job, paths); err != nil {
		return err
	}

	return o.mergeAndFinalize(ctx, job, paths)
}

func (o *Orchestrator) download(ctx context.Context, job *jobs.Job, paths staging.JobPaths) (string, error) {
	if err := o.transition(ctx, job, jobs.StatusDownloading, "Downloading", "fetching source media", pctDownloading); err != nil {
		return "", err
	}

	fetchCtx := ctx
	if timeout := o.cfg.Workflow.DownloadTimeout; timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	result, err := o.fetcher.Fetch(fetchCtx, job.SourceURL, paths.Source)
	if err != nil {
		return "", services.Wrap(services.ErrPipelineFatal, string(jobs.StatusDownloading), "fetch", job.SourceURL, err)
	}
	if result.Info.DurationSec <= 0 {
		return "", services.Wrap(services.ErrPipelineFatal, string(jobs.StatusDownloading), "fetch",
			fmt.Sprintf("source reported non-positive duration %v", result.Info.DurationSec), nil)
	}

	job.VideoInfo = result.Info
	if err := o.persist(ctx, job); err != nil {
		return "", err
	}
	return result.LocalPath, nil
}

func (o *Orchestrator) chunk(ctx context.Context, job *jobs.Job, sourcePath string, paths staging.JobPaths) error {
	if err := o.transition(ctx, job, jobs.StatusChunking, "Chunking", "splitting source into chunks", pctChunking); err != nil {
		return err
	}

	spans, err := o.splitter.Plan(ctx, sourcePath, job.VideoInfo.DurationSec, job.Config)
	if err != nil {
		return services.Wrap(services.ErrPipelineFatal, string(jobs.StatusChunking), "plan", "", err)
	}
	if len(spans) == 0 {
		return services.Wrap(services.ErrPipelineFatal, string(jobs.StatusChunking), "plan", "no chunks planned", nil)
	}

	chunkPaths, err := o.splitter.Split(ctx, sourcePath, spans, paths.Chunks)
	if err != nil {
		return services.Wrap(services.ErrPipelineFatal, string(jobs.StatusChunking), "split", "", err)
	}
	if len(chunkPaths) != len(spans) {
		return services.Wrap(services.ErrPipelineFatal, string(jobs.StatusChunking), "split",
			fmt.Sprintf("planned %d chunks but produced %d files", len(spans), len(chunkPaths)), nil)
	}

	job.Chunks = jobs.NewChunks(spans)
	for i := range job.Chunks {
		job.Chunks[i].SourcePath = chunkPaths[i]
	}
	return o.persist(ctx, job)
}

// dub runs the dispatcher over every non-succeeded chunk. A chunk failure
// never aborts its siblings; the stage fails only after all chunks are
// terminal.
func (o *Orchestrator) dub(ctx context.Context, job *jobs.Job, paths staging.JobPaths) error {
	if err := o.transition(ctx, job, jobs.StatusDubbing, "Dubbing",
		fmt.Sprintf("dubbing %d chunk(s)", len(job.Chunks)), pctDubbing); err != nil {
		return err
	}

	var pending []*jobs.Chunk
	for i := range job.Chunks {
		if job.Chunks[i].Status != jobs.ChunkSucceeded {
			pending = append(pending, &job.Chunks[i])
		}
	}
	if len(pending) == 0 {
		return nil
	}

	total := len(job.Chunks)
	settled := total - len(pending)

	// Outcome callbacks run inside the dispatcher's critical section
	// alongside the chunk state writes, so the counter and the snapshot
	// persisted here are consistent without extra locking.
	reporter := dispatch.NewDispatcher(o.logger, dispatch.WithOutcomeFunc(func(outcome dispatch.Outcome) {
		settled++
		percent := pctDubbing + dubbingSpan*float64(settled)/float64(total)
		job.SetProgress("Dubbing", fmt.Sprintf("%d of %d chunk(s) done", settled, total), percent)
		if err := o.persist(context.WithoutCancel(ctx), job); err != nil {
			logging.WarnWithContext(o.logger, "failed to persist chunk progress", "persist_failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Int(logging.FieldChunk, outcome.Index),
				logging.Error(err))
		}
		o.publishProgress(job)
	}))

	result := reporter.Run(ctx, pending, job.Config.MaxParallelJobs, func(ctx context.Context, chunk *jobs.Chunk) (string, error) {
		return o.translator.Translate(ctx, *chunk, job.Config, paths.Dubbed)
	})

	if len(result.Skipped) > 0 {
		return context.Canceled
	}
	if len(result.Failed) > 0 {
		return services.Wrap(services.ErrChunkOperation, string(jobs.StatusDubbing), "dub",
			fmt.Sprintf("%d of %d chunk(s) failed", len(result.Failed), total), nil)
	}
	return nil
}

func (o *Orchestrator) mergeAndFinalize(ctx context.Context, job *jobs.Job, paths staging.JobPaths) error {
	if err := o.transition(ctx, job, jobs.StatusMerging, "Merging", "concatenating dubbed chunks", pctMerging); err != nil {
		return err
	}

	dubbedPaths := make([]string, 0, len(job.Chunks))
	for _, chunk := range job.Chunks {
		if chunk.Status != jobs.ChunkSucceeded || chunk.DubbedPath == "" {
			return services.Wrap(services.ErrPipelineFatal, string(jobs.StatusMerging), "merge",
				fmt.Sprintf("chunk %d has no dubbed output", chunk.Index), nil)
		}
		dubbedPaths = append(dubbedPaths, chunk.DubbedPath)
	}

	mergeCtx := ctx
	if timeout := o.cfg.Workflow.MergeTimeout; timeout > 0 {
		var cancel context.CancelFunc
		mergeCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	outputPath, err := o.merger.Merge(mergeCtx, dubbedPaths, job.Config, paths.Output)
	if err != nil {
		return services.Wrap(services.ErrPipelineFatal, string(jobs.StatusMerging), "merge", "", err)
	}

	if err := o.transition(ctx, job, jobs.StatusFinalizing, "Finalizing", "cleaning up", pctFinalizing); err != nil {
		return err
	}
	job.OutputFile = outputPath
	if !job.Config.KeepIntermediateFiles {
		o.staging.CleanupIntermediateFiles(paths)
	}

	o.complete(ctx, job, paths)
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, job *jobs.Job, paths staging.JobPaths) {
	job.Status = jobs.StatusCompleted
	job.SetProgress("Completed", "dubbed output ready", pctCompleted)
	if err := o.persist(ctx, job); err != nil {
		logging.WarnWithContext(o.logger, "failed to persist completed job", "persist_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}

	o.publishProgress(job)
	o.bus.Publish(progress.Event{
		JobID: job.ID,
		Kind:  progress.KindComplete,
		Payload: map[string]any{
			"output_file": job.OutputFile,
		},
	})

	timer := o.staging.ScheduleOutputCleanup(paths, o.cfg.OutputRetention())
	o.mu.Lock()
	o.timers[job.ID] = timer
	o.mu.Unlock()

	if o.notifier != nil {
		o.notifier.JobCompleted(context.WithoutCancel(ctx), job)
	}

	o.logger.Info("job completed",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("output_file", job.OutputFile))
}

func (o *Orchestrator) markFailed(job *jobs.Job, err error) {
	job.SetFailed(err.Error())
	ctx := context.Background()
	if persistErr := o.persist(ctx, job); persistErr != nil {
		logging.WarnWithContext(o.logger, "failed to persist failed job", "persist_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(persistErr))
	}

	o.publishProgress(job)
	o.bus.Publish(progress.Event{
		JobID: job.ID,
		Kind:  progress.KindError,
		Payload: map[string]any{
			"error": job.ErrorMessage,
		},
	})

	if o.notifier != nil {
		o.notifier.JobFailed(ctx, job)
	}

	o.logger.Error("job failed",
		logging.String(logging.FieldJobID, job.ID),
		logging.Error(err))
}

func (o *Orchestrator) markCancelled(job *jobs.Job) {
	job.Status = jobs.StatusCancelled
	job.ErrorMessage = jobs.CancelledReason
	job.SetProgress("Cancelled", jobs.CancelledReason, job.ProgressPercent)

	ctx := context.Background()
	if err := o.persist(ctx, job); err != nil {
		logging.WarnWithContext(o.logger, "failed to persist cancelled job", "persist_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}

	o.publishProgress(job)
	o.bus.Publish(progress.Event{
		JobID: job.ID,
		Kind:  progress.KindError,
		Payload: map[string]any{
			"error": jobs.CancelledReason,
		},
	})

	if !job.Config.KeepIntermediateFiles {
		if paths, err := o.staging.PathsFor(job.ID); err == nil {
			o.staging.CleanupIntermediateFiles(paths)
		}
	}

	if o.notifier != nil {
		o.notifier.JobCancelled(ctx, job)
	}

	o.logger.Info("job cancelled", logging.String(logging.FieldJobID, job.ID))
}

// transition advances the job to the next stage, persists the record, and
// fans the new snapshot out to subscribers. A cancelled context stops the
// transition before any state is written.
func (o *Orchestrator) transition(ctx context.Context, job *jobs.Job, status jobs.Status, stage, message string, percent float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	job.Status = status
	job.SetProgress(stage, message, percent)
	if err := o.persist(ctx, job); err != nil {
		return err
	}

	o.publishProgress(job)
	o.bus.Publish(progress.Event{
		JobID: job.ID,
		Kind:  progress.KindLog,
		Payload: map[string]any{
			"message": message,
			"stage":   stage,
		},
	})

	o.logger.Info("stage transition",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldStage, string(status)))
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, job *jobs.Job) error {
	if err := o.store.Update(context.WithoutCancel(ctx), job); err != nil {
		return services.Wrap(services.ErrPipelineFatal, string(job.Status), "persist", "", err)
	}
	return nil
}

func (o *Orchestrator) publishProgress(job *jobs.Job) {
	o.bus.Publish(progress.Event{
		JobID:   job.ID,
		Kind:    progress.KindProgress,
		Payload: job.Progress(),
	})
}
