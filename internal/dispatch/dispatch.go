package dispatch

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"dubber/internal/jobs"
	"dubber/internal/logging"
)

// Operation dubs a single chunk and returns the path of the dubbed piece.
type Operation func(ctx context.Context, chunk *jobs.Chunk) (string, error)

// Outcome reports the terminal result of one dispatched chunk.
type Outcome struct {
	Index int
	Err   error
}

// Result summarizes one dispatch round. Skipped chunks were never started
// because the context was cancelled first; they stay pending.
type Result struct {
	Succeeded []int
	Failed    []int
	Skipped   []int
}

// AllSucceeded reports whether every dispatched chunk finished cleanly.
func (r Result) AllSucceeded() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}

// Dispatcher fans chunk work out to a bounded pool of workers. A failed
// chunk never stops its siblings; each chunk reaches its own terminal
// state independently.
type Dispatcher struct {
	logger    *slog.Logger
	onOutcome func(Outcome)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOutcomeFunc registers a callback invoked after each chunk finishes.
// Callbacks run serially, inside the same critical section that applies
// the chunk's terminal state, so a callback always observes a fully
// settled chunk set.
func WithOutcomeFunc(fn func(Outcome)) Option {
	return func(d *Dispatcher) {
		d.onOutcome = fn
	}
}

// NewDispatcher creates a dispatcher that logs per-chunk outcomes.
func NewDispatcher(logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Dispatcher{logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes the given chunks with at most concurrency workers and
// blocks until every started chunk reaches a terminal state. Chunks are
// mutated in place: attempts are incremented when a chunk starts, and
// status, dubbed path and error are set when it finishes.
func (d *Dispatcher) Run(ctx context.Context, chunks []*jobs.Chunk, concurrency int, op Operation) Result {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > jobs.MaxParallelChunks {
		concurrency = jobs.MaxParallelChunks
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		result    Result
		semaphore = make(chan struct{}, concurrency)
	)

	skip := func(index int) {
		mu.Lock()
		result.Skipped = append(result.Skipped, index)
		mu.Unlock()
	}

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			skip(chunk.Index)
			continue
		}
		select {
		case <-ctx.Done():
			skip(chunk.Index)
			continue
		case semaphore <- struct{}{}:
		}
		// The select picks at random when cancellation and a free slot
		// are both ready; re-check so a cancelled context never
		// dispatches.
		if ctx.Err() != nil {
			<-semaphore
			skip(chunk.Index)
			continue
		}

		wg.Add(1)
		go func(chunk *jobs.Chunk) {
			defer wg.Done()
			defer func() { <-semaphore }()

			mu.Lock()
			chunk.Status = jobs.ChunkRunning
			chunk.Attempts++
			chunk.Error = ""
			mu.Unlock()

			dubbedPath, err := op(ctx, chunk)

			// Chunk writes, result bookkeeping, and the outcome callback
			// share one critical section, so anything reading the whole
			// chunk set from a callback never sees a half-applied
			// outcome.
			mu.Lock()
			if err != nil {
				chunk.Status = jobs.ChunkFailed
				chunk.Error = err.Error()
				result.Failed = append(result.Failed, chunk.Index)
			} else {
				chunk.Status = jobs.ChunkSucceeded
				chunk.DubbedPath = dubbedPath
				result.Succeeded = append(result.Succeeded, chunk.Index)
			}
			attempts := chunk.Attempts
			if d.onOutcome != nil {
				d.onOutcome(Outcome{Index: chunk.Index, Err: err})
			}
			mu.Unlock()

			if err != nil {
				d.logger.Warn("chunk failed",
					logging.Int(logging.FieldChunk, chunk.Index),
					logging.Int("attempts", attempts),
					logging.Error(err))
			} else {
				d.logger.Debug("chunk succeeded",
					logging.Int(logging.FieldChunk, chunk.Index),
					logging.Int("attempts", attempts))
			}
		}(chunk)
	}

	wg.Wait()

	sort.Ints(result.Succeeded)
	sort.Ints(result.Failed)
	sort.Ints(result.Skipped)
	return result
}
