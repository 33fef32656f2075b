package pipeline

import (
	"context"

	"dubber/internal/jobs"
)

// FetchResult is the outcome of resolving a source URL to a local file.
type FetchResult struct {
	LocalPath string
	Info      jobs.VideoInfo
}

// MediaFetcher resolves a source URL into a local media file under destDir
// and reports the video's metadata.
type MediaFetcher interface {
	Fetch(ctx context.Context, sourceURL, destDir string) (FetchResult, error)
}

// ChunkSplitter plans the chunk boundaries for a source file and cuts it
// into per-chunk files. Plan honors the configured chunking strategy;
// Split returns one path per span, in span order.
type ChunkSplitter interface {
	Plan(ctx context.Context, sourcePath string, durationSec float64, cfg jobs.PipelineConfig) ([]jobs.Span, error)
	Split(ctx context.Context, sourcePath string, spans []jobs.Span, destDir string) ([]string, error)
}

// ChunkTranslator dubs one chunk file into the target language, writing
// the result under destDir. This is the operation the dispatcher
// schedules; it may fail per call.
type ChunkTranslator interface {
	Translate(ctx context.Context, chunk jobs.Chunk, cfg jobs.PipelineConfig, destDir string) (string, error)
}

// Merger concatenates dubbed chunk files, in order, into the final output
// under outputDir and returns its path.
type Merger interface {
	Merge(ctx context.Context, dubbedPaths []string, cfg jobs.PipelineConfig, outputDir string) (string, error)
}

// Notifier receives job lifecycle events. Implementations must not block
// the pipeline; failures are theirs to swallow.
type Notifier interface {
	JobStarted(ctx context.Context, job *jobs.Job)
	JobCompleted(ctx context.Context, job *jobs.Job)
	JobFailed(ctx context.Context, job *jobs.Job)
	JobCancelled(ctx context.Context, job *jobs.Job)
}
