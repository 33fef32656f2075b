package jobs

import "math"

// ChunkStatus represents the lifecycle of a single chunk.
type ChunkStatus string

const (
	ChunkPending   ChunkStatus = "pending"
	ChunkRunning   ChunkStatus = "running"
	ChunkSucceeded ChunkStatus = "succeeded"
	ChunkFailed    ChunkStatus = "failed"
)

// Chunk is one fixed slice of the source video, the unit of dubbing work.
type Chunk struct {
	Index      int         `json:"index"`
	StartSec   float64     `json:"start_sec"`
	EndSec     float64     `json:"end_sec"`
	SourcePath string      `json:"source_path,omitempty"`
	Status     ChunkStatus `json:"status"`
	Attempts   int         `json:"attempts"`
	DubbedPath string      `json:"dubbed_path,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// DurationSec returns the chunk's length in seconds.
func (c Chunk) DurationSec() float64 {
	return c.EndSec - c.StartSec
}

// IsTerminal reports whether the chunk has reached a final per-chunk state.
func (c Chunk) IsTerminal() bool {
	return c.Status == ChunkSucceeded || c.Status == ChunkFailed
}

// Span describes one planned slice of the source timeline.
type Span struct {
	Index    int
	StartSec float64
	EndSec   float64
}

// PlanChunks partitions a video of durationSec into fixed chunkDuration
// slices. Indices are contiguous from zero, the end of slice i equals the
// start of slice i+1, and only the final slice may be shorter.
func PlanChunks(durationSec float64, chunkDuration int) []Span {
	if durationSec <= 0 || chunkDuration <= 0 {
		return nil
	}
	size := float64(chunkDuration)
	count := int(math.Ceil(durationSec / size))
	spans := make([]Span, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * size
		end := start + size
		if end > durationSec {
			end = durationSec
		}
		spans = append(spans, Span{Index: i, StartSec: start, EndSec: end})
	}
	return spans
}

// NewChunks materializes pending chunks from planned spans.
func NewChunks(spans []Span) []Chunk {
	chunks := make([]Chunk, 0, len(spans))
	for _, span := range spans {
		chunks = append(chunks, Chunk{
			Index:    span.Index,
			StartSec: span.StartSec,
			EndSec:   span.EndSec,
			Status:   ChunkPending,
		})
	}
	return chunks
}
