package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a dubbing job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusChunking    Status = "chunking"
	StatusDubbing     Status = "dubbing"
	StatusMerging     Status = "merging"
	StatusFinalizing  Status = "finalizing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// CancelledReason is the error message recorded when a user stops a job.
const CancelledReason = "Cancelled by user"

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusChunking,
	StatusDubbing,
	StatusMerging,
	StatusFinalizing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusDownloading: {},
	StatusChunking:    {},
	StatusDubbing:     {},
	StatusMerging:     {},
	StatusFinalizing:  {},
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminalStatus reports whether a status ends the job lifecycle.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// VideoInfo holds descriptive metadata fetched once while downloading.
// Immutable after the downloading stage.
type VideoInfo struct {
	Title       string  `json:"title"`
	DurationSec float64 `json:"duration_sec"`
	Uploader    string  `json:"uploader,omitempty"`
	Ext         string  `json:"ext,omitempty"`
}

// Job is one end-to-end run from source URL to dubbed output.
type Job struct {
	ID              string
	Status          Status
	SourceURL       string
	VideoInfo       VideoInfo
	Config          PipelineConfig
	Chunks          []Chunk
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	OutputFile      string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsProcessing returns true when the job is inside a pipeline stage.
func (j Job) IsProcessing() bool {
	return IsProcessingStatus(j.Status)
}

// IsTerminal returns true once the job can no longer advance.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsCancellable reports whether Cancel is legal for the current status.
// Pending jobs count: their run has not entered a stage yet, but it must
// still be stoppable. Terminal jobs are done.
func (j Job) IsCancellable() bool {
	return j.Status == StatusPending || j.IsProcessing()
}

// SetProgress updates the three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressMessage = message
	j.ProgressStage = "Failed"
}

// FailedChunkIndexes returns the indices of chunks currently failed, in order.
func (j Job) FailedChunkIndexes() []int {
	var indexes []int
	for _, chunk := range j.Chunks {
		if chunk.Status == ChunkFailed {
			indexes = append(indexes, chunk.Index)
		}
	}
	return indexes
}

// ChunkByIndex returns a pointer into the job's chunk slice, or nil.
func (j *Job) ChunkByIndex(index int) *Chunk {
	for i := range j.Chunks {
		if j.Chunks[i].Index == index {
			return &j.Chunks[i]
		}
	}
	return nil
}

// Progress builds the snapshot exposed to status polling and the progress bus.
func (j Job) Progress() Snapshot {
	snap := Snapshot{
		Stage:   j.ProgressStage,
		Percent: j.ProgressPercent,
		Message: j.ProgressMessage,
		Status:  j.Status,
	}
	if len(j.Chunks) > 0 {
		snap.Chunks = make([]ChunkProgress, 0, len(j.Chunks))
		for _, chunk := range j.Chunks {
			snap.Chunks = append(snap.Chunks, ChunkProgress{
				Index:    chunk.Index,
				Status:   chunk.Status,
				Attempts: chunk.Attempts,
				Error:    chunk.Error,
			})
		}
	}
	return snap
}

// Snapshot is the structured progress view of one job.
type Snapshot struct {
	Status  Status          `json:"status"`
	Stage   string          `json:"stage"`
	Percent float64         `json:"percent"`
	Message string          `json:"message,omitempty"`
	Chunks  []ChunkProgress `json:"chunks,omitempty"`
}

// ChunkProgress is the per-chunk slice of a progress snapshot.
type ChunkProgress struct {
	Index    int         `json:"index"`
	Status   ChunkStatus `json:"status"`
	Attempts int         `json:"attempts"`
	Error    string      `json:"error,omitempty"`
}
