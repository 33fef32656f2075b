package estimate

import (
	"math"
	"time"

	"dubber/internal/config"
	"dubber/internal/jobs"
)

// Per-chunk wall-clock assumptions for the time estimate. The dubbing
// service dominates; splitting and merging are local ffmpeg passes.
const (
	downloadSecPerMinute = 3.0
	splitSecPerChunk     = 2.0
	dubbingSecPerChunk   = 45.0
	mergeSecPerChunk     = 3.0
	finalizeFlatSec      = 10.0
)

// CostBreakdown itemizes the estimated cost of one job, USD.
type CostBreakdown struct {
	Dubbing       float64 `json:"dubbing"`
	Transcription float64 `json:"transcription"`
	Processing    float64 `json:"processing"`
	WatermarkFree float64 `json:"watermark_free"`
}

// CostEstimate is the total plus its breakdown.
type CostEstimate struct {
	TotalCost float64       `json:"total_cost"`
	Breakdown CostBreakdown `json:"breakdown"`
}

// TimeBreakdown itemizes the estimated wall-clock time per stage.
type TimeBreakdown struct {
	Download time.Duration `json:"download"`
	Chunking time.Duration `json:"chunking"`
	Dubbing  time.Duration `json:"dubbing"`
	Merging  time.Duration `json:"merging"`
	Finalize time.Duration `json:"finalize"`
}

// TimeEstimate is the total plus its breakdown.
type TimeEstimate struct {
	TotalTime time.Duration `json:"total_time"`
	Breakdown TimeBreakdown `json:"breakdown"`
}

// Estimator computes cost and time estimates from configured rates.
// All methods are pure; identical inputs produce identical outputs.
type Estimator struct {
	pricing config.Pricing
}

// New builds an estimator over the given pricing table.
func New(pricing config.Pricing) *Estimator {
	return &Estimator{pricing: pricing}
}

// CalculateCost estimates the monetary cost of dubbing the given video.
// Rates are per minute of source media; skipping the watermark adds a
// flat fee.
func (e *Estimator) CalculateCost(info jobs.VideoInfo, cfg jobs.PipelineConfig) CostEstimate {
	minutes := info.DurationSec / 60

	breakdown := CostBreakdown{
		Dubbing:       round2(minutes * e.pricing.DubbingPerMinute),
		Transcription: round2(minutes * e.pricing.TranscriptionPerMin),
		Processing:    round2(minutes * e.pricing.ProcessingPerMinute),
	}
	if !cfg.UseWatermark {
		breakdown.WatermarkFree = round2(e.pricing.WatermarkFreeFlatFee)
	}

	total := breakdown.Dubbing + breakdown.Transcription + breakdown.Processing + breakdown.WatermarkFree
	return CostEstimate{
		TotalCost: round2(total),
		Breakdown: breakdown,
	}
}

// CalculateTime estimates wall-clock processing time. Chunk dubbing is
// the dominant term and shrinks with the configured parallelism.
func (e *Estimator) CalculateTime(info jobs.VideoInfo, cfg jobs.PipelineConfig) TimeEstimate {
	normalized := cfg.Normalized()
	minutes := info.DurationSec / 60
	chunkCount := len(jobs.PlanChunks(info.DurationSec, normalized.ChunkDuration))

	parallel := normalized.MaxParallelJobs
	if parallel < 1 {
		parallel = 1
	}
	// Chunks run in waves of at most `parallel` concurrent calls.
	waves := math.Ceil(float64(chunkCount) / float64(parallel))

	breakdown := TimeBreakdown{
		Download: secDuration(minutes * downloadSecPerMinute),
		Chunking: secDuration(float64(chunkCount) * splitSecPerChunk),
		Dubbing:  secDuration(waves * dubbingSecPerChunk),
		Merging:  secDuration(float64(chunkCount) * mergeSecPerChunk),
		Finalize: secDuration(finalizeFlatSec),
	}

	total := breakdown.Download + breakdown.Chunking + breakdown.Dubbing + breakdown.Merging + breakdown.Finalize
	return TimeEstimate{
		TotalTime: total,
		Breakdown: breakdown,
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func secDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second)).Round(time.Second)
}
