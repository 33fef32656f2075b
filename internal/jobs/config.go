package jobs

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"dubber/internal/services"
)

// Chunking strategies supported by the pipeline.
const (
	ChunkingFixed   = "fixed"
	ChunkingSilence = "silence"
)

// AllowedChunkDurations lists the chunk sizes (seconds) a job may request.
var AllowedChunkDurations = []int{30, 60, 120, 300}

// MaxParallelChunks caps per-job chunk concurrency. This is admission
// control for the external dubbing service, not CPU parallelism.
const MaxParallelChunks = 5

// PipelineConfig is the immutable per-job configuration.
type PipelineConfig struct {
	ChunkDuration         int    `json:"chunk_duration" toml:"chunk_duration" validate:"required"`
	TargetLanguage        string `json:"target_language" toml:"target_language" validate:"required"`
	SourceLanguage        string `json:"source_language,omitempty" toml:"source_language"`
	MaxParallelJobs       int    `json:"max_parallel_jobs" toml:"max_parallel_jobs" validate:"min=1,max=5"`
	VideoQuality          string `json:"video_quality,omitempty" toml:"video_quality"`
	OutputFormat          string `json:"output_format,omitempty" toml:"output_format" validate:"omitempty,oneof=mp4 mkv webm"`
	UseWatermark          bool   `json:"use_watermark" toml:"use_watermark"`
	KeepIntermediateFiles bool   `json:"keep_intermediate_files" toml:"keep_intermediate_files"`
	ChunkingStrategy      string `json:"chunking_strategy,omitempty" toml:"chunking_strategy" validate:"omitempty,oneof=fixed silence"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Normalized returns a copy with defaults applied for optional fields.
func (c PipelineConfig) Normalized() PipelineConfig {
	out := c
	out.TargetLanguage = strings.TrimSpace(out.TargetLanguage)
	out.SourceLanguage = strings.TrimSpace(out.SourceLanguage)
	if out.OutputFormat == "" {
		out.OutputFormat = "mp4"
	}
	if out.VideoQuality == "" {
		out.VideoQuality = "1080p"
	}
	if out.ChunkingStrategy == "" {
		out.ChunkingStrategy = ChunkingFixed
	}
	return out
}

// Validate rejects configurations before any job state is created.
// Every failure is tagged with services.ErrValidation.
func (c PipelineConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, verr := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", verr.Field(), verr.Tag()))
			}
		}
		detail := strings.Join(fields, ", ")
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrValidation, "", "config", detail, nil)
	}

	if !isAllowedChunkDuration(c.ChunkDuration) {
		return services.Wrap(services.ErrValidation, "", "config",
			fmt.Sprintf("chunk_duration %d not in %v", c.ChunkDuration, AllowedChunkDurations), nil)
	}

	if _, err := language.Parse(c.TargetLanguage); err != nil {
		return services.Wrap(services.ErrValidation, "", "config",
			fmt.Sprintf("target_language %q is not a valid language tag", c.TargetLanguage), err)
	}
	if c.SourceLanguage != "" {
		if _, err := language.Parse(c.SourceLanguage); err != nil {
			return services.Wrap(services.ErrValidation, "", "config",
				fmt.Sprintf("source_language %q is not a valid language tag", c.SourceLanguage), err)
		}
	}
	return nil
}

func isAllowedChunkDuration(value int) bool {
	for _, allowed := range AllowedChunkDurations {
		if value == allowed {
			return true
		}
	}
	return false
}
