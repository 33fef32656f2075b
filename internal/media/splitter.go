package media

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"dubber/internal/config"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/services"
)

// Splitter cuts a source file into per-chunk files with ffmpeg.
type Splitter struct {
	ffmpeg string
	logger *slog.Logger
}

// NewSplitter builds a splitter using the configured ffmpeg binary.
func NewSplitter(cfg *config.Config, logger *slog.Logger) *Splitter {
	return &Splitter{
		ffmpeg: cfg.FFmpegBinary(),
		logger: logging.NewComponentLogger(logger, "media"),
	}
}

// Plan computes chunk boundaries for the source. The fixed strategy cuts
// on exact multiples of the chunk duration; the silence strategy snaps
// those cuts to nearby silences so speech is not split mid-sentence.
func (s *Splitter) Plan(ctx context.Context, sourcePath string, durationSec float64, cfg jobs.PipelineConfig) ([]jobs.Span, error) {
	if cfg.ChunkingStrategy != jobs.ChunkingSilence {
		return jobs.PlanChunks(durationSec, cfg.ChunkDuration), nil
	}

	silences, err := s.detectSilence(ctx, sourcePath)
	if err != nil {
		// Silence detection is an optimization. Fall back to fixed cuts
		// rather than failing the job.
		logging.WarnWithContext(s.logger, "silence detection failed", "silencedetect_failed",
			logging.String("source", sourcePath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "chunk boundaries fall on fixed intervals"))
		return jobs.PlanChunks(durationSec, cfg.ChunkDuration), nil
	}
	return PlanSilenceAware(durationSec, cfg.ChunkDuration, silences), nil
}

// Split cuts one file per span under destDir, stream-copied so no
// re-encode happens. Returned paths are in span order.
func (s *Splitter) Split(ctx context.Context, sourcePath string, spans []jobs.Span, destDir string) ([]string, error) {
	ext := filepath.Ext(sourcePath)
	if ext == "" {
		ext = ".mp4"
	}

	paths := make([]string, 0, len(spans))
	for _, span := range spans {
		dest := filepath.Join(destDir, fmt.Sprintf("chunk_%03d%s", span.Index, ext))
		args := []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-ss", formatSeconds(span.StartSec),
			"-t", formatSeconds(span.EndSec - span.StartSec),
			"-i", sourcePath,
			"-c", "copy",
			"-avoid_negative_ts", "make_zero",
			dest,
		}
		cmd := exec.CommandContext(ctx, s.ffmpeg, args...) //nolint:gosec
		if output, err := cmd.CombinedOutput(); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "", "split",
				fmt.Sprintf("chunk %d: %s", span.Index, strings.TrimSpace(string(output))), err)
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

func formatSeconds(value float64) string {
	return fmt.Sprintf("%.3f", value)
}
