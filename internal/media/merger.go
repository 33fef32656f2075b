package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dubber/internal/config"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/services"
)

// Merger concatenates dubbed chunk files into the final output with the
// ffmpeg concat demuxer.
type Merger struct {
	ffmpeg string
	logger *slog.Logger
}

// NewMerger builds a merger using the configured ffmpeg binary.
func NewMerger(cfg *config.Config, logger *slog.Logger) *Merger {
	return &Merger{
		ffmpeg: cfg.FFmpegBinary(),
		logger: logging.NewComponentLogger(logger, "media"),
	}
}

// Merge writes the concat list next to the output, stream-copies the
// chunks into one file, and returns its path. dubbedPaths must be in
// chunk order; the demuxer concatenates them as listed.
func (m *Merger) Merge(ctx context.Context, dubbedPaths []string, cfg jobs.PipelineConfig, outputDir string) (string, error) {
	if len(dubbedPaths) == 0 {
		return "", services.Wrap(services.ErrPipelineFatal, "", "merge", "no chunks to merge", nil)
	}

	listPath := filepath.Join(outputDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(ConcatList(dubbedPaths)), 0o644); err != nil {
		return "", services.Wrap(services.ErrPipelineFatal, "", "merge", "write concat list", err)
	}
	defer os.Remove(listPath)

	outputPath := filepath.Join(outputDir, "dubbed."+cfg.OutputFormat)
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
	cmd := exec.CommandContext(ctx, m.ffmpeg, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "", "merge",
			strings.TrimSpace(string(output)), err)
	}

	m.logger.Info("merged dubbed chunks",
		logging.Int("chunks", len(dubbedPaths)),
		logging.String("output", outputPath))
	return outputPath, nil
}

// ConcatList renders the concat demuxer input. Single quotes in paths are
// escaped the way the demuxer expects: close, escaped quote, reopen.
func ConcatList(paths []string) string {
	var b strings.Builder
	for _, path := range paths {
		escaped := strings.ReplaceAll(path, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return b.String()
}
