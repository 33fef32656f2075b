package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"dubber/internal/config"
	"dubber/internal/fileutil"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/media"
	"dubber/internal/pipeline"
	"dubber/internal/services"
)

// Fetcher resolves source URLs to local files with yt-dlp. Plain local
// paths bypass yt-dlp and are copied into the staging tree instead.
type Fetcher struct {
	binary  string
	ffprobe string
	logger  *slog.Logger
	probe   func(ctx context.Context, ffprobeBinary, path string) (float64, error)
}

// Option customizes the fetcher.
type Option func(*Fetcher)

// WithProber overrides duration probing (used in tests).
func WithProber(probe func(ctx context.Context, ffprobeBinary, path string) (float64, error)) Option {
	return func(f *Fetcher) {
		if probe != nil {
			f.probe = probe
		}
	}
}

// NewFetcher builds a fetcher over the configured binaries.
func NewFetcher(cfg *config.Config, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		binary:  cfg.YtdlpBinary(),
		ffprobe: cfg.FFprobeBinary(),
		logger:  logging.NewComponentLogger(logger, "ytdlp"),
		probe:   media.ProbeDuration,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads or copies the source into destDir and reports the
// video's metadata.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL, destDir string) (pipeline.FetchResult, error) {
	if isLocalSource(sourceURL) {
		return f.fetchLocal(ctx, sourceURL, destDir)
	}
	return f.fetchRemote(ctx, sourceURL, destDir)
}

// metadata mirrors the subset of yt-dlp's --print-json output we keep.
type metadata struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader"`
	Ext      string  `json:"ext"`
}

func (f *Fetcher) fetchRemote(ctx context.Context, sourceURL, destDir string) (pipeline.FetchResult, error) {
	template := filepath.Join(destDir, "source.%(ext)s")
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--print-json",
		"-f", "bv*+ba/b",
		"--merge-output-format", "mp4",
		"-o", template,
		sourceURL,
	}
	cmd := exec.CommandContext(ctx, f.binary, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		detail := commandFailure(err)
		return pipeline.FetchResult{}, services.Wrap(services.ErrExternalTool, "", "yt-dlp", detail, err)
	}

	info, err := parseMetadata(output)
	if err != nil {
		return pipeline.FetchResult{}, err
	}

	ext := info.Ext
	if ext == "" {
		ext = "mp4"
	}
	localPath := filepath.Join(destDir, "source."+ext)

	f.logger.Info("source downloaded",
		logging.String("title", info.Title),
		logging.Float64("duration_sec", info.DurationSec))
	return pipeline.FetchResult{LocalPath: localPath, Info: info}, nil
}

func (f *Fetcher) fetchLocal(ctx context.Context, sourcePath, destDir string) (pipeline.FetchResult, error) {
	sourcePath = strings.TrimPrefix(sourcePath, "file://")
	expanded, err := config.ExpandPath(sourcePath)
	if err != nil {
		return pipeline.FetchResult{}, services.Wrap(services.ErrValidation, "", "fetch", sourcePath, err)
	}

	ext := strings.TrimPrefix(filepath.Ext(expanded), ".")
	if ext == "" {
		ext = "mp4"
	}
	localPath := filepath.Join(destDir, "source."+ext)
	if err := fileutil.CopyFileVerified(expanded, localPath); err != nil {
		return pipeline.FetchResult{}, services.Wrap(services.ErrPipelineFatal, "", "fetch", "copy local source", err)
	}

	duration, err := f.probe(ctx, f.ffprobe, localPath)
	if err != nil {
		return pipeline.FetchResult{}, err
	}

	title := strings.TrimSuffix(filepath.Base(expanded), filepath.Ext(expanded))
	return pipeline.FetchResult{
		LocalPath: localPath,
		Info: jobs.VideoInfo{
			Title:       title,
			DurationSec: duration,
			Ext:         ext,
		},
	}, nil
}

// parseMetadata decodes the last JSON object yt-dlp prints. Playlists are
// disabled, so exactly one entry is expected.
func parseMetadata(output []byte) (jobs.VideoInfo, error) {
	var meta metadata
	decoder := json.NewDecoder(strings.NewReader(string(output)))
	decoded := false
	for decoder.More() {
		if err := decoder.Decode(&meta); err != nil {
			break
		}
		decoded = true
	}
	if !decoded {
		return jobs.VideoInfo{}, services.Wrap(services.ErrExternalTool, "", "yt-dlp", "no metadata in output", nil)
	}
	return jobs.VideoInfo{
		Title:       meta.Title,
		DurationSec: meta.Duration,
		Uploader:    meta.Uploader,
		Ext:         meta.Ext,
	}, nil
}

func isLocalSource(source string) bool {
	if strings.HasPrefix(source, "file://") {
		return true
	}
	return !strings.Contains(source, "://")
}

func commandFailure(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return err.Error()
}
