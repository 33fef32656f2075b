package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"dubber/internal/jobs"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Store selects and configures the job record backend.
type Store struct {
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// Dubbing holds the default per-job pipeline configuration. Individual
// jobs may override any of these at submission time.
type Dubbing struct {
	Defaults jobs.PipelineConfig `toml:"defaults"`
	// EndpointURL is the external chunk dubbing service.
	EndpointURL string `toml:"endpoint_url"`
	APIKey      string `toml:"api_key"`
	// RequestTimeout bounds one chunk dubbing call, in seconds.
	RequestTimeout int `toml:"request_timeout"`
}

// Pricing contains the estimator rates. Costs are USD.
type Pricing struct {
	DubbingPerMinute     float64 `toml:"dubbing_per_minute"`
	TranscriptionPerMin  float64 `toml:"transcription_per_minute"`
	ProcessingPerMinute  float64 `toml:"processing_per_minute"`
	WatermarkFreeFlatFee float64 `toml:"watermark_free_flat_fee"`
}

// Cleanup controls retention of on-disk job artifacts.
type Cleanup struct {
	// OutputRetentionHours bounds how long a completed job's output
	// survives before the deferred cleanup removes it.
	OutputRetentionHours int `toml:"output_retention_hours"`
	// StaleJobMaxAgeHours is the reaper threshold for orphaned job
	// directories.
	StaleJobMaxAgeHours int `toml:"stale_job_max_age_hours"`
}

// Workflow contains pipeline timing knobs.
type Workflow struct {
	// DownloadTimeout bounds the source fetch, in seconds.
	DownloadTimeout int `toml:"download_timeout"`
	// MergeTimeout bounds the merge/finalize stage, in seconds.
	MergeTimeout int `toml:"merge_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for dubber.
//
// Sections by subsystem:
//   - Paths: work and log directories
//   - Store: job record backend (sqlite or redis)
//   - Dubbing: per-job defaults plus the external dubbing endpoint
//   - Pricing: cost estimator rates
//   - Cleanup: artifact retention windows
//   - Workflow: stage timeouts
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Dubbing       Dubbing       `toml:"dubbing"`
	Pricing       Pricing       `toml:"pricing"`
	Cleanup       Cleanup       `toml:"cleanup"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path of the default config location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dubber/config.toml")
}

// Load locates, parses, normalizes, and validates a configuration file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("dubber.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline needs to run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkDir returns the base directory for per-job staging trees.
func (c *Config) WorkDir() string { return c.Paths.WorkDir }

// LogDir returns the directory for logs and the sqlite job database.
func (c *Config) LogDir() string { return c.Paths.LogDir }

// OutputRetention returns the deferred output cleanup window.
func (c *Config) OutputRetention() time.Duration {
	return time.Duration(c.Cleanup.OutputRetentionHours) * time.Hour
}

// StaleJobMaxAge returns the orphaned job directory reaper threshold.
func (c *Config) StaleJobMaxAge() time.Duration {
	return time.Duration(c.Cleanup.StaleJobMaxAgeHours) * time.Hour
}

// FFmpegBinary returns the ffmpeg executable name used for chunking and merging.
func (c *Config) FFmpegBinary() string { return "ffmpeg" }

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string { return "ffprobe" }

// YtdlpBinary returns the yt-dlp executable name used for source fetching.
func (c *Config) YtdlpBinary() string { return "yt-dlp" }

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
