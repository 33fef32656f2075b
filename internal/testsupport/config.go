package testsupport

import (
	"path/filepath"
	"testing"

	"dubber/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Logging.Format = "json"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithDefaults overrides the per-job pipeline defaults on the test config.
func WithDefaults(chunkDuration, maxParallel int, targetLanguage string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Dubbing.Defaults.ChunkDuration = chunkDuration
		cfg.Dubbing.Defaults.MaxParallelJobs = maxParallel
		cfg.Dubbing.Defaults.TargetLanguage = targetLanguage
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.WorkDir())
}
