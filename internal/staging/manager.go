package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dubber/internal/logging"
)

// MetadataDirName is the reserved subdirectory under the work dir that the
// stale-job reaper must never touch.
const MetadataDirName = ".dubber"

// JobPaths is the derived per-job directory tree. Never persisted;
// recomputed deterministically from the job id.
type JobPaths struct {
	Root   string
	Source string
	Chunks string
	Dubbed string
	Output string
}

// Manager owns the per-job staging trees under a single base directory.
// Every path it hands out is confined under that base.
type Manager struct {
	base   string
	logger *slog.Logger
}

// NewManager constructs a staging manager rooted at base.
func NewManager(base string, logger *slog.Logger) (*Manager, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, fmt.Errorf("staging base directory must not be empty")
	}
	absolute, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return nil, fmt.Errorf("resolve staging base: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		base:   absolute,
		logger: logging.NewComponentLogger(logger, "staging"),
	}, nil
}

// Base returns the configured base directory.
func (m *Manager) Base() string { return m.base }

// PathsFor computes the job's directory tree without creating anything.
// Rejects job ids that would escape the base directory.
func (m *Manager) PathsFor(jobID string) (JobPaths, error) {
	segment := sanitizeSegment(jobID)
	if segment == "" {
		return JobPaths{}, fmt.Errorf("job id %q yields no usable directory name", jobID)
	}
	root := filepath.Join(m.base, segment)
	rel, err := filepath.Rel(m.base, root)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return JobPaths{}, fmt.Errorf("job id %q escapes staging base", jobID)
	}
	return JobPaths{
		Root:   root,
		Source: filepath.Join(root, "source"),
		Chunks: filepath.Join(root, "chunks"),
		Dubbed: filepath.Join(root, "dubbed"),
		Output: filepath.Join(root, "output"),
	}, nil
}

// CreateJobDirectories builds the full tree for a job. Creation is
// idempotent so a resumed job can call it again safely.
func (m *Manager) CreateJobDirectories(jobID string) (JobPaths, error) {
	paths, err := m.PathsFor(jobID)
	if err != nil {
		return JobPaths{}, err
	}
	for _, dir := range []string{paths.Source, paths.Chunks, paths.Dubbed, paths.Output} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return JobPaths{}, fmt.Errorf("create job directory %q: %w", dir, err)
		}
	}
	return paths, nil
}

// CleanupIntermediateFiles removes source, chunks, and dubbed trees on a
// best-effort basis. The job root and output always survive, and failures
// are logged rather than returned so cleanup can never fail the pipeline.
func (m *Manager) CleanupIntermediateFiles(paths JobPaths) {
	for _, dir := range []string{paths.Source, paths.Chunks, paths.Dubbed} {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logging.WarnWithContext(m.logger, "failed to remove intermediate directory", "staging_cleanup_failed",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check work_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
	}
}

// CleanupJobFiles removes the job's entire directory tree. A directory that
// is already gone is not an error.
func (m *Manager) CleanupJobFiles(jobID string) error {
	paths, err := m.PathsFor(jobID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(paths.Root); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove job directory %q: %w", paths.Root, err)
	}
	return nil
}

// ScheduleOutputCleanup arranges deferred removal of the job's output
// directory after the retention window, bounding disk usage of completed
// jobs whose output is never collected. Fire and forget; the returned
// timer lets callers stop the cleanup (e.g. on delivery or deletion).
func (m *Manager) ScheduleOutputCleanup(paths JobPaths, delay time.Duration) *time.Timer {
	if delay <= 0 {
		delay = 24 * time.Hour
	}
	output := paths.Output
	return time.AfterFunc(delay, func() {
		if err := os.RemoveAll(output); err != nil {
			logging.WarnWithContext(m.logger, "deferred output cleanup failed", "staging_cleanup_failed",
				logging.String("path", output),
				logging.Error(err),
			)
			return
		}
		m.logger.Info("removed expired job output",
			logging.String("path", output),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	})
}

// JobDiskUsage returns the recursive size of one job's tree in bytes.
func (m *Manager) JobDiskUsage(jobID string) (int64, error) {
	paths, err := m.PathsFor(jobID)
	if err != nil {
		return 0, err
	}
	return dirSize(paths.Root)
}

// TotalDiskUsage returns the recursive size of the whole base directory.
func (m *Manager) TotalDiskUsage() (int64, error) {
	return dirSize(m.base)
}

func sanitizeSegment(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "-_")
	return out
}

// dirSize calculates the total size of a directory recursively.
// Missing directories count as zero.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Best effort.
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
