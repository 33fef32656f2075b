package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"dubber/internal/config"
	"dubber/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS dub_jobs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    source_url TEXT,
    video_info_json TEXT,
    config_json TEXT NOT NULL,
    chunks_json TEXT,
    progress_stage TEXT,
    progress_percent REAL NOT NULL DEFAULT 0,
    progress_message TEXT,
    output_file TEXT,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dub_jobs_status ON dub_jobs(status);
CREATE INDEX IF NOT EXISTS idx_dub_jobs_created_at ON dub_jobs(created_at);
`

// SQLiteStore manages job persistence backed by SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database under the log directory.
func Open(cfg *config.Config) (*SQLiteStore, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	// Pragmas ride the DSN so every pooled connection gets them; an Exec
	// reaches only the single connection it happens to grab.
	dbPath := filepath.Join(cfg.LogDir(), "jobs.db")
	dsn := "file:" + dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Path returns the sqlite database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create persists a new job record.
func (s *SQLiteStore) Create(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.ID == "" {
		return errors.New("job id must be set")
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	videoInfo, configJSON, chunksJSON, err := encodeJobBlobs(job)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO dub_jobs (
            id, status, source_url, video_info_json, config_json, chunks_json,
            progress_stage, progress_percent, progress_message,
            output_file, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Status,
		nullableString(job.SourceURL),
		nullableString(videoInfo),
		configJSON,
		nullableString(chunksJSON),
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.OutputFile),
		nullableString(job.ErrorMessage),
		job.CreatedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM dub_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *SQLiteStore) Update(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()

	videoInfo, configJSON, chunksJSON, err := encodeJobBlobs(job)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE dub_jobs
         SET status = ?, source_url = ?, video_info_json = ?, config_json = ?,
             chunks_json = ?, progress_stage = ?, progress_percent = ?,
             progress_message = ?, output_file = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		job.Status,
		nullableString(job.SourceURL),
		nullableString(videoInfo),
		configJSON,
		nullableString(chunksJSON),
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.OutputFile),
		nullableString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s not found for update", job.ID)
	}
	return nil
}

// Remove deletes a job by identifier.
func (s *SQLiteStore) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dub_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns one page of jobs ordered by creation time, newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	total, err := s.Count(ctx, statusFilter(opts.Status)...)
	if err != nil {
		return ListResult{}, err
	}
	limit, offset := clampPage(opts.Limit, opts.Offset, total)

	var rows *sql.Rows
	if opts.Status != "" {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+jobColumns+` FROM dub_jobs WHERE status = ?
             ORDER BY created_at DESC LIMIT ? OFFSET ?`,
			opts.Status, limit, offset,
		)
	} else {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+jobColumns+` FROM dub_jobs ORDER BY created_at DESC LIMIT ? OFFSET ?`,
			limit, offset,
		)
	}
	if err != nil {
		return ListResult{}, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var page []*jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return ListResult{}, err
		}
		page = append(page, job)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}

	return ListResult{
		Jobs:    page,
		Total:   total,
		HasMore: hasMore(offset, len(page), total),
	}, nil
}

// Count returns the number of jobs, optionally restricted to statuses.
func (s *SQLiteStore) Count(ctx context.Context, statuses ...jobs.Status) (int, error) {
	var (
		row *sql.Row
	)
	switch len(statuses) {
	case 0:
		row = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM dub_jobs`)
	case 1:
		row = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM dub_jobs WHERE status = ?`, statuses[0])
	default:
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		row = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM dub_jobs WHERE status IN (`+placeholders+`)`, args...)
	}

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

// Stats returns a count of jobs grouped by status.
func (s *SQLiteStore) Stats(ctx context.Context) (map[jobs.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM dub_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[jobs.Status]int)
	for rows.Next() {
		var status jobs.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const jobColumns = "id, status, source_url, video_info_json, config_json, chunks_json, progress_stage, progress_percent, progress_message, output_file, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*jobs.Job, error) {
	var (
		id              string
		statusStr       string
		sourceURL       sql.NullString
		videoInfo       sql.NullString
		configJSON      string
		chunksJSON      sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		outputFile      sql.NullString
		errorMessage    sql.NullString
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&sourceURL,
		&videoInfo,
		&configJSON,
		&chunksJSON,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&outputFile,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &jobs.Job{
		ID:              id,
		Status:          jobs.Status(statusStr),
		SourceURL:       sourceURL.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		OutputFile:      outputFile.String,
		ErrorMessage:    errorMessage.String,
	}

	if videoInfo.Valid && videoInfo.String != "" {
		if err := json.Unmarshal([]byte(videoInfo.String), &job.VideoInfo); err != nil {
			return nil, fmt.Errorf("decode video info: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(configJSON), &job.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if chunksJSON.Valid && chunksJSON.String != "" {
		if err := json.Unmarshal([]byte(chunksJSON.String), &job.Chunks); err != nil {
			return nil, fmt.Errorf("decode chunks: %w", err)
		}
	}

	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func encodeJobBlobs(job *jobs.Job) (videoInfo, configJSON, chunksJSON string, err error) {
	info, err := json.Marshal(job.VideoInfo)
	if err != nil {
		return "", "", "", fmt.Errorf("encode video info: %w", err)
	}
	cfg, err := json.Marshal(job.Config)
	if err != nil {
		return "", "", "", fmt.Errorf("encode config: %w", err)
	}
	var chunks []byte
	if len(job.Chunks) > 0 {
		chunks, err = json.Marshal(job.Chunks)
		if err != nil {
			return "", "", "", fmt.Errorf("encode chunks: %w", err)
		}
	}
	return string(info), string(cfg), string(chunks), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusFilter(status jobs.Status) []jobs.Status {
	if status == "" {
		return nil
	}
	return []jobs.Status{status}
}
