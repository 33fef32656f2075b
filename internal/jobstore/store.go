package jobstore

import (
	"context"

	"dubber/internal/jobs"
)

// ListOptions selects a page of jobs, optionally filtered by status.
type ListOptions struct {
	Limit  int
	Offset int
	Status jobs.Status
}

// ListResult is one page of jobs plus pagination metadata.
type ListResult struct {
	Jobs    []*jobs.Job
	Total   int
	HasMore bool
}

// Store is the durable record of every job. The orchestrator is the single
// writer of a given job; writes must be visible to subsequent reads from
// the same process.
type Store interface {
	// Create persists a new job record. The job's ID must be set.
	Create(ctx context.Context, job *jobs.Job) error
	// GetByID fetches a job, returning (nil, nil) when it does not exist.
	GetByID(ctx context.Context, id string) (*jobs.Job, error)
	// Update persists changes to an existing job and bumps UpdatedAt.
	Update(ctx context.Context, job *jobs.Job) error
	// Remove deletes a job record, reporting whether it existed.
	Remove(ctx context.Context, id string) (bool, error)
	// List returns a page of jobs ordered by creation time, newest first.
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	// Count returns the number of jobs, optionally restricted to a status.
	Count(ctx context.Context, statuses ...jobs.Status) (int, error)
	// Stats returns a count of jobs grouped by status.
	Stats(ctx context.Context) (map[jobs.Status]int, error)
	// Close releases the underlying backend connection.
	Close() error
}

func clampPage(limit, offset, total int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	return limit, offset
}

func hasMore(offset, returned, total int) bool {
	return offset+returned < total
}
