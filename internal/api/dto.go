package api

import (
	"time"

	"dubber/internal/jobs"
)

// StartRequest submits a new dubbing job.
type StartRequest struct {
	SourceURL string              `json:"source_url"`
	Config    jobs.PipelineConfig `json:"config"`
}

// StartResponse acknowledges an accepted job.
type StartResponse struct {
	JobID string `json:"job_id"`
}

// JobView is the externally visible shape of one job.
type JobView struct {
	ID        string         `json:"id"`
	Status    jobs.Status    `json:"status"`
	SourceURL string         `json:"source_url"`
	Video     jobs.VideoInfo `json:"video"`
	Progress  jobs.Snapshot  `json:"progress"`
	Output    string         `json:"output_file,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ListRequest selects a page of jobs.
type ListRequest struct {
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Status string `json:"status,omitempty"`
}

// ListResponse is one page of jobs plus pagination metadata.
type ListResponse struct {
	Jobs    []JobView `json:"jobs"`
	Total   int       `json:"total"`
	HasMore bool      `json:"has_more"`
}

// RetryResponse reports which chunk indices were scheduled for retry.
type RetryResponse struct {
	JobID   string `json:"job_id"`
	Retried []int  `json:"retried"`
}

func viewOf(job *jobs.Job) JobView {
	return JobView{
		ID:        job.ID,
		Status:    job.Status,
		SourceURL: job.SourceURL,
		Video:     job.VideoInfo,
		Progress:  job.Progress(),
		Output:    job.OutputFile,
		Error:     job.ErrorMessage,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}
