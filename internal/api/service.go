package api

import (
	"context"
	"fmt"

	"dubber/internal/estimate"
	"dubber/internal/jobs"
	"dubber/internal/jobstore"
	"dubber/internal/pipeline"
	"dubber/internal/progress"
	"dubber/internal/services"
)

// Service is the façade a transport (CLI, HTTP handler) talks to. It
// translates between DTOs and the orchestrator's domain types.
type Service struct {
	orch      *pipeline.Orchestrator
	estimator *estimate.Estimator
	bus       *progress.Bus
}

// NewService wires the façade.
func NewService(orch *pipeline.Orchestrator, estimator *estimate.Estimator, bus *progress.Bus) *Service {
	return &Service{orch: orch, estimator: estimator, bus: bus}
}

// StartPipeline validates and launches a new dubbing job.
func (s *Service) StartPipeline(ctx context.Context, req StartRequest) (StartResponse, error) {
	jobID, err := s.orch.Start(ctx, req.SourceURL, req.Config)
	if err != nil {
		return StartResponse{}, err
	}
	return StartResponse{JobID: jobID}, nil
}

// JobStatus returns the current view of one job.
func (s *Service) JobStatus(ctx context.Context, jobID string) (JobView, error) {
	job, err := s.orch.Job(ctx, jobID)
	if err != nil {
		return JobView{}, err
	}
	if job == nil {
		return JobView{}, services.Wrap(services.ErrNotFound, "", "status", fmt.Sprintf("job %s", jobID), nil)
	}
	return viewOf(job), nil
}

// CancelJob requests cancellation of a pending or processing job.
func (s *Service) CancelJob(ctx context.Context, jobID string) error {
	return s.orch.Cancel(ctx, jobID)
}

// RetryFailedChunks schedules failed chunks of a failed job for another
// attempt. Empty indices means every failed chunk.
func (s *Service) RetryFailedChunks(ctx context.Context, jobID string, indices ...int) (RetryResponse, error) {
	retried, err := s.orch.RetryFailedChunks(ctx, jobID, indices...)
	if err != nil {
		return RetryResponse{}, err
	}
	return RetryResponse{JobID: jobID, Retried: retried}, nil
}

// ListJobs returns a page of jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, req ListRequest) (ListResponse, error) {
	opts := jobstore.ListOptions{Limit: req.Limit, Offset: req.Offset}
	if req.Status != "" {
		status, ok := jobs.ParseStatus(req.Status)
		if !ok {
			return ListResponse{}, services.Wrap(services.ErrValidation, "", "list",
				fmt.Sprintf("unknown status %q", req.Status), nil)
		}
		opts.Status = status
	}

	result, err := s.orch.List(ctx, opts)
	if err != nil {
		return ListResponse{}, err
	}

	views := make([]JobView, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		views = append(views, viewOf(job))
	}
	return ListResponse{Jobs: views, Total: result.Total, HasMore: result.HasMore}, nil
}

// DeleteJob removes a finished job and its on-disk artifacts.
func (s *Service) DeleteJob(ctx context.Context, jobID string) error {
	return s.orch.Delete(ctx, jobID)
}

// CostEstimate prices a prospective job before it is created.
func (s *Service) CostEstimate(info jobs.VideoInfo, cfg jobs.PipelineConfig) estimate.CostEstimate {
	return s.estimator.CalculateCost(info, cfg.Normalized())
}

// TimeEstimate predicts wall-clock processing time for a prospective job.
func (s *Service) TimeEstimate(info jobs.VideoInfo, cfg jobs.PipelineConfig) estimate.TimeEstimate {
	return s.estimator.CalculateTime(info, cfg.Normalized())
}

// Follow subscribes to a job's progress events. The returned func detaches
// the subscription.
func (s *Service) Follow(jobID string, handler func(progress.Event)) progress.UnsubscribeFunc {
	return s.bus.Subscribe(jobID, handler)
}
