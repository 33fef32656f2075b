package notifications

import (
	"context"
	"log/slog"

	"dubber/internal/jobs"
	"dubber/internal/logging"
)

// JobNotifier adapts the notification service to the pipeline's terminal
// job hooks. Delivery failures are logged, never propagated; a push
// notification must not change a job's outcome.
type JobNotifier struct {
	svc    Service
	logger *slog.Logger
}

// NewJobNotifier wraps a notification service for pipeline use.
func NewJobNotifier(svc Service, logger *slog.Logger) *JobNotifier {
	return &JobNotifier{
		svc:    svc,
		logger: logging.NewComponentLogger(logger, "notifications"),
	}
}

func (n *JobNotifier) JobStarted(ctx context.Context, job *jobs.Job) {
	if err := n.svc.NotifyJobStarted(ctx, jobTitle(job)); err != nil {
		logging.WarnWithContext(n.logger, "start notification failed", "notify_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "user not notified, job outcome unaffected"))
	}
}

func (n *JobNotifier) JobCompleted(ctx context.Context, job *jobs.Job) {
	if err := n.svc.NotifyJobCompleted(ctx, jobTitle(job), job.OutputFile); err != nil {
		logging.WarnWithContext(n.logger, "completion notification failed", "notify_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "user not notified, job outcome unaffected"))
	}
}

func (n *JobNotifier) JobFailed(ctx context.Context, job *jobs.Job) {
	if err := n.svc.NotifyJobFailed(ctx, jobTitle(job), job.ErrorMessage); err != nil {
		logging.WarnWithContext(n.logger, "failure notification failed", "notify_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "user not notified, job outcome unaffected"))
	}
}

func (n *JobNotifier) JobCancelled(ctx context.Context, job *jobs.Job) {
	if err := n.svc.NotifyJobCancelled(ctx, jobTitle(job)); err != nil {
		logging.WarnWithContext(n.logger, "cancel notification failed", "notify_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "user not notified, job outcome unaffected"))
	}
}

func jobTitle(job *jobs.Job) string {
	if job.VideoInfo.Title != "" {
		return job.VideoInfo.Title
	}
	return job.SourceURL
}
