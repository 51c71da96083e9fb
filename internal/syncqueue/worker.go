package syncqueue

import (
	"context"
	"log/slog"
	"time"

	"github.com/averhoeven/roster-management/internal"
	"github.com/averhoeven/roster-management/internal/platform"
)

// Config tunes the replay worker. Zero values fall back to the package
// defaults.
type Config struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Worker drains the role sync queue, replaying best-effort mutations that
// failed during roster operations. Tasks the platform rejects outright are
// discarded to the DLQ; transient failures go back on the queue until the
// attempt budget runs out.
type Worker struct {
	queue       *Queue
	client      platform.RoleClient
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

// NewWorker creates a sync queue worker.
func NewWorker(queue *Queue, client platform.RoleClient, cfg Config, logger *slog.Logger) *Worker {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = MaxRetries
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = RetryBackoff
	}
	return &Worker{
		queue:       queue,
		client:      client,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Process executes one role sync job against the platform.
func (w *Worker) Process(ctx context.Context, job *Job) error {
	task, err := DecodeRoleTask(job)
	if err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	switch task.Operation {
	case platform.RoleOpGrant:
		err = w.client.GrantRole(ctx, task.GuildID, task.UserID, task.RoleID)
	case platform.RoleOpRevoke:
		err = w.client.RevokeRole(ctx, task.GuildID, task.UserID, task.RoleID)
	default:
		return internal.NewValidationError("unknown role operation: "+task.Operation, internal.ErrCodeValidationFailed)
	}
	if err != nil {
		return err
	}

	w.logger.Info("role sync task replayed",
		"job_id", job.ID,
		"operation", task.Operation,
		"role_id", task.RoleID,
		"member_id", task.MemberID)
	return nil
}

// Run starts the worker loop: dequeue, process, route failures.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sync worker stopping")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("sync worker stopping")
				return
			}
			w.logger.Warn("dequeue error", "error", err)
			time.Sleep(w.backoff)
			continue
		}
		if job == nil {
			continue
		}

		w.logger.Debug("processing job", "job_id", job.ID, "type", string(job.Type))
		if err := w.Process(ctx, job); err != nil {
			w.route(ctx, job, err)
		}
	}
}

// route decides whether a failed job is worth another attempt. Validation
// failures and platform rejections never heal on their own, and a job that
// burned its whole attempt budget stops churning the queue.
func (w *Worker) route(ctx context.Context, job *Job, cause error) {
	w.logger.Error("job failed", "job_id", job.ID, "attempt", job.Attempt, "error", cause)

	if appErr, ok := internal.IsAppError(cause); ok {
		if appErr.Type == internal.ErrorTypeValidation || appErr.Code == internal.ErrCodePlatformRejected {
			if err := w.queue.Discard(ctx, job, cause.Error()); err != nil {
				w.logger.Error("discard failed", "job_id", job.ID, "error", err)
			}
			return
		}
	}

	if job.Attempt+1 >= w.maxAttempts {
		if err := w.queue.Discard(ctx, job, "retries exhausted: "+cause.Error()); err != nil {
			w.logger.Error("discard failed", "job_id", job.ID, "error", err)
		}
		return
	}

	if err := w.queue.Retry(ctx, job, cause.Error()); err != nil {
		w.logger.Error("retry enqueue failed", "job_id", job.ID, "error", err)
	}
	time.Sleep(w.backoff)
}
