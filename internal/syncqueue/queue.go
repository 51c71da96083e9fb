package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/averhoeven/roster-management/internal/platform"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// QueueRoleSync is the Redis list key for failed best-effort role
	// mutations awaiting replay.
	QueueRoleSync = "roster:sync"
	// QueueDLQ is the dead-letter queue for tasks the platform keeps
	// rejecting or that exhausted their retries.
	QueueDLQ = "roster:sync:dlq"
	// MaxRetries is the default number of attempts before a task moves to
	// the DLQ.
	MaxRetries = 3
	// RetryBackoff is the default delay between worker retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeRoleSync JobType = "role_sync"
)

// Job is the envelope stored on the Redis list.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues role sync tasks via Redis. It satisfies
// platform.RetryQueue so the synchronizer can defer failed best-effort
// mutations to the sync worker.
type Queue struct {
	client *redis.Client
	logger *slog.Logger
}

// NewQueue creates a new Redis-backed sync queue.
func NewQueue(client *redis.Client, logger *slog.Logger) *Queue {
	return &Queue{client: client, logger: logger}
}

// Enqueue queues one failed role mutation for replay.
func (q *Queue) Enqueue(ctx context.Context, task platform.RoleTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeRoleSync,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueRoleSync, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued role sync task",
		"job_id", job.ID,
		"operation", task.Operation,
		"role_id", task.RoleID,
		"member_id", task.MemberID)
	return nil
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, 0, QueueRoleSync).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", "raw", result[1], "error", err)
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with an incremented attempt count. The worker
// decides when a job has exhausted its attempts and discards it instead.
func (q *Queue) Retry(ctx context.Context, job *Job, cause string) error {
	job.Attempt++
	job.LastError = cause
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueRoleSync, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", "job_id", job.ID, "attempt", job.Attempt)
	return nil
}

// Discard moves a job straight to the DLQ, used for tasks that can never
// succeed no matter how often they are replayed.
func (q *Queue) Discard(ctx context.Context, job *Job, cause string) error {
	job.LastError = cause
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
		q.logger.Error("dlq push failed", "job_id", job.ID, "error", err)
		return err
	}
	q.logger.Warn("job discarded to DLQ", "job_id", job.ID, "last_error", cause)
	return nil
}

// DecodeRoleTask unpacks the role task carried by a job envelope.
func DecodeRoleTask(job *Job) (platform.RoleTask, error) {
	var task platform.RoleTask
	if job.Type != JobTypeRoleSync {
		return task, fmt.Errorf("unknown job type: %s", job.Type)
	}
	if err := json.Unmarshal(job.Payload, &task); err != nil {
		return task, fmt.Errorf("unmarshal task: %w", err)
	}
	return task, nil
}
