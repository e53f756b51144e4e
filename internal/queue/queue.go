// Package queue hands run ids from the API to the workers through Redis lists.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	QueueRuns = "queue:runs"
	// QueueDeadLetter keeps jobs that could not be decoded.
	QueueDeadLetter = "queue:runs:dead"

	JobTypeRun = "run"
)

type Queue struct {
	client *redis.Client
}

type Job struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	RunID     uuid.UUID `json:"run_id"`
	Source    string    `json:"source,omitempty"` // api, schedule
	CreatedAt time.Time `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, job *Job) error {
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, queueName, data).Err()
}

// Dequeue blocks up to timeout for the next job. It returns nil, nil when the
// queue stayed empty.
func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	job, err := DecodeJob([]byte(result[1]))
	if err != nil {
		q.client.RPush(ctx, QueueDeadLetter, result[1])
		return nil, err
	}
	return job, nil
}

// DecodeJob parses a queued payload.
func DecodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.RunID == uuid.Nil {
		return nil, fmt.Errorf("job %s has no run id", job.ID)
	}
	return &job, nil
}

func (q *Queue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueName).Result()
}

// EnqueueRun enqueues one pipeline run.
func (q *Queue) EnqueueRun(ctx context.Context, runID uuid.UUID, source string) error {
	job := &Job{
		ID:     uuid.New(),
		Type:   JobTypeRun,
		RunID:  runID,
		Source: source,
	}
	return q.Enqueue(ctx, QueueRuns, job)
}

// NextRun waits up to timeout for the next run job.
func (q *Queue) NextRun(ctx context.Context, timeout time.Duration) (*Job, error) {
	return q.Dequeue(ctx, QueueRuns, timeout)
}
