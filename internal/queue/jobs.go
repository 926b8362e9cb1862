// Package queue defines the task types exchanged between the API and the
// worker, and the retry policy applied to them.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskContractAnalyze is scheduled each time a contract is uploaded.
	TaskContractAnalyze = "contract:analyze"
	// TaskContractGenerate is scheduled for template-based generation.
	TaskContractGenerate = "contract:generate"

	QueueAnalysis   = "analysis"
	QueueGeneration = "generation"
)

// AnalysisPayload is serialized into the task so the worker knows which
// object to download and which job record to drive.
type AnalysisPayload struct {
	JobID         string `json:"job_id"`
	ObjectKey     string `json:"object_key"`
	FileName      string `json:"file_name"`
	FileType      string `json:"file_type"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	IPAddress     string `json:"ip_address,omitempty"`
}

// GenerationPayload carries the template input for a generation job.
type GenerationPayload struct {
	JobID        string         `json:"job_id"`
	TemplateType string         `json:"template_type"`
	InputData    map[string]any `json:"input_data"`
	IPAddress    string         `json:"ip_address,omitempty"`
}

// Policy bounds every task: total executions, per-attempt timeout, and how
// long exhausted tasks stay around for inspection.
type Policy struct {
	MaxAttempts int
	Timeout     time.Duration
	Retention   time.Duration
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client enqueues jobs with the configured policy. The job id doubles as the
// asynq task id, so re-submitting the same id never creates a second
// in-flight task.
type Client struct {
	client taskEnqueuer
	policy Policy
}

// NewClient wraps an asynq client.
func NewClient(client *asynq.Client, policy Policy) *Client {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.Retention <= 0 {
		policy.Retention = 7 * 24 * time.Hour
	}
	return &Client{client: client, policy: policy}
}

// EnqueueAnalysis queues an analysis job. A duplicate job id is a no-op.
func (c *Client) EnqueueAnalysis(ctx context.Context, payload AnalysisPayload) error {
	return c.enqueue(ctx, TaskContractAnalyze, QueueAnalysis, payload.JobID, payload)
}

// EnqueueGeneration queues a generation job. A duplicate job id is a no-op.
func (c *Client) EnqueueGeneration(ctx context.Context, payload GenerationPayload) error {
	return c.enqueue(ctx, TaskContractGenerate, QueueGeneration, payload.JobID, payload)
}

func (c *Client) enqueue(ctx context.Context, taskType, queueName, jobID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	// asynq counts MaxRetry on top of the first execution, so attempts-1
	// keeps the ceiling at MaxAttempts total executions.
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(jobID),
		asynq.Queue(queueName),
		asynq.MaxRetry(c.policy.MaxAttempts-1),
		asynq.Timeout(c.policy.Timeout),
		asynq.Retention(c.policy.Retention),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

// ExponentialBackoff returns a retry delay function that doubles the base
// delay per attempt: base * 2^(n-1).
func ExponentialBackoff(base time.Duration) asynq.RetryDelayFunc {
	if base <= 0 {
		base = 2 * time.Second
	}
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		if n < 1 {
			n = 1
		}
		return base << (n - 1)
	}
}
