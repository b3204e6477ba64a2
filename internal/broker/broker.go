package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sdsc-ordes/debates-analytics/internal/config"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// Task type names, one per pipeline stage.
const (
	TaskConvert    = "pipeline:convert"
	TaskTranscribe = "pipeline:transcribe"
	TaskReindex    = "pipeline:reindex"
)

// taskTimeout bounds a single task run. Transcription can run for minutes,
// so this is deliberately generous; the broker kills and redelivers tasks
// that exceed it.
const taskTimeout = 6 * time.Hour

// Payload is the task body shared by all pipeline stages.
type Payload struct {
	MediaID string `json:"media_id"`
	S3Key   string `json:"s3_key,omitempty"`
}

// TaskStatus is the live broker-side view of one task.
type TaskStatus struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Broker enqueues, cancels and inspects pipeline tasks on a Redis-backed
// queue. Retry and backoff on failed tasks belong to the broker, not to the
// workers.
type Broker struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	maxRetry  int
}

// New connects the producer side of the queue.
func New(cfg config.QueueConfig) *Broker {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	return &Broker{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		queue:     cfg.Queue,
		maxRetry:  cfg.MaxRetry,
	}
}

// NewServer builds the consumer side: a single-task-at-a-time worker server
// pulling from the shared queue.
func NewServer(cfg config.QueueConfig) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{cfg.Queue: 1},
		},
	)
}

// Enqueue schedules one stage task and returns its broker task id.
func (b *Broker) Enqueue(ctx context.Context, stage string, payload Payload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode task payload: %w", err)
	}

	info, err := b.client.EnqueueContext(
		ctx,
		asynq.NewTask(stage, data),
		asynq.Queue(b.queue),
		asynq.MaxRetry(b.maxRetry),
		asynq.Timeout(taskTimeout),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", stage, err)
	}

	log.Info("Enqueued %s task %s for media %s", stage, info.ID, payload.MediaID)
	return info.ID, nil
}

// Cancel deletes a not-yet-dequeued task. This is the whole unit of
// cancellation; running tasks are never interrupted.
func (b *Broker) Cancel(ctx context.Context, taskID string) error {
	if err := b.inspector.DeleteTask(b.queue, taskID); err != nil {
		return fmt.Errorf("cancel task %s: %w", taskID, err)
	}
	log.Info("Cancelled task %s", taskID)
	return nil
}

// TaskState reports the live state of a task for status polling. A task the
// broker no longer knows about reports as expired.
func (b *Broker) TaskState(ctx context.Context, taskID string) (*TaskStatus, error) {
	info, err := b.inspector.GetTaskInfo(b.queue, taskID)
	if err != nil {
		return &TaskStatus{State: "expired"}, nil
	}
	return &TaskStatus{
		State: info.State.String(),
		Error: info.LastErr,
	}, nil
}

// Close releases the producer connection.
func (b *Broker) Close() error {
	return b.client.Close()
}

// DecodePayload parses a task body inside a handler.
func DecodePayload(task *asynq.Task) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return Payload{}, fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}
	return payload, nil
}
