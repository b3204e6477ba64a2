package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/singleflight"

	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/internal/metadata"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// Orchestrator owns the job state machine. It is the only place that
// decides what happens next: it enqueues stage tasks, applies validated
// status transitions and performs the rollback when a task was enqueued for
// a record that turned out not to exist.
type Orchestrator struct {
	queue QueueBroker
	meta  MetadataStore

	reindexGroup singleflight.Group
}

func NewOrchestrator(queue QueueBroker, meta MetadataStore) *Orchestrator {
	return &Orchestrator{queue: queue, meta: meta}
}

// StartProcessing kicks off the pipeline for an uploaded media item. The
// ordering is enqueue-then-record: the status update doubles as the
// existence check, and when it reports an unknown media id the just-created
// task is cancelled before the error is returned. A failed cancellation is
// logged but never masks the original error.
func (o *Orchestrator) StartProcessing(ctx context.Context, mediaID, s3Key string) (string, error) {
	taskID, err := o.queue.Enqueue(ctx, broker.TaskConvert, broker.Payload{
		MediaID: mediaID,
		S3Key:   s3Key,
	})
	if err != nil {
		return "", fmt.Errorf("enqueue convert task: %w", err)
	}

	if err := o.meta.UpdateStatus(ctx, mediaID, StatusQueued.String(), taskID, nil); err != nil {
		log.Warn("Record update failed for %s, rolling back task %s", mediaID, taskID)
		if cancelErr := o.queue.Cancel(ctx, taskID); cancelErr != nil {
			log.Error("Failed to cancel task %s during rollback: %v", taskID, cancelErr)
		}
		return "", err
	}

	return taskID, nil
}

// Advance is called by a stage worker on success: it enqueues the next
// stage and records the queued status plus any extra fields in one logical
// step. A record already past the requested stage, or missing entirely,
// makes the call a successful no-op so duplicate queue deliveries are
// harmless.
func (o *Orchestrator) Advance(ctx context.Context, mediaID, nextStage string, payload broker.Payload, extra bson.M) error {
	queuedStatus, err := queuedStatusFor(nextStage)
	if err != nil {
		return err
	}

	job, err := o.meta.GetJob(ctx, mediaID)
	if errors.Is(err, metadata.ErrNotFound) {
		log.Warn("Advance(%s): media %s is gone, nothing to do", nextStage, mediaID)
		return nil
	}
	if err != nil {
		return err
	}

	cur := Status(job.Status)
	if curRank, ok := Rank(cur); ok {
		if targetRank, _ := Rank(queuedStatus); curRank >= targetRank {
			log.Info("Advance(%s): media %s already at %s, skipping", nextStage, mediaID, cur)
			return nil
		}
	}

	taskID, err := o.queue.Enqueue(ctx, nextStage, payload)
	if err != nil {
		return fmt.Errorf("enqueue %s task: %w", nextStage, err)
	}

	if err := o.meta.UpdateStatus(ctx, mediaID, queuedStatus.String(), taskID, extra); err != nil {
		if cancelErr := o.queue.Cancel(ctx, taskID); cancelErr != nil {
			log.Error("Failed to cancel task %s during rollback: %v", taskID, cancelErr)
		}
		return err
	}
	return nil
}

// Progress applies one validated transition of the state machine, carrying
// optional extra record fields.
func (o *Orchestrator) Progress(ctx context.Context, mediaID string, next Status, extra bson.M) error {
	job, err := o.meta.GetJob(ctx, mediaID)
	if err != nil {
		return err
	}

	cur := Status(job.Status)
	if cur == next {
		return nil
	}
	if !CanTransition(cur, next) {
		return fmt.Errorf("%w: %s -> %s for media %s", ErrInvalidTransition, cur, next, mediaID)
	}

	log.Info("Media %s: %s", mediaID, next)
	return o.meta.UpdateStatus(ctx, mediaID, next.String(), "", extra)
}

// MarkFailed records a terminal failure with its error message. Always safe
// to call from failure handlers: every problem is logged, none returned, and
// partial progress already persisted stays in place.
func (o *Orchestrator) MarkFailed(ctx context.Context, mediaID string, failStatus Status, cause error) {
	if !failStatus.IsFailure() {
		failStatus = StatusFailed
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	log.Error("Media %s FAILED: %s", mediaID, msg)

	err := o.meta.UpdateStatus(ctx, mediaID, failStatus.String(), "", bson.M{
		"error_message": msg,
	})
	if err != nil {
		log.Error("Could not record failure for %s: %v", mediaID, err)
	}
}

// GuardStage is the consumer-side idempotency check run before a stage
// does any work. It reports false when the task should be acknowledged
// without running: the record is gone, or it is already past this stage.
// Failure states always re-run, so broker redelivery can retry a job.
func (o *Orchestrator) GuardStage(ctx context.Context, mediaID, stage string) (bool, error) {
	job, err := o.meta.GetJob(ctx, mediaID)
	if errors.Is(err, metadata.ErrNotFound) {
		log.Warn("%s task for unknown media %s, acknowledging", stage, mediaID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	cur := Status(job.Status)
	if cur.IsFailure() {
		return true, nil
	}

	limit, bounded := stageCompletionRank(stage)
	if !bounded {
		return true, nil
	}
	if curRank, ok := Rank(cur); ok && curRank >= limit {
		log.Info("%s task for media %s already done (status %s), acknowledging", stage, mediaID, cur)
		return false, nil
	}
	return true, nil
}

// TriggerReindex enqueues a manual reindex. Concurrent triggers for the
// same media id are collapsed into one task. The queued status is only
// recorded when the record is in a state that allows it; a job mid-pipeline
// keeps its current status and the reindex simply operates on whatever
// artifacts exist.
func (o *Orchestrator) TriggerReindex(ctx context.Context, mediaID string) (string, error) {
	result, err, _ := o.reindexGroup.Do(mediaID, func() (any, error) {
		job, err := o.meta.GetJob(ctx, mediaID)
		if err != nil {
			return "", err
		}

		taskID, err := o.queue.Enqueue(ctx, broker.TaskReindex, broker.Payload{MediaID: mediaID})
		if err != nil {
			return "", fmt.Errorf("enqueue reindex task: %w", err)
		}

		cur := Status(job.Status)
		if CanTransition(cur, StatusQueuedForReindexing) {
			if err := o.meta.UpdateStatus(ctx, mediaID, StatusQueuedForReindexing.String(), taskID, nil); err != nil {
				if cancelErr := o.queue.Cancel(ctx, taskID); cancelErr != nil {
					log.Error("Failed to cancel task %s during rollback: %v", taskID, cancelErr)
				}
				return "", err
			}
		} else {
			log.Info("Manual reindex for %s while status is %s, leaving status untouched", mediaID, cur)
		}
		return taskID, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func queuedStatusFor(stage string) (Status, error) {
	switch stage {
	case broker.TaskConvert:
		return StatusQueued, nil
	case broker.TaskTranscribe:
		return StatusQueuedForTranscribing, nil
	case broker.TaskReindex:
		return StatusQueuedForReindexing, nil
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
}

// stageCompletionRank returns the rank at which a stage counts as already
// done. Reindex is idempotent and re-runnable at any point, so it is
// unbounded.
func stageCompletionRank(stage string) (int, bool) {
	switch stage {
	case broker.TaskConvert:
		r, _ := Rank(StatusQueuedForTranscribing)
		return r, true
	case broker.TaskTranscribe:
		r, _ := Rank(StatusQueuedForReindexing)
		return r, true
	default:
		return 0, false
	}
}
