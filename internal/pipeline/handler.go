package pipeline

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// NewMux wires the stage workers into an asynq mux. Each handler is the
// single place where a stage failure is recorded: workers just return
// errors, every failed attempt persists the failure status and message,
// and the broker still owns the retry policy. A redelivered task re-enters
// the stage from the failure state.
func NewMux(orch *Orchestrator, convert *ConvertWorker, transcribe *TranscribeWorker, reindex *ReindexWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(broker.TaskConvert, handle(orch, StatusFailed, convert.Run))
	mux.HandleFunc(broker.TaskTranscribe, handle(orch, StatusFailed, transcribe.Run))
	mux.HandleFunc(broker.TaskReindex, handle(orch, StatusIndexingFailed, reindex.Run))
	return mux
}

func handle(orch *Orchestrator, failStatus Status, run func(context.Context, broker.Payload) error) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		payload, err := broker.DecodePayload(task)
		if err != nil {
			log.Error("Dropping undecodable %s task: %v", task.Type(), err)
			return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
		}
		if payload.MediaID == "" {
			log.Error("Dropping %s task without media id", task.Type())
			return fmt.Errorf("%s payload has no media id: %w", task.Type(), asynq.SkipRetry)
		}

		if err := run(ctx, payload); err != nil {
			orch.MarkFailed(ctx, payload.MediaID, failStatus, err)
			return err
		}
		return nil
	}
}
