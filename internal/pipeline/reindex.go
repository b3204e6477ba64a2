package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/internal/metadata"
	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// ReindexWorker rebuilds the derived stores from the transcript artifacts:
// it wipes the media's search documents, re-parses both utterance files,
// re-segments them, upserts the segment records and speaker list, and
// indexes the resulting statements. Running it twice produces the same
// document ids, so it is safe to re-run at any time.
type ReindexWorker struct {
	orch  *Orchestrator
	store ObjectStore
	meta  MetadataStore
	index SearchIndex
}

func NewReindexWorker(orch *Orchestrator, store ObjectStore, meta MetadataStore, index SearchIndex) *ReindexWorker {
	return &ReindexWorker{orch: orch, store: store, meta: meta, index: index}
}

func (w *ReindexWorker) Run(ctx context.Context, p broker.Payload) error {
	run, err := w.orch.GuardStage(ctx, p.MediaID, broker.TaskReindex)
	if err != nil {
		return err
	}
	if !run {
		return nil
	}

	job, err := w.meta.GetJob(ctx, p.MediaID)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// Clean slate: stale documents from a previous run must not survive a
	// reindex that now yields fewer segments.
	if err := w.index.DeleteByMedia(ctx, p.MediaID); err != nil {
		return fmt.Errorf("clear index for %s: %w", p.MediaID, err)
	}

	indexed := 0
	for _, statementType := range []string{transcript.TypeOriginal, transcript.TypeTranslation} {
		n, err := w.indexPass(ctx, p.MediaID, statementType)
		if err != nil {
			return err
		}
		indexed += n
	}
	log.Info("Indexed %d statements for media %s", indexed, p.MediaID)

	if details := debateDetails(job); len(details) > 0 {
		if err := w.index.UpdateDebateDetails(ctx, p.MediaID, details); err != nil {
			return fmt.Errorf("propagate debate details: %w", err)
		}
	}

	err = w.orch.Progress(ctx, p.MediaID, StatusIndexingCompleted, nil)
	if errors.Is(err, ErrInvalidTransition) {
		// Manual reindex of a job mid-pipeline: leave its status alone.
		log.Info("Reindex of %s finished without a status change", p.MediaID)
		return nil
	}
	return err
}

// indexPass processes one statement type. A missing or empty utterance file
// is skipped: an upload may have produced only one of the two passes.
func (w *ReindexWorker) indexPass(ctx context.Context, mediaID, statementType string) (int, error) {
	key := UtterancesKey(mediaID, statementType)
	raw, err := w.store.GetText(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", key, err)
	}
	if raw == "" {
		log.Warn("No %s utterances for media %s, skipping", statementType, mediaID)
		return 0, nil
	}

	utterances, err := transcript.ParseUtterances([]byte(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	if err := w.meta.SaveRawSubtitles(ctx, mediaID, statementType, utterances); err != nil {
		return 0, err
	}

	segments := transcript.Segmentize(utterances)
	withMeta := statementType == transcript.TypeOriginal
	for _, seg := range segments {
		if err := w.meta.UpsertSegment(ctx, mediaID, seg, statementType, withMeta); err != nil {
			return 0, err
		}
	}
	if withMeta {
		if err := w.meta.ReplaceSpeakers(ctx, mediaID, transcript.Speakers(segments)); err != nil {
			return 0, err
		}
	}

	docs := transcript.ToSearchDocuments(segments, mediaID, statementType)
	payload := make([]any, len(docs))
	for i, doc := range docs {
		payload[i] = doc
	}
	if err := w.index.Add(ctx, payload); err != nil {
		return 0, fmt.Errorf("index %s documents: %w", statementType, err)
	}
	return len(docs), nil
}

func debateDetails(job *metadata.MediaJob) map[string]string {
	details := make(map[string]string)
	if job.DebateSession != "" {
		details["session"] = job.DebateSession
	}
	if job.DebateType != "" {
		details["type"] = job.DebateType
	}
	if job.DebateSchedule != "" {
		details["schedule"] = job.DebateSchedule
	}
	return details
}
