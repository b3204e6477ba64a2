package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"github.com/sdsc-ordes/debates-analytics/internal/asr"
	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
	"github.com/sdsc-ordes/debates-analytics/pkg/workspace"
)

// TranscribeWorker runs the two ASR passes over the extracted audio: a
// same-language transcription and an English translation. The passes run
// concurrently, their artifacts end up under the media's transcripts/
// prefix, and the job then moves on to indexing.
type TranscribeWorker struct {
	orch    *Orchestrator
	store   ObjectStore
	asr     ASRService
	workDir string
}

func NewTranscribeWorker(orch *Orchestrator, store ObjectStore, asrService ASRService, workDir string) *TranscribeWorker {
	return &TranscribeWorker{orch: orch, store: store, asr: asrService, workDir: workDir}
}

// passes maps the ASR task to the statement type its artifacts are stored
// under, plus the status recorded when the pass finishes.
var passes = []struct {
	task          string
	statementType string
	done          Status
}{
	{asr.TaskTranscribe, transcript.TypeOriginal, StatusTranscribingOriginalCompleted},
	{asr.TaskTranslate, transcript.TypeTranslation, StatusTranscribingTranslationComplete},
}

func (w *TranscribeWorker) Run(ctx context.Context, p broker.Payload) error {
	run, err := w.orch.GuardStage(ctx, p.MediaID, broker.TaskTranscribe)
	if err != nil {
		return err
	}
	if !run {
		return nil
	}

	if err := w.orch.Progress(ctx, p.MediaID, StatusTranscribingStarted, nil); err != nil {
		return err
	}

	ws, err := workspace.New(w.workDir)
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	defer ws.Cleanup()

	audio := ws.Path("audio.wav")
	if err := w.store.Download(ctx, p.S3Key, audio); err != nil {
		return fmt.Errorf("download audio %s: %w", p.S3Key, err)
	}

	var mu sync.Mutex
	transcriptKeys := bson.M{}

	g, gctx := errgroup.WithContext(ctx)
	for _, pass := range passes {
		pass := pass
		g.Go(func() error {
			destDir := ws.Path(pass.task)
			if err := os.MkdirAll(destDir, 0o755); err != nil {
				return fmt.Errorf("create %s dir: %w", pass.task, err)
			}

			artifacts, err := w.asr.Run(gctx, audio, pass.task, destDir)
			if err != nil {
				return fmt.Errorf("%s pass: %w", pass.task, err)
			}

			for name, localPath := range artifacts.Files() {
				key := ArtifactKey(p.MediaID, name, pass.statementType)
				if err := w.store.Upload(gctx, localPath, key); err != nil {
					return fmt.Errorf("upload %s: %w", key, err)
				}
				mu.Lock()
				transcriptKeys[fmt.Sprintf("transcript_s3_keys.%s_%s", pass.statementType, name)] = key
				mu.Unlock()
			}

			// The two passes finish in whatever order; the status
			// updates are serialized so each one sees the other's.
			mu.Lock()
			defer mu.Unlock()
			return w.orch.Progress(gctx, p.MediaID, pass.done, nil)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Transcribed media %s (%d artifacts)", p.MediaID, len(transcriptKeys))

	return w.orch.Advance(ctx, p.MediaID, broker.TaskReindex, broker.Payload{
		MediaID: p.MediaID,
	}, transcriptKeys)
}
