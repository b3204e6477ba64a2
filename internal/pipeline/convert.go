package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
	"github.com/sdsc-ordes/debates-analytics/pkg/workspace"
)

// ConvertWorker turns an uploaded source file into the 16 kHz mono WAV the
// ASR service consumes: download source, extract audio, upload the WAV and
// hand the job over to the transcription stage.
type ConvertWorker struct {
	orch       *Orchestrator
	store      ObjectStore
	transcoder Transcoder
	workDir    string
}

func NewConvertWorker(orch *Orchestrator, store ObjectStore, transcoder Transcoder, workDir string) *ConvertWorker {
	return &ConvertWorker{orch: orch, store: store, transcoder: transcoder, workDir: workDir}
}

func (w *ConvertWorker) Run(ctx context.Context, p broker.Payload) error {
	run, err := w.orch.GuardStage(ctx, p.MediaID, broker.TaskConvert)
	if err != nil {
		return err
	}
	if !run {
		return nil
	}

	if err := w.orch.Progress(ctx, p.MediaID, StatusConvertingStarted, nil); err != nil {
		return err
	}

	ws, err := workspace.New(w.workDir)
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	defer ws.Cleanup()

	if err := w.orch.Progress(ctx, p.MediaID, StatusConvertingDownloading, nil); err != nil {
		return err
	}
	source := ws.Path(filepath.Base(p.S3Key))
	if err := w.store.Download(ctx, p.S3Key, source); err != nil {
		return fmt.Errorf("download source %s: %w", p.S3Key, err)
	}

	if err := w.orch.Progress(ctx, p.MediaID, StatusConvertingProcessing, nil); err != nil {
		return err
	}
	wav := ws.Path("audio.wav")
	if err := w.transcoder.ExtractAudio(ctx, source, wav); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}

	if err := w.orch.Progress(ctx, p.MediaID, StatusConvertingUploading, nil); err != nil {
		return err
	}
	audioKey := AudioKey(p.MediaID)
	if err := w.store.Upload(ctx, wav, audioKey); err != nil {
		return fmt.Errorf("upload audio %s: %w", audioKey, err)
	}

	err = w.orch.Progress(ctx, p.MediaID, StatusConvertingCompleted, bson.M{
		"s3_audio_key": audioKey,
	})
	if err != nil {
		return err
	}
	log.Info("Converted media %s to %s", p.MediaID, audioKey)

	return w.orch.Advance(ctx, p.MediaID, broker.TaskTranscribe, broker.Payload{
		MediaID: p.MediaID,
		S3Key:   audioKey,
	}, nil)
}
