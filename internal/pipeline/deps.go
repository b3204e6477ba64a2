package pipeline

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sdsc-ordes/debates-analytics/internal/asr"
	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/internal/metadata"
	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
)

// The pipeline depends on its collaborators through interfaces so workers
// and the orchestrator can be exercised against fakes.

// ObjectStore is the slice of the S3 client the pipeline needs.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, key string) error
	Download(ctx context.Context, key, localPath string) error
	GetText(ctx context.Context, key string) (string, error)
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// MetadataStore is the authoritative record store.
type MetadataStore interface {
	GetJob(ctx context.Context, mediaID string) (*metadata.MediaJob, error)
	UpdateStatus(ctx context.Context, mediaID, status, jobID string, extra bson.M) error
	UpsertSegment(ctx context.Context, mediaID string, seg transcript.Segment, statementType string, withMeta bool) error
	SaveRawSubtitles(ctx context.Context, mediaID, statementType string, utterances []transcript.Utterance) error
	ReplaceSpeakers(ctx context.Context, mediaID string, speakerIDs []string) error
	DeleteAll(ctx context.Context, mediaID string) (bool, error)
}

// SearchIndex is the derived search projection.
type SearchIndex interface {
	Add(ctx context.Context, docs []any) error
	DeleteByMedia(ctx context.Context, mediaID string) error
	UpdateDebateDetails(ctx context.Context, mediaID string, details map[string]string) error
}

// QueueBroker enqueues and cancels stage tasks.
type QueueBroker interface {
	Enqueue(ctx context.Context, stage string, payload broker.Payload) (string, error)
	Cancel(ctx context.Context, taskID string) error
}

// Transcoder produces ASR-ready audio from arbitrary media.
type Transcoder interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
}

// ASRService runs one transcription or translation pass.
type ASRService interface {
	Run(ctx context.Context, audioPath, task, destDir string) (*asr.Artifacts, error)
}
