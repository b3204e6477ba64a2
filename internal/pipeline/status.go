package pipeline

import (
	"errors"
	"fmt"
)

// Status is one of the stable persisted job states. The string values are
// part of the external contract (status polling, dashboards) and never
// change.
type Status string

const (
	StatusPreparing                       Status = "preparing"
	StatusQueued                          Status = "queued"
	StatusConvertingStarted               Status = "converting_started"
	StatusConvertingDownloading           Status = "converting_downloading"
	StatusConvertingProcessing            Status = "converting_processing"
	StatusConvertingUploading             Status = "converting_uploading"
	StatusConvertingCompleted             Status = "converting_completed"
	StatusQueuedForTranscribing           Status = "queued_for_transcribing"
	StatusTranscribingStarted             Status = "transcribing_started"
	StatusTranscribingOriginalCompleted   Status = "transcribing_original_completed"
	StatusTranscribingTranslationComplete Status = "transcribing_translation_completed"
	StatusQueuedForReindexing             Status = "queued_for_reindexing"
	StatusIndexingCompleted               Status = "indexing_completed"
	StatusIndexingFailed                  Status = "indexing_failed"
	StatusFailed                          Status = "failed"
	StatusError                           Status = "error"
)

// ErrInvalidTransition reports a state change not present in the
// transition table.
var ErrInvalidTransition = errors.New("invalid status transition")

func (s Status) String() string { return string(s) }

// IsFailure reports whether s is one of the terminal failure states.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusError || s == StatusIndexingFailed
}

// statusRank orders the forward pipeline states so the idempotency guard
// can tell "already past a stage" apart from "mid-stage". Failure states
// carry no rank.
var statusRank = map[Status]int{
	StatusPreparing:                       0,
	StatusQueued:                          1,
	StatusConvertingStarted:               2,
	StatusConvertingDownloading:           3,
	StatusConvertingProcessing:            4,
	StatusConvertingUploading:             5,
	StatusConvertingCompleted:             6,
	StatusQueuedForTranscribing:           7,
	StatusTranscribingStarted:             8,
	StatusTranscribingOriginalCompleted:   9,
	StatusTranscribingTranslationComplete: 10,
	StatusQueuedForReindexing:             11,
	StatusIndexingCompleted:               12,
}

// transitions is the closed set of allowed forward moves. Besides the plain
// pipeline order it contains:
//   - stage re-entry edges, for broker redelivery of a task that died
//     mid-stage (any converting_* back to converting_started, same for
//     transcribing);
//   - both orders of the two transcription pass completions, since the
//     passes may run concurrently;
//   - indexing_completed back to queued_for_reindexing, for manual reindex.
var transitions = map[Status][]Status{
	StatusPreparing:             {StatusQueued},
	StatusQueued:                {StatusConvertingStarted},
	StatusConvertingStarted:     {StatusConvertingDownloading},
	StatusConvertingDownloading: {StatusConvertingProcessing, StatusConvertingStarted},
	StatusConvertingProcessing:  {StatusConvertingUploading, StatusConvertingStarted},
	StatusConvertingUploading:   {StatusConvertingCompleted, StatusConvertingStarted},
	StatusConvertingCompleted:   {StatusQueuedForTranscribing, StatusConvertingStarted},
	StatusQueuedForTranscribing: {StatusTranscribingStarted},
	StatusTranscribingStarted: {
		StatusTranscribingOriginalCompleted,
		StatusTranscribingTranslationComplete,
	},
	StatusTranscribingOriginalCompleted: {
		StatusTranscribingTranslationComplete,
		StatusQueuedForReindexing,
		StatusTranscribingStarted,
	},
	StatusTranscribingTranslationComplete: {
		StatusTranscribingOriginalCompleted,
		StatusQueuedForReindexing,
		StatusTranscribingStarted,
	},
	StatusQueuedForReindexing: {StatusIndexingCompleted},
	StatusIndexingCompleted:   {StatusQueuedForReindexing},
}

// CanTransition reports whether cur -> next is allowed. Any state may fail,
// and any failure state may be retried into any pipeline state.
func CanTransition(cur, next Status) bool {
	if next.IsFailure() {
		return true
	}
	if cur.IsFailure() {
		_, ok := statusRank[next]
		return ok
	}
	for _, allowed := range transitions[cur] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Rank returns the pipeline position of a status. Failure states report
// ok=false.
func Rank(s Status) (int, bool) {
	r, ok := statusRank[s]
	return r, ok
}

// ParseStatus validates a persisted status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := statusRank[s]; ok {
		return s, nil
	}
	if s.IsFailure() {
		return s, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}
