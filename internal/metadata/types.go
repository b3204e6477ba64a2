package metadata

import (
	"time"

	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
)

// MediaJob is the authoritative record for one uploaded media item.
// Status holds one of the stable pipeline status strings; the state machine
// that owns the transitions lives in the pipeline package.
type MediaJob struct {
	MediaID          string            `bson:"_id" json:"media_id"`
	S3Key            string            `bson:"s3_key" json:"s3_key"`
	OriginalFilename string            `bson:"original_filename" json:"original_filename"`
	MediaType        string            `bson:"media_type" json:"media_type"`
	Status           string            `bson:"status" json:"status"`
	JobID            string            `bson:"job_id,omitempty" json:"job_id,omitempty"`
	S3AudioKey       string            `bson:"s3_audio_key,omitempty" json:"s3_audio_key,omitempty"`
	TranscriptS3Keys map[string]string `bson:"transcript_s3_keys,omitempty" json:"transcript_s3_keys,omitempty"`
	ErrorMessage     string            `bson:"error_message,omitempty" json:"error_message,omitempty"`
	DebateSession    string            `bson:"debate_session,omitempty" json:"debate_session,omitempty"`
	DebateType       string            `bson:"debate_type,omitempty" json:"debate_type,omitempty"`
	DebateSchedule   string            `bson:"debate_schedule,omitempty" json:"debate_schedule,omitempty"`
	CreatedAt        time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `bson:"updated_at" json:"updated_at"`
}

// Speaker is one entry of the per-media speaker list.
type Speaker struct {
	SpeakerID string `bson:"speaker_id" json:"speaker_id"`
	Name      string `bson:"name" json:"name"`
	RoleTag   string `bson:"role_tag" json:"role_tag"`
}

// SegmentRecord is the persisted per-segment document, keyed by
// (media_id, segment_nr). The original and translation subtitle arrays are
// filled independently as the two transcript passes are processed.
type SegmentRecord struct {
	MediaID              string                `bson:"media_id" json:"media_id"`
	SegmentNr            int                   `bson:"segment_nr" json:"segment_nr"`
	SpeakerID            string                `bson:"speaker_id,omitempty" json:"speaker_id,omitempty"`
	Start                float64               `bson:"start" json:"start"`
	End                  float64               `bson:"end" json:"end"`
	SubtitlesOriginal    []transcript.Subtitle `bson:"subtitles_original,omitempty" json:"subtitles_original,omitempty"`
	SubtitlesTranslation []transcript.Subtitle `bson:"subtitles_translation,omitempty" json:"subtitles_translation,omitempty"`
	UpdatedAt            time.Time             `bson:"updated_at" json:"updated_at"`
}

// FullMetadata bundles everything known about one media item.
type FullMetadata struct {
	Job      MediaJob        `json:"job"`
	Speakers []Speaker       `json:"speakers"`
	Segments []SegmentRecord `json:"segments"`
}
