package transcript

// Utterance is one time-ordered speech unit as returned by the ASR service.
type Utterance struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Text     string  `json:"text"`
	Speaker  string  `json:"speaker"`
	Language string  `json:"language"`
}

// Subtitle is one timed text entry inside a segment.
type Subtitle struct {
	Start float64 `json:"start" bson:"start"`
	End   float64 `json:"end" bson:"end"`
	Text  string  `json:"text" bson:"text"`
}

// Segment is a contiguous run of utterances by one speaker. SegmentNr is
// 1-based and strictly increasing per media item; End always equals the end
// time of the last subtitle.
type Segment struct {
	SegmentNr int        `json:"segment_nr" bson:"segment_nr"`
	SpeakerID string     `json:"speaker_id" bson:"speaker_id"`
	Language  string     `json:"language" bson:"language"`
	Start     float64    `json:"start" bson:"start"`
	End       float64    `json:"end" bson:"end"`
	Subtitles []Subtitle `json:"subtitles" bson:"subtitles"`
}

// Statement types mirrored into the search index.
const (
	TypeOriginal    = "original"
	TypeTranslation = "translation"
)

// SearchDocument is the denormalized per-segment-per-language record
// mirrored into the search index. The id is derived deterministically from
// (media id, segment index, statement type) so re-indexing is idempotent.
type SearchDocument struct {
	ID                string   `json:"id"`
	MediaID           string   `json:"media_id"`
	SegmentNr         int      `json:"segment_nr"`
	SpeakerID         string   `json:"speaker_id"`
	Statement         []string `json:"statement"`
	StatementType     string   `json:"statement_type"`
	StatementLanguage string   `json:"statement_language,omitempty"`
	Start             float64  `json:"start"`
	End               float64  `json:"end"`
}
