package transcript

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// ParseUtterances decodes raw ASR output. The service emits either a bare
// array of utterances or an object with a "segments" array; both shapes are
// accepted.
func ParseUtterances(data []byte) ([]Utterance, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var utterances []Utterance
		if err := json.Unmarshal(data, &utterances); err != nil {
			return nil, fmt.Errorf("parse utterance array: %w", err)
		}
		return utterances, nil
	}

	var wrapper struct {
		Segments []Utterance `json:"segments"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse utterance object: %w", err)
	}
	return wrapper.Segments, nil
}

// Segmentize groups a time-ordered utterance sequence into segments. The
// segment number starts at 1 and increases exactly when the speaker value
// changes between consecutive utterances; an empty speaker is a speaker
// value like any other, so two adjacent empty-speaker utterances share a
// segment.
func Segmentize(utterances []Utterance) []Segment {
	if len(utterances) == 0 {
		return []Segment{}
	}

	segments := make([]Segment, 0)
	current := newSegment(1, utterances[0])

	for _, u := range utterances[1:] {
		if u.Speaker != current.SpeakerID {
			segments = append(segments, current)
			current = newSegment(current.SegmentNr+1, u)
			continue
		}
		current.Subtitles = append(current.Subtitles, Subtitle{
			Start: u.Start,
			End:   u.End,
			Text:  u.Text,
		})
		current.End = u.End
	}

	return append(segments, current)
}

func newSegment(nr int, u Utterance) Segment {
	return Segment{
		SegmentNr: nr,
		SpeakerID: u.Speaker,
		Language:  normalizeLanguage(u.Language, u.Text),
		Start:     u.Start,
		End:       u.End,
		Subtitles: []Subtitle{{Start: u.Start, End: u.End, Text: u.Text}},
	}
}

// Speakers extracts the unique speaker ids across all segments in order of
// first appearance. Empty ids carry no identity and are dropped.
func Speakers(segments []Segment) []string {
	seen := make(map[string]bool)
	speakers := make([]string, 0)
	for _, seg := range segments {
		if seg.SpeakerID == "" || seen[seg.SpeakerID] {
			continue
		}
		seen[seg.SpeakerID] = true
		speakers = append(speakers, seg.SpeakerID)
	}
	return speakers
}

// ToSearchDocuments maps segments to index documents for one statement type.
func ToSearchDocuments(segments []Segment, mediaID, statementType string) []SearchDocument {
	docs := make([]SearchDocument, 0, len(segments))
	for _, seg := range segments {
		statement := make([]string, 0, len(seg.Subtitles))
		for _, sub := range seg.Subtitles {
			statement = append(statement, sub.Text)
		}

		speakerID := seg.SpeakerID
		if speakerID == "" {
			speakerID = "UNKNOWN"
		}

		docs = append(docs, SearchDocument{
			ID:                fmt.Sprintf("%s_%d_%s", mediaID, seg.SegmentNr-1, statementType),
			MediaID:           mediaID,
			SegmentNr:         seg.SegmentNr,
			SpeakerID:         speakerID,
			Statement:         statement,
			StatementType:     statementType,
			StatementLanguage: seg.Language,
			Start:             seg.Start,
			End:               seg.End,
		})
	}
	return docs
}

// normalizeLanguage canonicalizes the ASR language code. When the service
// omits the code entirely we fall back to detecting it from the text.
func normalizeLanguage(code, text string) string {
	if code != "" {
		if tag, err := language.Parse(code); err == nil {
			return tag.String()
		}
		return code
	}
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return whatlanggo.DetectLang(text).Iso6391()
}
