package pipeline

import (
	"fmt"
	"strings"
)

// Object-store key scheme. Everything belonging to one media item lives
// under its id so admin deletion is a single prefix removal.

func SourceKey(mediaID, filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(extOf(filename)), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/source.%s", mediaID, ext)
}

func AudioKey(mediaID string) string {
	return mediaID + "/audio.wav"
}

func MediaPrefix(mediaID string) string {
	return mediaID + "/"
}

func TranscriptPrefix(mediaID string) string {
	return mediaID + "/transcripts/"
}

// artifactExt maps ASR artifact names to object-store base names and
// extensions. "srt" becomes subtitles-{type}.srt, "segments_md" becomes
// segments-{type}.md, and so on.
var artifactNames = map[string][2]string{
	"srt":           {"subtitles", "srt"},
	"json":          {"subtitles", "json"},
	"segments_json": {"segments", "json"},
	"segments_md":   {"segments", "md"},
	"segments_pdf":  {"segments", "pdf"},
}

// ArtifactKey returns the object-store key for one transcript artifact of
// the given statement type ("original" or "translation"). Unknown artifact
// names fall back to their raw name so nothing uploaded is ever lost.
func ArtifactKey(mediaID, artifact, statementType string) string {
	if parts, ok := artifactNames[artifact]; ok {
		return fmt.Sprintf("%s/transcripts/%s-%s.%s", mediaID, parts[0], statementType, parts[1])
	}
	return fmt.Sprintf("%s/transcripts/%s-%s", mediaID, artifact, statementType)
}

// UtterancesKey is the transcript artifact the reindex stage reads back:
// the utterance-level JSON produced by the ASR service.
func UtterancesKey(mediaID, statementType string) string {
	return ArtifactKey(mediaID, "json", statementType)
}

func extOf(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i:]
	}
	return ""
}
