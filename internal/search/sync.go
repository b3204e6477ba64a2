package search

import (
	"context"
	"fmt"

	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// debateDetailFields maps editable media-record fields to their indexed
// facet fields.
var debateDetailFields = map[string]string{
	"session":  "debate_session",
	"type":     "debate_type",
	"schedule": "debate_schedule",
}

// UpdateSegment patches the statement text of the documents matching
// (media id, segment nr, statement type). When nothing matches the index
// simply lags until the next reindex; that is a successful no-op.
func (c *Client) UpdateSegment(ctx context.Context, mediaID string, segmentNr int, statementType string, subtitles []transcript.Subtitle) error {
	statement := make([]string, 0, len(subtitles))
	for _, sub := range subtitles {
		statement = append(statement, sub.Text)
	}

	query := fmt.Sprintf("statement_type:%s AND media_id:%s AND segment_nr:%d", statementType, mediaID, segmentNr)
	ids, err := c.selectIDs(ctx, query)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		log.Info("No indexed documents for %s segment %d, skipping", mediaID, segmentNr)
		return nil
	}

	updates := make([]any, 0, len(ids))
	for _, id := range ids {
		updates = append(updates, map[string]any{
			"id":        id,
			"statement": map[string]any{"set": statement},
		})
	}
	return c.Add(ctx, updates)
}

// UpdateSpeaker patches the speaker name and role tag on every document of
// the given speaker within one media item.
func (c *Client) UpdateSpeaker(ctx context.Context, mediaID, speakerID, name, roleTag string) error {
	query := fmt.Sprintf("speaker_id:%s AND media_id:%s", speakerID, mediaID)
	ids, err := c.selectIDs(ctx, query)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	updates := make([]any, 0, len(ids))
	for _, id := range ids {
		updates = append(updates, map[string]any{
			"id":               id,
			"speaker_name":     map[string]any{"set": name},
			"speaker_role_tag": map[string]any{"set": roleTag},
		})
	}
	return c.Add(ctx, updates)
}

// UpdateDebateDetails propagates edited debate metadata to every document
// of a media item. Unknown fields are ignored.
func (c *Client) UpdateDebateDetails(ctx context.Context, mediaID string, details map[string]string) error {
	sets := make(map[string]any)
	for apiField, solrField := range debateDetailFields {
		if value, ok := details[apiField]; ok && value != "" {
			sets[solrField] = map[string]any{"set": value}
		}
	}
	if len(sets) == 0 {
		return nil
	}

	ids, err := c.selectIDs(ctx, fmt.Sprintf("media_id:%s", mediaID))
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		log.Warn("No indexed documents for media %s, debate details not propagated", mediaID)
		return nil
	}

	updates := make([]any, 0, len(ids))
	for _, id := range ids {
		update := map[string]any{"id": id}
		for field, set := range sets {
			update[field] = set
		}
		updates = append(updates, update)
	}
	return c.Add(ctx, updates)
}

// DeleteByMedia removes every document for the media id.
func (c *Client) DeleteByMedia(ctx context.Context, mediaID string) error {
	return c.DeleteByQuery(ctx, fmt.Sprintf("media_id:%q", mediaID))
}
