package pipeline

import (
	"context"
	"fmt"

	"github.com/sdsc-ordes/debates-analytics/internal/metadata"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// DeleteResult reports the outcome of an admin deletion. Status is
// "deleted" when every store was cleaned, "partial_deleted" when the
// derived stores left residue behind.
type DeleteResult struct {
	Status   string   `json:"status"`
	Warnings []string `json:"warnings,omitempty"`
}

const (
	DeleteComplete = "deleted"
	DeletePartial  = "partial_deleted"
)

// Cleaner removes every trace of a media item across the three stores.
type Cleaner struct {
	store ObjectStore
	index SearchIndex
	meta  MetadataStore
}

func NewCleaner(store ObjectStore, index SearchIndex, meta MetadataStore) *Cleaner {
	return &Cleaner{store: store, index: index, meta: meta}
}

// Delete runs best-effort against the object store and the search index,
// collecting warnings instead of aborting, and deletes the metadata record
// last: the record is the source of truth, so it only disappears once the
// derived cleanup had its chance, and a metadata failure is the one fatal
// outcome. A missing record yields metadata.ErrNotFound regardless of what
// the earlier steps did.
func (c *Cleaner) Delete(ctx context.Context, mediaID string) (*DeleteResult, error) {
	var warnings []string

	if err := c.store.DeletePrefix(ctx, MediaPrefix(mediaID)); err != nil {
		log.Warn("Object cleanup for %s failed: %v", mediaID, err)
		warnings = append(warnings, fmt.Sprintf("object store: %v", err))
	}
	if err := c.index.DeleteByMedia(ctx, mediaID); err != nil {
		log.Warn("Index cleanup for %s failed: %v", mediaID, err)
		warnings = append(warnings, fmt.Sprintf("search index: %v", err))
	}

	found, err := c.meta.DeleteAll(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("delete metadata for %s: %w", mediaID, err)
	}
	if !found {
		return nil, metadata.ErrNotFound
	}

	result := &DeleteResult{Status: DeleteComplete, Warnings: warnings}
	if len(warnings) > 0 {
		result.Status = DeletePartial
	}
	log.Info("Deleted media %s (%s)", mediaID, result.Status)
	return result, nil
}
