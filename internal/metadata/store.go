package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sdsc-ordes/debates-analytics/internal/config"
	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// ErrNotFound is returned when no record exists for the given media id.
var ErrNotFound = errors.New("media not found")

const (
	collMedia     = "media"
	collSpeakers  = "speakers"
	collSegments  = "segments"
	collSubtitles = "subtitles"
)

// Store is the MetadataStore client. MongoDB is the authoritative store;
// the search index is only a derived projection of what lives here.
type Store struct {
	media     *mongo.Collection
	speakers  *mongo.Collection
	segments  *mongo.Collection
	subtitles *mongo.Collection
}

// NewStore connects to MongoDB and pings it before returning.
func NewStore(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Store{
		media:     db.Collection(collMedia),
		speakers:  db.Collection(collSpeakers),
		segments:  db.Collection(collSegments),
		subtitles: db.Collection(collSubtitles),
	}, nil
}

// InsertInitial creates the first record for an upload. Assumes the object
// store upload already happened (or is about to, via presigned POST).
func (s *Store) InsertInitial(ctx context.Context, mediaID, s3Key, filename, mediaType string) error {
	now := time.Now().UTC()
	job := MediaJob{
		MediaID:          mediaID,
		S3Key:            s3Key,
		OriginalFilename: filename,
		MediaType:        mediaType,
		Status:           "preparing",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := s.media.InsertOne(ctx, job); err != nil {
		return fmt.Errorf("insert media record: %w", err)
	}
	return nil
}

// GetJob fetches the media record.
func (s *Store) GetJob(ctx context.Context, mediaID string) (*MediaJob, error) {
	var job MediaJob
	err := s.media.FindOne(ctx, bson.M{"_id": mediaID}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find media record: %w", err)
	}
	return &job, nil
}

// UpdateStatus sets the persisted status, optionally the queue task id and
// extra fields, in one write. Returns ErrNotFound when no record matches,
// which the orchestrator relies on for its rollback path.
func (s *Store) UpdateStatus(ctx context.Context, mediaID, status string, jobID string, extra bson.M) error {
	set := bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if jobID != "" {
		set["job_id"] = jobID
	}
	for k, v := range extra {
		set[k] = v
	}

	res := s.media.FindOneAndUpdate(
		ctx,
		bson.M{"_id": mediaID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if errors.Is(res.Err(), mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if res.Err() != nil {
		return fmt.Errorf("update status: %w", res.Err())
	}
	return nil
}

// UpdateJobDetails patches arbitrary debate fields (session, type, schedule)
// on the media record.
func (s *Store) UpdateJobDetails(ctx context.Context, mediaID string, fields bson.M) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	res, err := s.media.UpdateOne(ctx, bson.M{"_id": mediaID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update media details: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertSegment writes one subtitle pass into the segment document keyed by
// (media_id, segment_nr). Segment-level metadata (start, end, speaker) is
// only rewritten when withMeta is set, i.e. for the original-language pass.
func (s *Store) UpsertSegment(ctx context.Context, mediaID string, seg transcript.Segment, statementType string, withMeta bool) error {
	field, err := subtitleField(statementType)
	if err != nil {
		return err
	}

	set := bson.M{
		field:        seg.Subtitles,
		"updated_at": time.Now().UTC(),
	}
	if withMeta {
		set["start"] = seg.Start
		set["end"] = seg.End
		set["speaker_id"] = seg.SpeakerID
	}

	_, err = s.segments.UpdateOne(
		ctx,
		bson.M{"media_id": mediaID, "segment_nr": seg.SegmentNr},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert segment %d: %w", seg.SegmentNr, err)
	}
	return nil
}

// UpdateSubtitles replaces the subtitle list of one existing segment. Unlike
// UpsertSegment this never creates a document; editing a segment that was
// never indexed is an error.
func (s *Store) UpdateSubtitles(ctx context.Context, mediaID string, segmentNr int, statementType string, subtitles []transcript.Subtitle) error {
	field, err := subtitleField(statementType)
	if err != nil {
		return err
	}

	res, err := s.segments.UpdateOne(
		ctx,
		bson.M{"media_id": mediaID, "segment_nr": segmentNr},
		bson.M{"$set": bson.M{
			field:        subtitles,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("update subtitles: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRawSubtitles persists the flat enriched utterance list for one pass,
// for the media player. One document per (media_id, type).
func (s *Store) SaveRawSubtitles(ctx context.Context, mediaID, statementType string, utterances []transcript.Utterance) error {
	_, err := s.subtitles.UpdateOne(
		ctx,
		bson.M{"media_id": mediaID, "type": statementType},
		bson.M{"$set": bson.M{
			"subtitles":  utterances,
			"updated_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save raw subtitles: %w", err)
	}
	return nil
}

// ReplaceSpeakers rewrites the derived speaker set wholesale, with empty
// names and role tags. Used by reindex; manual renames go through
// UpdateSpeakers.
func (s *Store) ReplaceSpeakers(ctx context.Context, mediaID string, speakerIDs []string) error {
	speakers := make([]Speaker, 0, len(speakerIDs))
	for _, id := range speakerIDs {
		speakers = append(speakers, Speaker{SpeakerID: id})
	}

	_, err := s.speakers.UpdateOne(
		ctx,
		bson.M{"media_id": mediaID},
		bson.M{"$set": bson.M{
			"media_id":   mediaID,
			"speakers":   speakers,
			"updated_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replace speakers: %w", err)
	}
	return nil
}

// UpdateSpeakers applies manual speaker renames.
func (s *Store) UpdateSpeakers(ctx context.Context, mediaID string, speakers []Speaker) error {
	res, err := s.speakers.UpdateOne(
		ctx,
		bson.M{"media_id": mediaID},
		bson.M{"$set": bson.M{
			"speakers":   speakers,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("update speakers: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSpeakers returns the speaker list, empty when none was derived yet.
func (s *Store) GetSpeakers(ctx context.Context, mediaID string) ([]Speaker, error) {
	var doc struct {
		Speakers []Speaker `bson:"speakers"`
	}
	err := s.speakers.FindOne(ctx, bson.M{"media_id": mediaID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find speakers: %w", err)
	}
	return doc.Speakers, nil
}

// GetFullMetadata returns the job record with its speakers and segments,
// segments sorted by segment_nr.
func (s *Store) GetFullMetadata(ctx context.Context, mediaID string) (*FullMetadata, error) {
	job, err := s.GetJob(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	speakers, err := s.GetSpeakers(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	cursor, err := s.segments.Find(
		ctx,
		bson.M{"media_id": mediaID},
		options.Find().SetSort(bson.D{{Key: "segment_nr", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find segments: %w", err)
	}
	var segments []SegmentRecord
	if err := cursor.All(ctx, &segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}

	return &FullMetadata{
		Job:      *job,
		Speakers: speakers,
		Segments: segments,
	}, nil
}

// ListMedia returns all media records, newest first.
func (s *Store) ListMedia(ctx context.Context) ([]MediaJob, error) {
	cursor, err := s.media.Find(
		ctx,
		bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	var jobs []MediaJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("decode media list: %w", err)
	}
	return jobs, nil
}

// DeleteAll removes the media record and every related speakers, segments
// and subtitles document. Returns false when no media record existed.
func (s *Store) DeleteAll(ctx context.Context, mediaID string) (bool, error) {
	if _, err := s.speakers.DeleteOne(ctx, bson.M{"media_id": mediaID}); err != nil {
		return false, fmt.Errorf("delete speakers: %w", err)
	}
	if _, err := s.subtitles.DeleteMany(ctx, bson.M{"media_id": mediaID}); err != nil {
		return false, fmt.Errorf("delete subtitles: %w", err)
	}
	if _, err := s.segments.DeleteMany(ctx, bson.M{"media_id": mediaID}); err != nil {
		return false, fmt.Errorf("delete segments: %w", err)
	}

	res, err := s.media.DeleteOne(ctx, bson.M{"_id": mediaID})
	if err != nil {
		return false, fmt.Errorf("delete media record: %w", err)
	}
	if res.DeletedCount == 0 {
		log.Warn("DeleteAll: no media record for %s", mediaID)
		return false, nil
	}
	return true, nil
}

func subtitleField(statementType string) (string, error) {
	switch statementType {
	case transcript.TypeOriginal:
		return "subtitles_original", nil
	case transcript.TypeTranslation:
		return "subtitles_translation", nil
	default:
		return "", fmt.Errorf("unknown statement type: %q", statementType)
	}
}
