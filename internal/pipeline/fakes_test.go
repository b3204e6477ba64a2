package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sdsc-ordes/debates-analytics/internal/asr"
	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/internal/metadata"
	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
)

// In-memory collaborators for the pipeline tests. They keep just enough
// behavior to exercise the orchestration contracts: unknown media ids
// surface metadata.ErrNotFound, status updates mutate the stored job, and
// every call is recorded for assertions.

type fakeMeta struct {
	mu   sync.Mutex
	jobs map[string]*metadata.MediaJob

	statusErr   error
	statuses    []string
	extras      []bson.M
	segments    []string
	rawSaved    []string
	speakerSets [][]string

	deleteErr   error
	deleteFound bool
	deleted     []string
}

func newFakeMeta(jobs ...*metadata.MediaJob) *fakeMeta {
	m := &fakeMeta{jobs: make(map[string]*metadata.MediaJob), deleteFound: true}
	for _, job := range jobs {
		m.jobs[job.MediaID] = job
	}
	return m
}

func (m *fakeMeta) GetJob(_ context.Context, mediaID string) (*metadata.MediaJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[mediaID]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *fakeMeta) UpdateStatus(_ context.Context, mediaID, status, jobID string, extra bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return m.statusErr
	}
	job, ok := m.jobs[mediaID]
	if !ok {
		return metadata.ErrNotFound
	}
	job.Status = status
	if jobID != "" {
		job.JobID = jobID
	}
	if msg, ok := extra["error_message"].(string); ok {
		job.ErrorMessage = msg
	}
	m.statuses = append(m.statuses, status)
	m.extras = append(m.extras, extra)
	return nil
}

func (m *fakeMeta) UpsertSegment(_ context.Context, mediaID string, seg transcript.Segment, statementType string, withMeta bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = append(m.segments, fmt.Sprintf("%s/%d/%s/meta=%t", mediaID, seg.SegmentNr, statementType, withMeta))
	return nil
}

func (m *fakeMeta) SaveRawSubtitles(_ context.Context, mediaID, statementType string, _ []transcript.Utterance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawSaved = append(m.rawSaved, mediaID+"/"+statementType)
	return nil
}

func (m *fakeMeta) ReplaceSpeakers(_ context.Context, _ string, speakerIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speakerSets = append(m.speakerSets, speakerIDs)
	return nil
}

func (m *fakeMeta) DeleteAll(_ context.Context, mediaID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	m.deleted = append(m.deleted, mediaID)
	return m.deleteFound, nil
}

type enqueuedTask struct {
	id      string
	stage   string
	payload broker.Payload
}

type fakeQueue struct {
	mu         sync.Mutex
	next       int
	enqueued   []enqueuedTask
	cancelled  []string
	enqueueErr error
	cancelErr  error
}

func (q *fakeQueue) Enqueue(_ context.Context, stage string, payload broker.Payload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}
	q.next++
	id := fmt.Sprintf("task-%d", q.next)
	q.enqueued = append(q.enqueued, enqueuedTask{id: id, stage: stage, payload: payload})
	return id, nil
}

func (q *fakeQueue) Cancel(_ context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelErr != nil {
		return q.cancelErr
	}
	q.cancelled = append(q.cancelled, taskID)
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	objects  map[string]string
	uploads  []string
	deleted  []string
	getErr   error
	delErr   error
	download error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]string)}
}

func (s *fakeStore) Upload(_ context.Context, localPath, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.objects[key] = string(data)
	s.uploads = append(s.uploads, key)
	return nil
}

func (s *fakeStore) Download(_ context.Context, key, localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.download != nil {
		return s.download
	}
	content, ok := s.objects[key]
	if !ok {
		return fmt.Errorf("no such key %s", key)
	}
	return os.WriteFile(localPath, []byte(content), 0o644)
}

func (s *fakeStore) GetText(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.objects[key], nil
}

func (s *fakeStore) ListByPrefix(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *fakeStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
		}
	}
	s.deleted = append(s.deleted, prefix)
	return nil
}

type fakeIndex struct {
	mu        sync.Mutex
	added     [][]any
	deletes   []string
	details   []map[string]string
	addErr    error
	deleteErr error
}

func (i *fakeIndex) Add(_ context.Context, docs []any) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.addErr != nil {
		return i.addErr
	}
	i.added = append(i.added, docs)
	return nil
}

func (i *fakeIndex) DeleteByMedia(_ context.Context, mediaID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.deleteErr != nil {
		return i.deleteErr
	}
	i.deletes = append(i.deletes, mediaID)
	return nil
}

func (i *fakeIndex) UpdateDebateDetails(_ context.Context, _ string, details map[string]string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.details = append(i.details, details)
	return nil
}

// docIDs flattens the ids of every indexed document, in add order.
func (i *fakeIndex) docIDs() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	var ids []string
	for _, batch := range i.added {
		for _, doc := range batch {
			if d, ok := doc.(transcript.SearchDocument); ok {
				ids = append(ids, d.ID)
			}
		}
	}
	return ids
}

type fakeTranscoder struct {
	err   error
	calls []string
}

func (t *fakeTranscoder) ExtractAudio(_ context.Context, inputPath, outputPath string) error {
	if t.err != nil {
		return t.err
	}
	t.calls = append(t.calls, inputPath)
	return os.WriteFile(outputPath, []byte("RIFFwav"), 0o644)
}

type fakeASR struct {
	err error
}

func (a *fakeASR) Run(_ context.Context, _ string, task, destDir string) (*asr.Artifacts, error) {
	if a.err != nil {
		return nil, a.err
	}
	srt := filepath.Join(destDir, "subtitles-"+task+".srt")
	jsonFile := filepath.Join(destDir, "subtitles-"+task+".json")
	for _, path := range []string{srt, jsonFile} {
		if err := os.WriteFile(path, []byte(task), 0o644); err != nil {
			return nil, err
		}
	}
	return &asr.Artifacts{SRT: srt, JSON: jsonFile}, nil
}
