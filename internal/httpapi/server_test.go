package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/internal/metadata"
	"github.com/sdsc-ordes/debates-analytics/internal/pipeline"
	"github.com/sdsc-ordes/debates-analytics/internal/search"
	"github.com/sdsc-ordes/debates-analytics/internal/storage"
	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
)

type apiStore struct {
	keys       []string
	presignErr error
}

func (s *apiStore) PresignPost(_ context.Context, key string) (*storage.PresignedPost, error) {
	if s.presignErr != nil {
		return nil, s.presignErr
	}
	return &storage.PresignedPost{
		URL:    "http://s3.local/bucket",
		Fields: map[string]string{"key": key},
	}, nil
}

func (s *apiStore) PresignGet(_ context.Context, key string) (string, error) {
	return "http://s3.local/bucket/" + key + "?signed", nil
}

func (s *apiStore) ListByPrefix(_ context.Context, _ string) ([]string, error) {
	return s.keys, nil
}

type apiMeta struct {
	jobs     map[string]*metadata.MediaJob
	inserted []string
	speakers []metadata.Speaker
	details  bson.M
	subs     []transcript.Subtitle
	subErr   error
}

func newAPIMeta(jobs ...*metadata.MediaJob) *apiMeta {
	m := &apiMeta{jobs: make(map[string]*metadata.MediaJob)}
	for _, job := range jobs {
		m.jobs[job.MediaID] = job
	}
	return m
}

func (m *apiMeta) InsertInitial(_ context.Context, mediaID, s3Key, filename, mediaType string) error {
	m.inserted = append(m.inserted, mediaID)
	m.jobs[mediaID] = &metadata.MediaJob{
		MediaID:          mediaID,
		S3Key:            s3Key,
		OriginalFilename: filename,
		MediaType:        mediaType,
		Status:           "preparing",
	}
	return nil
}

func (m *apiMeta) GetJob(_ context.Context, mediaID string) (*metadata.MediaJob, error) {
	job, ok := m.jobs[mediaID]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return job, nil
}

func (m *apiMeta) ListMedia(_ context.Context) ([]metadata.MediaJob, error) {
	var media []metadata.MediaJob
	for _, job := range m.jobs {
		media = append(media, *job)
	}
	return media, nil
}

func (m *apiMeta) GetFullMetadata(_ context.Context, mediaID string) (*metadata.FullMetadata, error) {
	job, ok := m.jobs[mediaID]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return &metadata.FullMetadata{Job: *job}, nil
}

func (m *apiMeta) UpdateSpeakers(_ context.Context, mediaID string, speakers []metadata.Speaker) error {
	if _, ok := m.jobs[mediaID]; !ok {
		return metadata.ErrNotFound
	}
	m.speakers = speakers
	return nil
}

func (m *apiMeta) UpdateSubtitles(_ context.Context, mediaID string, _ int, _ string, subtitles []transcript.Subtitle) error {
	if m.subErr != nil {
		return m.subErr
	}
	if _, ok := m.jobs[mediaID]; !ok {
		return metadata.ErrNotFound
	}
	m.subs = subtitles
	return nil
}

func (m *apiMeta) UpdateJobDetails(_ context.Context, mediaID string, fields bson.M) error {
	if _, ok := m.jobs[mediaID]; !ok {
		return metadata.ErrNotFound
	}
	m.details = fields
	return nil
}

type apiIndex struct {
	searched   *search.Query
	segments   int
	speakers   []string
	details    map[string]string
	updateErr  error
	lastResult *search.Result
}

func (i *apiIndex) Search(_ context.Context, query search.Query) (*search.Result, error) {
	i.searched = &query
	if i.lastResult == nil {
		i.lastResult = &search.Result{Docs: []search.Document{}, Total: 0}
	}
	return i.lastResult, nil
}

func (i *apiIndex) UpdateSegment(_ context.Context, _ string, _ int, _ string, _ []transcript.Subtitle) error {
	if i.updateErr != nil {
		return i.updateErr
	}
	i.segments++
	return nil
}

func (i *apiIndex) UpdateSpeaker(_ context.Context, _ string, speakerID, _, _ string) error {
	if i.updateErr != nil {
		return i.updateErr
	}
	i.speakers = append(i.speakers, speakerID)
	return nil
}

func (i *apiIndex) UpdateDebateDetails(_ context.Context, _ string, details map[string]string) error {
	i.details = details
	return nil
}

type apiPipeline struct {
	startErr   error
	reindexErr error
	started    []string
	reindexed  []string
}

func (p *apiPipeline) StartProcessing(_ context.Context, mediaID, _ string) (string, error) {
	if p.startErr != nil {
		return "", p.startErr
	}
	p.started = append(p.started, mediaID)
	return "task-1", nil
}

func (p *apiPipeline) TriggerReindex(_ context.Context, mediaID string) (string, error) {
	if p.reindexErr != nil {
		return "", p.reindexErr
	}
	p.reindexed = append(p.reindexed, mediaID)
	return "task-2", nil
}

type apiCleaner struct {
	result *pipeline.DeleteResult
	err    error
}

func (c *apiCleaner) Delete(_ context.Context, _ string) (*pipeline.DeleteResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type apiInspector struct {
	state string
	err   error
}

func (i *apiInspector) TaskState(_ context.Context, _ string) (*broker.TaskStatus, error) {
	if i.err != nil {
		return nil, i.err
	}
	return &broker.TaskStatus{State: i.state}, nil
}

type fixture struct {
	store    *apiStore
	meta     *apiMeta
	index    *apiIndex
	pipeline *apiPipeline
	cleaner  *apiCleaner
	tasks    *apiInspector
	server   *Server
}

func newFixture(jobs ...*metadata.MediaJob) *fixture {
	f := &fixture{
		store:    &apiStore{},
		meta:     newAPIMeta(jobs...),
		index:    &apiIndex{},
		pipeline: &apiPipeline{},
		cleaner:  &apiCleaner{result: &pipeline.DeleteResult{Status: pipeline.DeleteComplete}},
		tasks:    &apiInspector{state: "active"},
	}
	f.server = NewServer(f.store, f.meta, f.index, f.pipeline, f.cleaner, f.tasks)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestPresignUpload(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/upload/presign", map[string]string{
		"filename": "debate.mp4",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[presignUploadResponse](t, rec)
	assert.NotEmpty(t, resp.MediaID)
	assert.Equal(t, resp.MediaID+"/source.mp4", resp.S3Key)
	assert.Equal(t, "http://s3.local/bucket", resp.URL)

	// The record exists before the browser ever uploads a byte.
	require.Len(t, f.meta.inserted, 1)
	assert.Equal(t, resp.MediaID, f.meta.inserted[0])
}

func TestPresignUpload_Validation(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/upload/presign", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/upload/presign", map[string]string{
		"filename":   "x.mp4",
		"media_type": "hologram",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcess(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1", S3Key: "m1/source.mp4", Status: "preparing"})

	rec := f.do(t, http.MethodPost, "/api/process", map[string]string{"media_id": "m1"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"m1"}, f.pipeline.started)

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "task-1", resp["job_id"])
}

func TestProcess_UnknownMedia(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/process", map[string]string{"media_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcess_RollbackSurfacesNotFound(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1", S3Key: "m1/source.mp4"})
	f.pipeline.startErr = metadata.ErrNotFound

	rec := f.do(t, http.MethodPost, "/api/process", map[string]string{"media_id": "m1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1", Status: "transcribing_started", JobID: "task-9"})

	rec := f.do(t, http.MethodGet, "/api/media/m1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "transcribing_started", resp["status"])
	assert.Equal(t, "task-9", resp["job_id"])
	assert.Equal(t, "active", resp["task_state"])

	rec = f.do(t, http.MethodGet, "/api/media/ghost/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus_BrokerOutageIsTolerated(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1", Status: "queued", JobID: "task-9"})
	f.tasks.err = assert.AnError

	rec := f.do(t, http.MethodGet, "/api/media/m1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "queued", resp["status"])
	assert.NotContains(t, resp, "task_state")
}

func TestSignedURLs(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1"})
	f.store.keys = []string{"m1/source.mp4", "m1/audio.wav"}

	rec := f.do(t, http.MethodGet, "/api/media/m1/urls", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[struct {
		URLs map[string]string `json:"urls"`
	}](t, rec)
	assert.Len(t, resp.URLs, 2)
	assert.Contains(t, resp.URLs["m1/audio.wav"], "?signed")
}

func TestMetadata(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1", Status: "indexing_completed"})

	rec := f.do(t, http.MethodGet, "/api/media/m1/metadata", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[metadata.FullMetadata](t, rec)
	assert.Equal(t, "m1", resp.Job.MediaID)

	rec = f.do(t, http.MethodGet, "/api/media/ghost/metadata", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateDetails_PropagatesToIndex(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1"})

	rec := f.do(t, http.MethodPut, "/api/media/m1/details", map[string]string{
		"session":  "5521",
		"schedule": "2024-03-01T09:00:00",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "5521", f.meta.details["debate_session"])
	assert.Equal(t, "5521", f.index.details["session"])
	assert.Equal(t, "2024-03-01T09:00:00", f.index.details["schedule"])
	assert.NotContains(t, f.meta.details, "debate_type")
}

func TestUpdateDetails_EmptyBodyRejected(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1"})
	rec := f.do(t, http.MethodPut, "/api/media/m1/details", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSpeakers(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1"})

	rec := f.do(t, http.MethodPut, "/api/media/m1/speakers", map[string]any{
		"speakers": []metadata.Speaker{
			{SpeakerID: "SPEAKER_00", Name: "A. Keller", RoleTag: "council"},
			{SpeakerID: "SPEAKER_01", Name: "B. Favre"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.meta.speakers, 2)
	assert.Equal(t, []string{"SPEAKER_00", "SPEAKER_01"}, f.index.speakers)
}

func TestUpdateSpeakers_RequiresID(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1"})

	rec := f.do(t, http.MethodPut, "/api/media/m1/speakers", map[string]any{
		"speakers": []metadata.Speaker{{Name: "No ID"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.meta.speakers)
}

func TestUpdateSubtitles(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1"})

	rec := f.do(t, http.MethodPut, "/api/media/m1/segments/3/subtitles", map[string]any{
		"statement_type": "original",
		"subtitles": []transcript.Subtitle{
			{Start: 0, End: 2, Text: "corrected text"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.index.segments)
	require.Len(t, f.meta.subs, 1)
	assert.Equal(t, "corrected text", f.meta.subs[0].Text)
}

func TestUpdateSubtitles_Validation(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1"})

	rec := f.do(t, http.MethodPut, "/api/media/m1/segments/nope/subtitles", map[string]any{
		"statement_type": "original",
		"subtitles":      []transcript.Subtitle{{Text: "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/media/m1/segments/1/subtitles", map[string]any{
		"statement_type": "rewrite",
		"subtitles":      []transcript.Subtitle{{Text: "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.meta.subErr = metadata.ErrNotFound
	rec = f.do(t, http.MethodPut, "/api/media/m1/segments/99/subtitles", map[string]any{
		"statement_type": "original",
		"subtitles":      []transcript.Subtitle{{Text: "x"}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture()
	f.index.lastResult = &search.Result{Total: 2, Docs: []search.Document{
		{ID: "m1_0_original"}, {ID: "m1_1_original"},
	}}

	rec := f.do(t, http.MethodPost, "/api/search", search.Query{
		QueryTerm:   "climate",
		FacetFields: []string{"speaker_name"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, f.index.searched)
	assert.Equal(t, "climate", f.index.searched.QueryTerm)

	resp := decodeBody[search.Result](t, rec)
	assert.Equal(t, 2, resp.Total)
}

func TestDeleteMedia(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1"})
	f.cleaner.result = &pipeline.DeleteResult{
		Status:   pipeline.DeletePartial,
		Warnings: []string{"search index: solr 503"},
	}

	rec := f.do(t, http.MethodDelete, "/api/admin/media/m1/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[pipeline.DeleteResult](t, rec)
	assert.Equal(t, pipeline.DeletePartial, resp.Status)
	require.Len(t, resp.Warnings, 1)
}

func TestDeleteMedia_NotFound(t *testing.T) {
	f := newFixture()
	f.cleaner.err = metadata.ErrNotFound

	rec := f.do(t, http.MethodDelete, "/api/admin/media/ghost/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReindex(t *testing.T) {
	f := newFixture(&metadata.MediaJob{MediaID: "m1"})

	rec := f.do(t, http.MethodPost, "/api/admin/media/m1/reindex", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"m1"}, f.pipeline.reindexed)

	f.pipeline.reindexErr = metadata.ErrNotFound
	rec = f.do(t, http.MethodPost, "/api/admin/media/ghost/reindex", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
