package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sdsc-ordes/debates-analytics/internal/metadata"
	"github.com/sdsc-ordes/debates-analytics/internal/pipeline"
	"github.com/sdsc-ordes/debates-analytics/internal/search"
	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

type presignUploadRequest struct {
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
}

type presignUploadResponse struct {
	MediaID string            `json:"media_id"`
	S3Key   string            `json:"s3_key"`
	URL     string            `json:"url"`
	Fields  map[string]string `json:"fields"`
}

// handlePresignUpload reserves a media id, records the initial job and hands
// the browser a presigned POST so the upload goes straight to the object
// store.
func (s *Server) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	var req presignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if req.MediaType == "" {
		req.MediaType = "video"
	}
	if req.MediaType != "video" && req.MediaType != "audio" {
		writeError(w, http.StatusBadRequest, "media_type must be video or audio")
		return
	}

	mediaID := uuid.NewString()
	key := pipeline.SourceKey(mediaID, req.Filename)

	if err := s.meta.InsertInitial(r.Context(), mediaID, key, req.Filename, req.MediaType); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	post, err := s.store.PresignPost(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, presignUploadResponse{
		MediaID: mediaID,
		S3Key:   key,
		URL:     post.URL,
		Fields:  post.Fields,
	})
}

type processRequest struct {
	MediaID string `json:"media_id"`
	S3Key   string `json:"s3_key"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.MediaID == "" {
		writeError(w, http.StatusBadRequest, "media_id is required")
		return
	}

	s3Key := req.S3Key
	if s3Key == "" {
		job, err := s.meta.GetJob(r.Context(), req.MediaID)
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, http.StatusNotFound, "media not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s3Key = job.S3Key
	}

	jobID, err := s.pipeline.StartProcessing(r.Context(), req.MediaID, s3Key)
	if errors.Is(err, metadata.ErrNotFound) {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"media_id": req.MediaID,
		"job_id":   jobID,
	})
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	media, err := s.meta.ListMedia(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, media)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	job, err := s.meta.GetJob(r.Context(), mediaID)
	if errors.Is(err, metadata.ErrNotFound) {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"media_id":      job.MediaID,
		"status":        job.Status,
		"job_id":        job.JobID,
		"error_message": job.ErrorMessage,
		"updated_at":    job.UpdatedAt,
	}
	// Live broker state is best-effort: an expired or already-consumed task
	// must not break status polling.
	if job.JobID != "" {
		if state, err := s.tasks.TaskState(r.Context(), job.JobID); err == nil {
			resp["task_state"] = state.State
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSignedURLs returns one time-limited download URL per stored object
// of the media item, keyed by object name.
func (s *Server) handleSignedURLs(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	if _, err := s.meta.GetJob(r.Context(), mediaID); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, http.StatusNotFound, "media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	keys, err := s.store.ListByPrefix(r.Context(), pipeline.MediaPrefix(mediaID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	urls := make(map[string]string, len(keys))
	for _, key := range keys {
		signed, err := s.store.PresignGet(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		urls[key] = signed
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"media_id": mediaID,
		"urls":     urls,
	})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	full, err := s.meta.GetFullMetadata(r.Context(), mediaID)
	if errors.Is(err, metadata.ErrNotFound) {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, full)
}

type updateDetailsRequest struct {
	Session  string `json:"session"`
	Type     string `json:"type"`
	Schedule string `json:"schedule"`
}

// handleUpdateDetails edits the debate metadata on the record and pushes the
// change into the search index so facets stay consistent.
func (s *Server) handleUpdateDetails(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	var req updateDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	fields := bson.M{}
	details := map[string]string{}
	if req.Session != "" {
		fields["debate_session"] = req.Session
		details["session"] = req.Session
	}
	if req.Type != "" {
		fields["debate_type"] = req.Type
		details["type"] = req.Type
	}
	if req.Schedule != "" {
		fields["debate_schedule"] = req.Schedule
		details["schedule"] = req.Schedule
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if err := s.meta.UpdateJobDetails(r.Context(), mediaID, fields); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, http.StatusNotFound, "media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.index.UpdateDebateDetails(r.Context(), mediaID, details); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type updateSpeakersRequest struct {
	Speakers []metadata.Speaker `json:"speakers"`
}

func (s *Server) handleUpdateSpeakers(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	var req updateSpeakersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Speakers) == 0 {
		writeError(w, http.StatusBadRequest, "speakers are required")
		return
	}
	for _, speaker := range req.Speakers {
		if speaker.SpeakerID == "" {
			writeError(w, http.StatusBadRequest, "speaker_id is required")
			return
		}
	}

	if err := s.meta.UpdateSpeakers(r.Context(), mediaID, req.Speakers); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, http.StatusNotFound, "media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for _, speaker := range req.Speakers {
		err := s.index.UpdateSpeaker(r.Context(), mediaID, speaker.SpeakerID, speaker.Name, speaker.RoleTag)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type updateSubtitlesRequest struct {
	StatementType string                `json:"statement_type"`
	Subtitles     []transcript.Subtitle `json:"subtitles"`
}

func (s *Server) handleUpdateSubtitles(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	segmentNr, err := strconv.Atoi(chi.URLParam(r, "segmentNr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid segment number")
		return
	}

	var req updateSubtitlesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.StatementType != transcript.TypeOriginal && req.StatementType != transcript.TypeTranslation {
		writeError(w, http.StatusBadRequest, "statement_type must be original or translation")
		return
	}
	if len(req.Subtitles) == 0 {
		writeError(w, http.StatusBadRequest, "subtitles are required")
		return
	}

	err = s.meta.UpdateSubtitles(r.Context(), mediaID, segmentNr, req.StatementType, req.Subtitles)
	if errors.Is(err, metadata.ErrNotFound) {
		writeError(w, http.StatusNotFound, "segment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.index.UpdateSegment(r.Context(), mediaID, segmentNr, req.StatementType, req.Subtitles); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query search.Query
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := s.index.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	result, err := s.cleaner.Delete(r.Context(), mediaID)
	if errors.Is(err, metadata.ErrNotFound) {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	jobID, err := s.pipeline.TriggerReindex(r.Context(), mediaID)
	if errors.Is(err, metadata.ErrNotFound) {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info("Manual reindex of %s queued as %s", mediaID, jobID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"media_id": mediaID,
		"job_id":   jobID,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
