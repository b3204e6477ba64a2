package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/internal/metadata"
	"github.com/sdsc-ordes/debates-analytics/internal/pipeline"
	"github.com/sdsc-ordes/debates-analytics/internal/search"
	"github.com/sdsc-ordes/debates-analytics/internal/storage"
	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
)

// The server talks to its collaborators through narrow interfaces so the
// handlers can be tested without Mongo, S3 or Solr behind them.

type ObjectStore interface {
	PresignPost(ctx context.Context, key string) (*storage.PresignedPost, error)
	PresignGet(ctx context.Context, key string) (string, error)
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}

type MetadataStore interface {
	InsertInitial(ctx context.Context, mediaID, s3Key, filename, mediaType string) error
	GetJob(ctx context.Context, mediaID string) (*metadata.MediaJob, error)
	ListMedia(ctx context.Context) ([]metadata.MediaJob, error)
	GetFullMetadata(ctx context.Context, mediaID string) (*metadata.FullMetadata, error)
	UpdateSpeakers(ctx context.Context, mediaID string, speakers []metadata.Speaker) error
	UpdateSubtitles(ctx context.Context, mediaID string, segmentNr int, statementType string, subtitles []transcript.Subtitle) error
	UpdateJobDetails(ctx context.Context, mediaID string, fields bson.M) error
}

type SearchIndex interface {
	Search(ctx context.Context, query search.Query) (*search.Result, error)
	UpdateSegment(ctx context.Context, mediaID string, segmentNr int, statementType string, subtitles []transcript.Subtitle) error
	UpdateSpeaker(ctx context.Context, mediaID, speakerID, name, roleTag string) error
	UpdateDebateDetails(ctx context.Context, mediaID string, details map[string]string) error
}

type Pipeline interface {
	StartProcessing(ctx context.Context, mediaID, s3Key string) (string, error)
	TriggerReindex(ctx context.Context, mediaID string) (string, error)
}

// TaskInspector looks up the live broker-side state of a queued task.
type TaskInspector interface {
	TaskState(ctx context.Context, taskID string) (*broker.TaskStatus, error)
}

type Cleaner interface {
	Delete(ctx context.Context, mediaID string) (*pipeline.DeleteResult, error)
}

type Server struct {
	store    ObjectStore
	meta     MetadataStore
	index    SearchIndex
	pipeline Pipeline
	cleaner  Cleaner
	tasks    TaskInspector

	router *chi.Mux
	server *http.Server
}

func NewServer(store ObjectStore, meta MetadataStore, index SearchIndex, pipe Pipeline, cleaner Cleaner, tasks TaskInspector) *Server {
	s := &Server{
		store:    store,
		meta:     meta,
		index:    index,
		pipeline: pipe,
		cleaner:  cleaner,
		tasks:    tasks,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/upload/presign", s.handlePresignUpload)
		r.Post("/process", s.handleProcess)
		r.Post("/search", s.handleSearch)

		r.Route("/media", func(r chi.Router) {
			r.Get("/", s.handleListMedia)
			r.Route("/{mediaID}", func(r chi.Router) {
				r.Get("/status", s.handleStatus)
				r.Get("/urls", s.handleSignedURLs)
				r.Get("/metadata", s.handleMetadata)
				r.Put("/details", s.handleUpdateDetails)
				r.Put("/speakers", s.handleUpdateSpeakers)
				r.Put("/segments/{segmentNr}/subtitles", s.handleUpdateSubtitles)
			})
		})

		r.Route("/admin/media/{mediaID}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteMedia)
			r.Post("/reindex", s.handleReindex)
		})
	})
}
