// Package server exposes the document editing and export API over HTTP.
//
// Documents are opened on first use from the ATR service and kept in a session registry
// keyed by image and output id, so concurrent requests for the same document run one at a
// time. Edits are written through the editor surface, which keeps a draft in the store
// until the document is saved or reverted.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/atrclient"
	"github.com/forsete/atrdoc/pkg/document"
	"github.com/forsete/atrdoc/pkg/export"
	"github.com/forsete/atrdoc/pkg/gdocai"
	"github.com/forsete/atrdoc/pkg/lineseg"
	"github.com/forsete/atrdoc/pkg/pdfocr"
	"github.com/forsete/atrdoc/pkg/session"
	"github.com/forsete/atrdoc/pkg/store"
)

// MaxUploadSize limits uploaded files (32 MB)
const MaxUploadSize = 32 << 20

// Backend is the part of the ATR service the server uses. *atrclient.Client implements it.
type Backend interface {
	OutputData(ctx context.Context, imageID, outputID string) (*atr.Result, error)
	PutOutput(ctx context.Context, imageID, outputID string, confirmed atr.Confirmed) (json.RawMessage, error)
	UploadAndTranscribe(ctx context.Context, data []byte, filename, mimeType string) (json.RawMessage, error)
	ImageData(ctx context.Context, imageID string) ([]byte, string, error)
	Models(ctx context.Context) (*atrclient.Catalog, error)
}

// Options configures a Server
type Options struct {
	Backend    Backend          // ATR service
	Store      store.Store      // Drafts and confirmed results
	DocumentAI *gdocai.Config   // Optional Document AI transcription
	Export     export.Options   // Export renderer settings
	PDFOCR     pdfocr.Config    // Searchable PDF settings
	Logger     *log.Logger      // Request log (nil = log.Default())
	Clock      func() time.Time // Time source for documents (nil = time.Now)
}

// Server handles the HTTP API
type Server struct {
	backend    Backend
	store      store.Store
	documentAI *gdocai.Config
	exportOpts export.Options
	pdfConfig  pdfocr.Config
	logger     *log.Logger
	clock      func() time.Time
	sessions   *session.Registry
}

// New creates a Server
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	st := opts.Store
	if st == nil {
		st = store.NewMemory()
	}
	return &Server{
		backend:    opts.Backend,
		store:      st,
		documentAI: opts.DocumentAI,
		exportOpts: opts.Export,
		pdfConfig:  opts.PDFOCR,
		logger:     logger,
		clock:      opts.Clock,
		sessions:   session.NewRegistry(),
	}
}

// Handler returns the routes of the API wrapped in logging and CORS middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("POST /api/outputdata", s.handleOutputData)
	mux.HandleFunc("POST /api/edit", s.handleEdit)
	mux.HandleFunc("POST /api/focus", s.handleFocus)
	mux.HandleFunc("POST /api/revert", s.handleRevert)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("POST /api/save", s.handleSave)
	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /api/searchable", s.handleSearchable)
	return s.logRequests(corsMiddleware(mux))
}

// Sessions returns the registry of open documents
func (s *Server) Sessions() *session.Registry {
	return s.sessions
}

// open makes sure the document for key is open, fetching it from the ATR service if needed
func (s *Server) open(ctx context.Context, key store.Key) error {
	_, err := s.sessions.Open(ctx, key, func(ctx context.Context) (*document.Manager, error) {
		if s.backend == nil {
			return nil, errNoBackend
		}
		result, err := s.backend.OutputData(ctx, key.ImageID, key.OutputID)
		if err != nil {
			return nil, err
		}
		return document.New(result, document.Options{
			ImageID:  key.ImageID,
			OutputID: key.OutputID,
			Index:    lineseg.IndexOptions{LogWarnings: true, Logger: s.logger.Writer()},
			Clock:    s.clock,
		}), nil
	})
	return err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Printf("%s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
