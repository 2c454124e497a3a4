package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/atrclient"
	"github.com/forsete/atrdoc/pkg/document"
	"github.com/forsete/atrdoc/pkg/editor"
	"github.com/forsete/atrdoc/pkg/export"
	"github.com/forsete/atrdoc/pkg/gdocai"
	"github.com/forsete/atrdoc/pkg/pdfocr"
	"github.com/forsete/atrdoc/pkg/session"
	"github.com/forsete/atrdoc/pkg/store"
)

var errNoBackend = errors.New("no ATR service configured")

// documentRequest names a document. The field names follow the ATR service.
type documentRequest struct {
	ImageID  string `json:"image_id"`
	OutputID string `json:"id"`
	Index    *int   `json:"index,omitempty"`
	Text     string `json:"text,omitempty"`
	Format   string `json:"format,omitempty"`
}

func (r documentRequest) key() store.Key {
	return store.Key{ImageID: r.ImageID, OutputID: r.OutputID}
}

type lineView struct {
	Index      int         `json:"index"`
	Text       string      `json:"text"`
	Original   string      `json:"original"`
	Edited     bool        `json:"edited"`
	Confidence float64     `json:"confidence"`
	Class      string      `json:"class"`
	Fill       string      `json:"fill"`
	Stroke     string      `json:"stroke"`
	Selected   bool        `json:"selected"`
	Polygon    atr.Polygon `json:"polygon"`
}

type documentView struct {
	ID        string     `json:"id"`
	ImageID   string     `json:"image_id"`
	OutputID  string     `json:"output_id"`
	FileName  string     `json:"file_name"`
	CanRevert bool       `json:"can_revert"`
	Lines     []lineView `json:"lines"`
}

func newDocumentView(doc *document.Manager, surface *editor.Surface) documentView {
	items := surface.Items()
	view := documentView{
		ID:        doc.ID(),
		ImageID:   doc.ImageID(),
		OutputID:  doc.OutputID(),
		FileName:  doc.FileName(),
		CanRevert: surface.CanRevert(),
		Lines:     make([]lineView, len(items)),
	}
	for i, item := range items {
		style := item.Class.Style()
		polygon, _ := doc.Polygon(item.Index)
		view.Lines[i] = lineView{
			Index:      item.Index,
			Text:       item.Text,
			Original:   item.Original,
			Edited:     item.Edited,
			Confidence: item.Confidence,
			Class:      string(item.Class),
			Fill:       style.Fill,
			Stroke:     style.Stroke,
			Selected:   item.Selected,
			Polygon:    polygon,
		}
	}
	return view
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{"status": "ok", "documents": s.sessions.Len()}, http.StatusOK)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		respondError(w, errNoBackend.Error(), http.StatusServiceUnavailable)
		return
	}
	catalog, err := s.backend.Models(r.Context())
	if err != nil {
		s.respondBackendError(w, err)
		return
	}
	type modelView struct {
		atrclient.Model
		ReadableType string `json:"readableType"`
	}
	models := make([]modelView, 0, catalog.Len())
	for _, m := range catalog.All() {
		models = append(models, modelView{Model: m, ReadableType: m.Kind.Readable()})
	}
	respondJSON(w, models, http.StatusOK)
}

// handleOutputData opens a document and returns its lines, with any saved draft applied
func (s *Server) handleOutputData(w http.ResponseWriter, r *http.Request) {
	s.withSurface(w, r, func(req documentRequest, doc *document.Manager, surface *editor.Surface) (any, int, error) {
		return newDocumentView(doc, surface), http.StatusOK, nil
	})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	s.withSurface(w, r, func(req documentRequest, doc *document.Manager, surface *editor.Surface) (any, int, error) {
		if req.Index == nil {
			return nil, http.StatusBadRequest, errors.New("missing index")
		}
		ok, err := surface.Change(r.Context(), *req.Index, req.Text)
		if !ok {
			return nil, http.StatusNotFound, fmt.Errorf("line %d not found", *req.Index)
		}
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}
		return newDocumentView(doc, surface), http.StatusOK, nil
	})
}

// handleFocus selects a line and returns the region to highlight
func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var highlight editor.Highlight
	s.withSurfaceOptions(w, r, editor.Options{OnHighlight: func(h editor.Highlight) { highlight = h }},
		func(req documentRequest, doc *document.Manager, surface *editor.Surface) (any, int, error) {
			if req.Index == nil {
				return nil, http.StatusBadRequest, errors.New("missing index")
			}
			if !surface.Focus(*req.Index) {
				return nil, http.StatusNotFound, fmt.Errorf("line %d not found", *req.Index)
			}
			return map[string]any{
				"index":   highlight.Index,
				"polygon": highlight.Polygon,
				"fill":    highlight.Style.Fill,
				"stroke":  highlight.Style.Stroke,
			}, http.StatusOK, nil
		})
}

// handleRevert reverts one line when an index is given, otherwise every line
func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	s.withSurface(w, r, func(req documentRequest, doc *document.Manager, surface *editor.Surface) (any, int, error) {
		if req.Index != nil {
			ok, err := surface.Reset(r.Context(), *req.Index)
			if !ok {
				return nil, http.StatusNotFound, fmt.Errorf("line %d not found", *req.Index)
			}
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
		} else if err := surface.RevertAll(r.Context()); err != nil {
			return nil, http.StatusInternalServerError, err
		}
		return newDocumentView(doc, surface), http.StatusOK, nil
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAndOpen(w, r)
	if !ok {
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var download *export.Download
	err = s.sessions.With(req.key(), func(doc *document.Manager) error {
		var err error
		download, err = export.Handle(doc.LineSegments(), doc.FileName(), format, s.exportOpts)
		return err
	})
	if err != nil {
		s.logger.Printf("export %s as %s failed: %v", req.key(), format, err)
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", download.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": download.Filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(download.Data)
}

// handleSave reconciles the edits, stores the confirmed result, pushes it to the ATR service
// and drops the draft
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAndOpen(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var confirmed atr.Confirmed
	err := s.sessions.With(req.key(), func(doc *document.Manager) error {
		confirmed = doc.Confirmed()
		if err := s.store.SaveConfirmed(ctx, req.key(), confirmed); err != nil {
			return fmt.Errorf("save confirmed: %w", err)
		}
		if s.backend != nil {
			if _, err := s.backend.PutOutput(ctx, req.ImageID, req.OutputID, confirmed); err != nil {
				return fmt.Errorf("put output: %w", err)
			}
		}
		if err := s.store.DeleteDraft(ctx, req.key()); err != nil {
			return fmt.Errorf("delete draft: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Printf("save %s failed: %v", req.key(), err)
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, confirmed, http.StatusOK)
}

// handleTranscribe sends an uploaded image to the ATR service, or to Document AI when
// engine=gdocai is given
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	data, filename, mimeType, err := readUpload(r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.FormValue("engine") == "gdocai" {
		if err := s.documentAI.Validate(); err != nil {
			respondError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		results, err := gdocai.Transcribe(r.Context(), data, mimeType, filename, s.documentAI)
		if err != nil {
			respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, results, http.StatusOK)
		return
	}

	if s.backend == nil {
		respondError(w, errNoBackend.Error(), http.StatusServiceUnavailable)
		return
	}
	out, err := s.backend.UploadAndTranscribe(r.Context(), data, filename, mimeType)
	if err != nil {
		s.respondBackendError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// handleSearchable builds a searchable PDF of a document. The page comes from an uploaded
// file, or from the ATR service when none is uploaded. Images become a new PDF; a PDF gets
// the text layer on its first page.
func (s *Server) handleSearchable(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	req := documentRequest{ImageID: r.FormValue("image_id"), OutputID: r.FormValue("id")}
	if req.ImageID == "" || req.OutputID == "" {
		respondError(w, "Missing image_id or id", http.StatusBadRequest)
		return
	}
	if err := s.open(r.Context(), req.key()); err != nil {
		s.respondBackendError(w, err)
		return
	}

	data, _, mimeType, err := readUpload(r)
	if errors.Is(err, http.ErrMissingFile) && s.backend != nil {
		data, mimeType, err = s.backend.ImageData(r.Context(), req.ImageID)
	}
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var pdf []byte
	var fileName string
	err = s.sessions.With(req.key(), func(doc *document.Manager) error {
		var err error
		fileName = doc.FileName()
		cfg := s.pdfConfig
		if cfg.LayerName == "" {
			cfg = pdfocr.DefaultConfig()
			cfg.Logger = s.logger.Writer()
		}
		if strings.HasPrefix(mimeType, "application/pdf") {
			pdf, err = pdfocr.ApplyOCR(data, doc.LineSegments(), cfg)
		} else {
			pdf, err = pdfocr.AssembleWithOCR(doc.LineSegments(), data, cfg)
		}
		return err
	})
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName + "-searchable.pdf"}))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

type surfaceFunc func(req documentRequest, doc *document.Manager, surface *editor.Surface) (any, int, error)

func (s *Server) withSurface(w http.ResponseWriter, r *http.Request, fn surfaceFunc) {
	s.withSurfaceOptions(w, r, editor.Options{}, fn)
}

// withSurfaceOptions opens the requested document and runs fn on an editor surface over it
// while holding the document's session lock
func (s *Server) withSurfaceOptions(w http.ResponseWriter, r *http.Request, opts editor.Options, fn surfaceFunc) {
	req, ok := s.decodeAndOpen(w, r)
	if !ok {
		return
	}
	opts.Drafts = s.store

	var (
		body   any
		status int
	)
	err := s.sessions.With(req.key(), func(doc *document.Manager) error {
		surface, err := editor.New(r.Context(), doc, opts)
		if err != nil {
			status = http.StatusInternalServerError
			return err
		}
		body, status, err = fn(req, doc, surface)
		return err
	})
	if errors.Is(err, session.ErrNoSession) {
		status = http.StatusNotFound
	}
	if err != nil {
		respondError(w, err.Error(), status)
		return
	}
	respondJSON(w, body, status)
}

// decodeAndOpen reads a documentRequest and opens its document
func (s *Server) decodeAndOpen(w http.ResponseWriter, r *http.Request) (documentRequest, bool) {
	var req documentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxUploadSize)).Decode(&req); err != nil {
		respondError(w, "Invalid JSON body", http.StatusBadRequest)
		return req, false
	}
	if req.ImageID == "" || req.OutputID == "" {
		respondError(w, "Missing image_id or id", http.StatusBadRequest)
		return req, false
	}
	if err := s.open(r.Context(), req.key()); err != nil {
		s.respondBackendError(w, err)
		return req, false
	}
	return req, true
}

func (s *Server) respondBackendError(w http.ResponseWriter, err error) {
	var statusErr *atrclient.StatusError
	switch {
	case errors.Is(err, atrclient.ErrUnauthorized):
		respondError(w, "Unauthorized", http.StatusUnauthorized)
	case errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound:
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errNoBackend):
		respondError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.logger.Printf("ATR service error: %v", err)
		respondError(w, err.Error(), http.StatusBadGateway)
	}
}

// readUpload reads the "file" part of a multipart request
func readUpload(r *http.Request) ([]byte, string, string, error) {
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, "", "", fmt.Errorf("failed to parse form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read file: %w", err)
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mime.TypeByExtension(path.Ext(header.Filename))
	}
	return data, header.Filename, mimeType, nil
}
