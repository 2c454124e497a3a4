package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/atrclient"
	"github.com/forsete/atrdoc/pkg/export"
	"github.com/forsete/atrdoc/pkg/store"
)

const sampleOutput = `{
  "file_name": "letter.jpg",
  "contains": [
    {
      "segment": {"bbox": {"xmin": 10, "ymin": 10, "xmax": 190, "ymax": 30},
        "polygon": {"points": [{"x": 10, "y": 10}, {"x": 190, "y": 10}, {"x": 190, "y": 30}, {"x": 10, "y": 30}]}},
      "text_result": {"texts": ["Dear sir"], "scores": [0.95]}
    },
    {
      "segment": {"bbox": {"xmin": 10, "ymin": 40, "xmax": 190, "ymax": 60},
        "polygon": {"points": [{"x": 10, "y": 40}, {"x": 190, "y": 40}, {"x": 190, "y": 60}, {"x": 10, "y": 60}]}},
      "text_result": {"texts": ["yours truely"], "scores": [0.55]}
    }
  ]
}`

type fakeBackend struct {
	mu      sync.Mutex
	loads   int
	puts    []atr.Confirmed
	uploads []string
	image   []byte
}

func (f *fakeBackend) OutputData(_ context.Context, imageID, outputID string) (*atr.Result, error) {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()
	if imageID != "1" || outputID != "2" {
		return nil, &atrclient.StatusError{Method: "GET", Path: "data", Status: http.StatusNotFound}
	}
	return atr.Parse([]byte(sampleOutput))
}

func (f *fakeBackend) PutOutput(_ context.Context, _, _ string, confirmed atr.Confirmed) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, confirmed)
	return json.RawMessage(`{}`), nil
}

func (f *fakeBackend) UploadAndTranscribe(_ context.Context, data []byte, filename, _ string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	return json.RawMessage(`{"status": "queued"}`), nil
}

func (f *fakeBackend) ImageData(_ context.Context, _ string) ([]byte, string, error) {
	return f.image, "image/png", nil
}

func (f *fakeBackend) Models(_ context.Context) (*atrclient.Catalog, error) {
	return atrclient.ParseCatalog(map[string]json.RawMessage{
		"text_recognition_models": json.RawMessage(`[{"id": 1, "name": "TrOCR-norhand-v3"}]`),
	})
}

func (f *fakeBackend) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeBackend) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func (f *fakeBackend) uploadList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 80))
	for x := 0; x < 200; x++ {
		img.Set(x, 20, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeBackend, store.Store) {
	t.Helper()
	backend := &fakeBackend{image: pngImage(t)}
	st := store.NewMemory()
	opts := export.DefaultOptions()
	opts.LogWarnings = false
	s := New(Options{
		Backend: backend,
		Store:   st,
		Export:  opts,
		Logger:  log.New(io.Discard, "", 0),
		Clock:   func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, backend, st
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading %s response: %v", path, err)
	}
	return resp, out
}

func decodeView(t *testing.T, data []byte) documentView {
	t.Helper()
	var view documentView
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("decoding document view %s: %v", data, err)
	}
	return view
}

func doc(extra map[string]any) map[string]any {
	m := map[string]any{"image_id": "1", "id": "2"}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func TestOutputData(t *testing.T) {
	srv, backend, _ := newTestServer(t)

	resp, body := postJSON(t, srv, "/api/outputdata", doc(nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	view := decodeView(t, body)
	if view.FileName != "letter" || len(view.Lines) != 2 || view.CanRevert {
		t.Fatalf("view = %+v", view)
	}
	if view.Lines[0].Class != "high" || view.Lines[1].Class != "low" || view.Lines[1].Stroke != "#822727" {
		t.Fatalf("lines = %+v", view.Lines)
	}

	postJSON(t, srv, "/api/outputdata", doc(nil))
	if n := backend.loadCount(); n != 1 {
		t.Fatalf("document loaded %d times, want 1", n)
	}

	resp, _ = postJSON(t, srv, "/api/outputdata", map[string]any{"image_id": "1", "id": "9"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown output status = %d", resp.StatusCode)
	}
	resp, _ = postJSON(t, srv, "/api/outputdata", map[string]any{"image_id": "1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing id status = %d", resp.StatusCode)
	}
}

func TestEditSaveFlow(t *testing.T) {
	srv, backend, st := newTestServer(t)
	ctx := context.Background()
	key := store.Key{ImageID: "1", OutputID: "2"}

	resp, body := postJSON(t, srv, "/api/edit", doc(map[string]any{"index": 1, "text": "yours truly"}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit status = %d, body %s", resp.StatusCode, body)
	}
	view := decodeView(t, body)
	if !view.CanRevert || !view.Lines[1].Edited || view.Lines[1].Text != "yours truly" {
		t.Fatalf("edited view = %+v", view.Lines[1])
	}
	draft, err := st.LoadDraft(ctx, key)
	if err != nil || draft[1].EffectiveText() != "yours truly" {
		t.Fatalf("LoadDraft() = %+v, %v", draft, err)
	}

	resp, _ = postJSON(t, srv, "/api/edit", doc(map[string]any{"index": 7, "text": "x"}))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("edit of unknown line status = %d", resp.StatusCode)
	}

	resp, body = postJSON(t, srv, "/api/save", doc(nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d, body %s", resp.StatusCode, body)
	}
	var confirmed atr.Confirmed
	if err := json.Unmarshal(body, &confirmed); err != nil {
		t.Fatalf("decoding confirmed: %v", err)
	}
	if !confirmed.Confirmed || confirmed.Data.Contains[1].Edited == nil || confirmed.Data.Contains[1].Edited.Text != "yours truly" {
		t.Fatalf("confirmed = %+v", confirmed.Data.Contains[1])
	}
	if confirmed.Data.Contains[0].Edited != nil {
		t.Fatalf("unedited element was stamped")
	}
	if n := backend.putCount(); n != 1 {
		t.Fatalf("PutOutput called %d times", n)
	}
	if _, err := st.LoadConfirmed(ctx, key); err != nil {
		t.Fatalf("LoadConfirmed() error = %v", err)
	}
	if _, err := st.LoadDraft(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("draft should be deleted after save, got %v", err)
	}
}

func TestRevert(t *testing.T) {
	srv, _, st := newTestServer(t)
	postJSON(t, srv, "/api/edit", doc(map[string]any{"index": 0, "text": "Dear madam"}))
	postJSON(t, srv, "/api/edit", doc(map[string]any{"index": 1, "text": "yours truly"}))

	resp, body := postJSON(t, srv, "/api/revert", doc(map[string]any{"index": 0}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revert status = %d", resp.StatusCode)
	}
	view := decodeView(t, body)
	if view.Lines[0].Edited || view.Lines[0].Text != "Dear sir" || !view.Lines[1].Edited {
		t.Fatalf("after single revert = %+v", view.Lines)
	}

	_, body = postJSON(t, srv, "/api/revert", doc(nil))
	view = decodeView(t, body)
	if view.CanRevert || view.Lines[1].Text != "yours truely" {
		t.Fatalf("after revert all = %+v", view)
	}
	if _, err := st.LoadDraft(context.Background(), store.Key{ImageID: "1", OutputID: "2"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("draft should be deleted after revert all, got %v", err)
	}
}

func TestDraftResumedAfterRestart(t *testing.T) {
	srv, _, st := newTestServer(t)
	postJSON(t, srv, "/api/edit", doc(map[string]any{"index": 1, "text": "yours truly"}))

	// a second server sharing the store picks the draft up
	s2 := New(Options{Backend: &fakeBackend{}, Store: st, Logger: log.New(io.Discard, "", 0)})
	srv2 := httptest.NewServer(s2.Handler())
	defer srv2.Close()
	_, body := postJSON(t, srv2, "/api/outputdata", doc(nil))
	if view := decodeView(t, body); view.Lines[1].Text != "yours truly" || !view.Lines[1].Edited {
		t.Fatalf("resumed view = %+v", view.Lines[1])
	}
}

func TestFocus(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, body := postJSON(t, srv, "/api/focus", doc(map[string]any{"index": 1}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("focus status = %d", resp.StatusCode)
	}
	var h struct {
		Index   int         `json:"index"`
		Polygon atr.Polygon `json:"polygon"`
		Fill    string      `json:"fill"`
	}
	if err := json.Unmarshal(body, &h); err != nil {
		t.Fatalf("decoding highlight: %v", err)
	}
	if h.Index != 1 || len(h.Polygon.Points) != 4 || h.Fill != "rgba(254, 215, 215, 0.5)" {
		t.Fatalf("highlight = %+v", h)
	}
}

func TestExport(t *testing.T) {
	srv, _, _ := newTestServer(t)
	postJSON(t, srv, "/api/edit", doc(map[string]any{"index": 1, "text": "yours truly"}))

	tests := []struct {
		format   string
		mimeType string
		filename string
		contains string
	}{
		{"plain_txt", "text/plain", "letter.txt", "Dear sir\n\nyours truly"},
		{"json", "application/json", "letter.json", `"text": "yours truly"`},
		{"pdf", "application/pdf", "letter-output.pdf", "%PDF"},
		{"plain_pdf", "application/pdf", "letter-plaintext.pdf", "%PDF"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			resp, body := postJSON(t, srv, "/api/export", doc(map[string]any{"format": tt.format}))
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body %s", resp.StatusCode, body)
			}
			if !strings.HasPrefix(resp.Header.Get("Content-Type"), tt.mimeType) {
				t.Fatalf("Content-Type = %q", resp.Header.Get("Content-Type"))
			}
			if !strings.Contains(resp.Header.Get("Content-Disposition"), tt.filename) {
				t.Fatalf("Content-Disposition = %q", resp.Header.Get("Content-Disposition"))
			}
			if !strings.Contains(string(body), tt.contains) {
				t.Fatalf("body does not contain %q", tt.contains)
			}
		})
	}

	resp, _ := postJSON(t, srv, "/api/export", doc(map[string]any{"format": "docx"}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unsupported format status = %d", resp.StatusCode)
	}
}

func TestTranscribe(t *testing.T) {
	srv, backend, _ := newTestServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "page.png")
	part.Write(pngImage(t))
	w.Close()

	resp, err := http.Post(srv.URL+"/api/transcribe", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if uploads := backend.uploadList(); resp.StatusCode != http.StatusOK || len(uploads) != 1 || uploads[0] != "page.png" {
		t.Fatalf("status = %d, uploads = %v", resp.StatusCode, uploads)
	}

	resp, err = http.Post(srv.URL+"/api/transcribe", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("transcribe without file status = %d", resp.StatusCode)
	}
}

func TestTranscribeDocumentAIUnconfigured(t *testing.T) {
	srv, _, _ := newTestServer(t)
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "page.png")
	part.Write([]byte("png"))
	w.WriteField("engine", "gdocai")
	w.Close()

	resp, err := http.Post(srv.URL+"/api/transcribe", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSearchable(t *testing.T) {
	srv, _, _ := newTestServer(t)
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("image_id", "1")
	w.WriteField("id", "2")
	w.Close()

	resp, err := http.Post(srv.URL+"/api/searchable", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) || !strings.Contains(resp.Header.Get("Content-Disposition"), "letter-searchable.pdf") {
		t.Fatalf("unexpected searchable response %q", resp.Header.Get("Content-Disposition"))
	}
}

func TestHealthAndModels(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/models")
	if err != nil {
		t.Fatalf("GET /api/models error = %v", err)
	}
	defer resp.Body.Close()
	var models []struct {
		Name         string `json:"name"`
		ReadableType string `json:"readableType"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		t.Fatalf("decoding models: %v", err)
	}
	if len(models) != 1 || models[0].ReadableType != "Text recognition models" {
		t.Fatalf("models = %+v", models)
	}
}

func TestConcurrentEdits(t *testing.T) {
	srv, backend, _ := newTestServer(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(doc(map[string]any{"index": i % 2, "text": fmt.Sprintf("edit %d", i)}))
			resp, err := http.Post(srv.URL+"/api/edit", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Errorf("POST error = %v", err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d", resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()
	if n := backend.loadCount(); n != 1 {
		t.Fatalf("document loaded %d times, want 1", n)
	}
}
