package atrclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/forsete/atrdoc/pkg/atr"
)

const outputData = `{
  "file_name": "page.jpg",
  "label": "page",
  "contains": [
    {
      "segment": {"bbox": {"xmin": 0, "ymin": 0, "xmax": 10, "ymax": 10}, "polygon": {"points": []}},
      "text_result": {"texts": ["Hello"], "scores": [0.9]}
    }
  ]
}`

type recorded struct {
	method string
	path   string
	auth   string
	body   string
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) add(c recorded) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) list() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.calls...)
}

func newTestServer(t *testing.T) (*Client, *recorder) {
	t.Helper()
	calls := &recorder{}
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls.add(recorded{r.Method, r.URL.Path, r.Header.Get("Authorization"), string(body)})
	}

	mux.HandleFunc("POST /forsete-atr/v2/images/upload/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("images")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		calls.add(recorded{r.Method, r.URL.Path, r.Header.Get("Authorization"), header.Filename + ":" + string(data)})
		w.Write([]byte(`[{"id": 17, "name": "page.png"}]`))
	})
	mux.HandleFunc("POST /forsete-atr/v2/atr/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(`{"outputs": [{"id": 3}]}`))
	})
	mux.HandleFunc("GET /forsete-atr/v2/images/17/outputs/3/data/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(outputData))
	})
	mux.HandleFunc("PUT /forsete-atr/v2/images/17/outputs/3", func(w http.ResponseWriter, r *http.Request) {
		record(r)
	})
	mux.HandleFunc("GET /forsete-atr/v2/models/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(`{
			"line_segmentation_models": [{"id": 1, "name": "yolov9-lines-within-regions-1"}],
			"text_recognition_models": [{"id": "2", "name": "TrOCR-norhand-v3"}, {"id": 3, "name": "TrOCR-base"}],
			"count": 3
		}`))
	})
	mux.HandleFunc("GET /forsete-atr/v2/status/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, calls
}

func TestUploadAndTranscribe(t *testing.T) {
	c, calls := newTestServer(t)
	out, err := c.UploadAndTranscribe(context.Background(), []byte("png-bytes"), "page.png", "image/png")
	if err != nil {
		t.Fatalf("UploadAndTranscribe() error = %v", err)
	}
	if !strings.Contains(string(out), "outputs") {
		t.Fatalf("unexpected response %s", out)
	}
	got := calls.list()
	if len(got) != 2 {
		t.Fatalf("expected 2 calls, got %+v", got)
	}
	upload, atrCall := got[0], got[1]
	if upload.body != "page.png:png-bytes" || upload.auth != "Bearer secret" {
		t.Fatalf("upload = %+v", upload)
	}
	var req TranscribeRequest
	if err := json.Unmarshal([]byte(atrCall.body), &req); err != nil {
		t.Fatalf("transcribe body: %v", err)
	}
	if len(req.ImageIDs) != 1 || req.ImageIDs[0] != "17" || req.LineSegmentationModel != DefaultLineModel || req.TextRecognitionModel != DefaultTextModel {
		t.Fatalf("transcribe request = %+v", req)
	}
}

func TestOutputDataAndPut(t *testing.T) {
	c, calls := newTestServer(t)
	ctx := context.Background()

	result, err := c.OutputData(ctx, "17", "3")
	if err != nil {
		t.Fatalf("OutputData() error = %v", err)
	}
	if len(result.Contains) != 1 || result.Contains[0].TextResult.Texts[0] != "Hello" {
		t.Fatalf("OutputData() = %+v", result)
	}

	if _, err := c.PutOutput(ctx, "17", "3", atr.Confirm(result)); err != nil {
		t.Fatalf("PutOutput() error = %v", err)
	}
	got := calls.list()
	put := got[len(got)-1]
	if put.method != http.MethodPut || !strings.Contains(put.body, `"confirmed":true`) || !strings.Contains(put.body, `"Hello"`) {
		t.Fatalf("put = %+v", put)
	}

	var statusErr *StatusError
	if _, err := c.OutputData(ctx, "17", "404"); !errors.As(err, &statusErr) || statusErr.Status != http.StatusNotFound {
		t.Fatalf("OutputData() missing output error = %v", err)
	}
}

func TestModels(t *testing.T) {
	c, _ := newTestServer(t)
	catalog, err := c.Models(context.Background())
	if err != nil {
		t.Fatalf("Models() error = %v", err)
	}
	if catalog.Len() != 3 {
		t.Fatalf("Len() = %d", catalog.Len())
	}
	if kinds := catalog.Kinds(); len(kinds) != 2 || kinds[0] != LineSegmentation {
		t.Fatalf("Kinds() = %v", kinds)
	}
	m, ok := catalog.Find(TextRecognition, "TrOCR-norhand-v3")
	if !ok || m.ID != "2" || m.Kind != TextRecognition {
		t.Fatalf("Find() = %+v, %v", m, ok)
	}
	if all := catalog.All(); len(all) != 3 || all[0].Name != "yolov9-lines-within-regions-1" {
		t.Fatalf("All() = %+v", all)
	}
	if got := LineSegmentation.Readable(); got != "Line segmentation models" {
		t.Fatalf("Readable() = %q", got)
	}
}

func TestParseCatalogEmpty(t *testing.T) {
	if _, err := ParseCatalog(map[string]json.RawMessage{"count": json.RawMessage("0")}); err == nil {
		t.Fatalf("ParseCatalog() expected error for catalog without models")
	}
}

func TestUnauthorized(t *testing.T) {
	c, _ := newTestServer(t)
	err := c.Status(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Status() error = %v, want ErrUnauthorized", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Body != "token expired" {
		t.Fatalf("Status() error = %v", err)
	}
}

func TestValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("New() expected error without URL")
	}
	c, calls := newTestServer(t)
	ctx := context.Background()
	if _, err := c.UploadImage(ctx, nil, "a.png", ""); err == nil {
		t.Fatalf("UploadImage() expected error for empty data")
	}
	if _, err := c.Transcribe(ctx, TranscribeRequest{}); err == nil {
		t.Fatalf("Transcribe() expected error without images")
	}
	if got := calls.list(); len(got) != 0 {
		t.Fatalf("validation failures should not reach the service: %+v", got)
	}
}

func TestWithToken(t *testing.T) {
	c, calls := newTestServer(t)
	if _, err := c.WithToken("other").Models(context.Background()); err != nil {
		t.Fatalf("Models() error = %v", err)
	}
	if got := calls.list(); got[0].auth != "Bearer other" {
		t.Fatalf("auth = %q", got[0].auth)
	}
	if c.token != "secret" {
		t.Fatalf("WithToken() modified the original client")
	}
}
