// Package atrclient talks to the external ATR service.
//
// The service accepts page images, runs segmentation and text recognition models over them
// and stores one output per run. Output data is the ATR result JSON that pkg/atr decodes.
// All endpoints live under the versioned base path and authenticate with a bearer token.
package atrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/forsete/atrdoc/pkg/atr"
)

// BasePath is the versioned prefix of every ATR endpoint
const BasePath = "forsete-atr/v2/"

// Default models used when a transcription request names none
const (
	DefaultLineModel = "yolov9-lines-within-regions-1"
	DefaultTextModel = "TrOCR-norhand-v3"
)

// ErrUnauthorized is returned when the service rejects the token
var ErrUnauthorized = errors.New("atr service: unauthorized")

// Config configures a Client
type Config struct {
	BaseURL string        // Service root, e.g. http://localhost:8080/
	Token   string        // Bearer token, optional
	Timeout time.Duration // Per-request timeout (0 = 60s)
}

// Client is an ATR service client. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("atr service %s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// New creates a client for the service at cfg.BaseURL
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("atr service URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid atr service URL: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// WithToken returns a copy of the client that authenticates with token
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Image is an uploaded image as reported by the service
type Image struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON accepts numeric and string ids
func (i *Image) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.ID = idString(raw.ID)
	i.Name = raw.Name
	return nil
}

// TranscribeRequest selects images and models for a transcription run
type TranscribeRequest struct {
	ImageIDs                []string `json:"image_ids"`
	RegionSegmentationModel string   `json:"region_segmentation_model,omitempty"`
	LineSegmentationModel   string   `json:"line_segmentation_model"`
	TextRecognitionModel    string   `json:"text_recognition_model"`
}

// UploadImage uploads one image and returns the images the service created for it
func (c *Client) UploadImage(ctx context.Context, data []byte, filename, mimeType string) ([]Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image data is empty")
	}
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := createFilePart(writer, "images", filename, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write image data to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var images []Image
	if err := c.do(ctx, http.MethodPost, "images/upload/", writer.FormDataContentType(), &body, &images); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("upload image: service returned no images")
	}
	return images, nil
}

// Transcribe starts a transcription run and returns the raw service response
func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (json.RawMessage, error) {
	if len(req.ImageIDs) == 0 {
		return nil, fmt.Errorf("transcribe: no image ids")
	}
	if req.LineSegmentationModel == "" {
		req.LineSegmentationModel = DefaultLineModel
	}
	if req.TextRecognitionModel == "" {
		req.TextRecognitionModel = DefaultTextModel
	}
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "atr/", req, &out); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if len(bytes.TrimSpace(out)) == 0 || string(out) == "null" {
		return nil, fmt.Errorf("transcribe: empty response received from ATR service")
	}
	return out, nil
}

// UploadAndTranscribe uploads an image and transcribes it with the default models
func (c *Client) UploadAndTranscribe(ctx context.Context, data []byte, filename, mimeType string) (json.RawMessage, error) {
	images, err := c.UploadImage(ctx, data, filename, mimeType)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(images))
	for i, img := range images {
		ids[i] = img.ID
	}
	return c.Transcribe(ctx, TranscribeRequest{ImageIDs: ids})
}

// ImageData downloads the stored image
func (c *Client) ImageData(ctx context.Context, imageID string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "images/"+url.PathEscape(imageID)+"/data/", "", nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, "", fmt.Errorf("image %s: %w", imageID, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Output returns the metadata of one output
func (c *Client) Output(ctx context.Context, imageID, outputID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, outputPath(imageID)+url.PathEscape(outputID), nil, &out); err != nil {
		return nil, fmt.Errorf("output %s/%s: %w", imageID, outputID, err)
	}
	return out, nil
}

// OutputData fetches and decodes the ATR result of one output
func (c *Client) OutputData(ctx context.Context, imageID, outputID string) (*atr.Result, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, outputDataPath(imageID, outputID), nil, &raw); err != nil {
		return nil, fmt.Errorf("output data %s/%s: %w", imageID, outputID, err)
	}
	result, err := atr.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("output data %s/%s: %w", imageID, outputID, err)
	}
	return result, nil
}

// PutOutput stores a confirmed result as the output's data
func (c *Client) PutOutput(ctx context.Context, imageID, outputID string, confirmed atr.Confirmed) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPut, outputPath(imageID)+url.PathEscape(outputID), confirmed, &out); err != nil {
		return nil, fmt.Errorf("put output %s/%s: %w", imageID, outputID, err)
	}
	return out, nil
}

// Models fetches the model catalog
func (c *Client) Models(ctx context.Context) (*Catalog, error) {
	var raw map[string]json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "models/", nil, &raw); err != nil {
		return nil, fmt.Errorf("models: %w", err)
	}
	return ParseCatalog(raw)
}

// Status checks that the service is up
func (c *Client) Status(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodGet, "status/", nil, nil); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return nil
}

func outputPath(imageID string) string {
	return "images/" + url.PathEscape(imageID) + "/outputs/"
}

func outputDataPath(imageID, outputID string) string {
	return outputPath(imageID) + url.PathEscape(outputID) + "/data/"
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, body, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := c.newRequest(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Request, error) {
	u := c.baseURL.JoinPath(BasePath + path)
	// service routes require the trailing slash
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// send executes req and turns non-2xx responses into errors
func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed after %v: %w", time.Since(start).Round(time.Millisecond), err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	statusErr := &StatusError{
		Method: req.Method,
		Path:   req.URL.Path,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, statusErr)
	}
	return nil, statusErr
}

func createFilePart(w *multipart.Writer, field, filename, mimeType string) (io.Writer, error) {
	if mimeType == "" {
		return w.CreateFormFile(field, filename)
	}
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
	h["Content-Type"] = []string{mimeType}
	return w.CreatePart(h)
}

func idString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
