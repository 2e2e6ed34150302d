// Package api is the HTTP client for the LipLearn prediction service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/projectlif/liplearn/internal/metrics"
	"github.com/projectlif/liplearn/internal/model"
)

// CorrelationHeader carries the per-request id.
const CorrelationHeader = "X-Correlation-ID"

const maxErrorBody = 512

// Client calls the prediction, landmark and progress endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient returns a client for baseURL. A nil httpClient uses a client without
// an overall timeout; callers bound requests through their contexts.
func NewClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log.With().Str("component", "api").Logger(),
	}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Predict submits a recording. Syllable mode posts to /api/predict/syllable/{category},
// word mode to /api/predict/words.
func (c *Client) Predict(ctx context.Context, req model.PredictionRequest) (result model.PredictionResult, err error) {
	if len(req.Frames) == 0 {
		return nil, model.ErrEmptyCapture
	}
	started := time.Now()
	defer func() {
		metrics.PredictionDone(string(req.Mode), started, err)
	}()

	path := "/api/predict/words"
	if req.Mode == model.ModeSyllable {
		path = "/api/predict/syllable/" + url.PathEscape(req.Category)
	}

	body, contentType, err := encodeRecording(req)
	if err != nil {
		return nil, err
	}

	if req.Mode == model.ModeSyllable {
		var resp syllableResponse
		if err := c.do(ctx, "predict", http.MethodPost, path, contentType, body, &resp); err != nil {
			return nil, err
		}
		return resp.toModel()
	}
	var resp wordsResponse
	if err := c.do(ctx, "predict", http.MethodPost, path, contentType, body, &resp); err != nil {
		return nil, err
	}
	return resp.toModel()
}

// DetectLandmarks posts a single frame to /api/detect/landmarks.
func (c *Client) DetectLandmarks(ctx context.Context, frame []byte) (model.Landmarks, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeJPEGPart(mw, "frame", "frame.jpg", frame); err != nil {
		return model.Landmarks{}, err
	}
	if err := mw.Close(); err != nil {
		return model.Landmarks{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}
	var resp landmarksResponse
	if err := c.do(ctx, "detect landmarks", http.MethodPost, "/api/detect/landmarks", mw.FormDataContentType(), &buf, &resp); err != nil {
		return model.Landmarks{}, err
	}
	return resp.toModel(), nil
}

// GetProgress reads the server-side progress record.
func (c *Client) GetProgress(ctx context.Context) (model.Progress, error) {
	var resp progressResponse
	if err := c.do(ctx, "get progress", http.MethodGet, "/api/progress/get", "", nil, &resp); err != nil {
		return model.Progress{}, err
	}
	completed := resp.MasteredSyllables
	if completed == nil {
		completed = []string{}
	}
	return model.Progress{
		Completed: completed,
		Points:    resp.TotalPoints,
		TotalTime: resp.TotalTime,
	}, nil
}

// SyncProgress pushes the local progress record.
func (c *Client) SyncProgress(ctx context.Context, p model.Progress) error {
	completed := p.Completed
	if completed == nil {
		completed = []string{}
	}
	payload, err := json.Marshal(syncRequest{
		Completed:   completed,
		Points:      p.Points,
		TotalTime:   p.TotalTime,
		LastUpdated: p.LastUpdated,
	})
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	return c.do(ctx, "sync progress", http.MethodPost, "/api/progress/sync", "application/json", bytes.NewReader(payload), nil)
}

// MarkMastered marks a syllable as mastered on the server.
func (c *Client) MarkMastered(ctx context.Context, id string) (model.MasteryResult, error) {
	var resp masterResponse
	path := "/api/syllable/" + url.PathEscape(id) + "/master"
	if err := c.do(ctx, "mark mastered", http.MethodPost, path, "application/json", nil, &resp); err != nil {
		return model.MasteryResult{}, err
	}
	return model.MasteryResult{
		Success:      resp.Success,
		TotalPoints:  resp.TotalPoints,
		PointsEarned: resp.PointsEarned,
	}, nil
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	correlationID := uuid.NewString()
	req.Header.Set(CorrelationHeader, correlationID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	log := c.log.With().Str("op", op).Str("correlation_id", correlationID).Logger()

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		log.Debug().Err(err).Msg("request failed")
		return &NetworkError{Op: op, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Debug().Int("status", resp.StatusCode).Msg("request rejected")
		return &NetworkError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrMalformedResponse, op, err)
	}
	log.Debug().Int("status", resp.StatusCode).Msg("request completed")
	return nil
}

func encodeRecording(req model.PredictionRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i, frame := range req.Frames {
		if err := writeJPEGPart(mw, "frames", fmt.Sprintf("frame_%d.jpg", i), frame); err != nil {
			return nil, "", err
		}
	}
	fields := [][2]string{
		{"mode", string(req.Mode)},
		{"category", req.Category},
		{"frame_count", strconv.Itoa(len(req.Frames))},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func writeJPEGPart(mw *multipart.Writer, field, filename string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write %s part: %w", field, err)
	}
	return nil
}
