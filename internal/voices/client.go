// Package voices is a client for the text-to-speech service's voice
// management API.
package voices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/umiteyigun/santral-ai/internal/metrics"
	"github.com/umiteyigun/santral-ai/internal/models"
)

const (
	readTimeout   = 5 * time.Second
	switchTimeout = 10 * time.Second
	uploadTimeout = 60 * time.Second
)

// UpstreamError is a non-2xx answer from the TTS service.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tts service error %d: %s", e.Status, e.Detail)
}

// Client talks to the TTS service at BaseURL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new TTS service client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
	}
}

// List returns every reference voice.
func (c *Client) List(ctx context.Context) (*models.VoiceList, error) {
	var out models.VoiceList
	if err := c.do(ctx, "list", http.MethodGet, "/voices", "", nil, readTimeout, &out); err != nil {
		return nil, err
	}
	if out.Voices == nil {
		out.Voices = []models.Voice{}
	}
	return &out, nil
}

// Active returns the voice used for synthesis.
func (c *Client) Active(ctx context.Context) (*models.ActiveVoice, error) {
	var out models.ActiveVoice
	if err := c.do(ctx, "active", http.MethodGet, "/voices/active", "", nil, readTimeout, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetActive switches the synthesis voice to filename.
func (c *Client) SetActive(ctx context.Context, filename string) (*models.SetActiveVoiceResult, error) {
	body, err := json.Marshal(models.SetActiveVoiceRequest{VoiceFilename: filename})
	if err != nil {
		return nil, err
	}
	var out models.SetActiveVoiceResult
	if err := c.do(ctx, "set_active", http.MethodPost, "/voices/set-active", "application/json", bytes.NewReader(body), switchTimeout, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload forwards a multipart upload body unchanged. contentType must carry
// the multipart boundary of body.
func (c *Client) Upload(ctx context.Context, contentType string, body io.Reader) (*models.UploadedVoice, error) {
	var out models.UploadedVoice
	if err := c.do(ctx, "upload", http.MethodPost, "/voices/upload", contentType, body, uploadTimeout, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CacheInfo reports the speaker embedding cache contents.
func (c *Client) CacheInfo(ctx context.Context) (*models.CacheInfo, error) {
	var out models.CacheInfo
	if err := c.do(ctx, "cache_info", http.MethodGet, "/cache/info", "", nil, readTimeout, &out); err != nil {
		return nil, err
	}
	if out.CacheFiles == nil {
		out.CacheFiles = []models.CacheFile{}
	}
	return &out, nil
}

// Ping checks that the TTS service answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Active(ctx)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, timeout time.Duration, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	metrics.UpstreamLatency.WithLabelValues("tts", op).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("tts %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		// FastAPI reports failures as {"detail": ...}
		var errResp struct {
			Detail interface{} `json:"detail"`
		}
		detail := string(respBody)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Detail != nil {
			detail = fmt.Sprint(errResp.Detail)
		}
		return &UpstreamError{Status: resp.StatusCode, Detail: detail}
	}

	return json.Unmarshal(respBody, out)
}
