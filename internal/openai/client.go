package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client is a thin adapter over the OpenAI Images API. It exposes only the
// calls the service needs, so tests can substitute a scripted double.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient builds a Client. The default request timeout is 60 seconds; the
// provider publishes no latency bound for image generation, so the timeout is
// the only cap on call duration.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.APIKey),
	}
}

// GenerateImages calls the generations endpoint. Results are always requested
// as inline base64.
func (c *Client) GenerateImages(ctx context.Context, p GenerationPayload) ([]ImageDatum, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"model":           p.Model,
		"prompt":          p.Prompt,
		"size":            p.Size,
		"quality":         p.Quality,
		"n":               p.N,
		"response_format": "b64_json",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doImages(req)
}

// EditImage calls the edits endpoint with one or more reference images. The
// endpoint does not accept a quality field, so none is sent.
func (c *Client) EditImage(ctx context.Context, p EditPayload) ([]ImageDatum, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if len(p.ImagePaths) == 0 {
		return nil, errors.New("openai: edit requires at least one image")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"model":  p.Model,
		"prompt": p.Prompt,
		"size":   p.Size,
		"n":      strconv.Itoa(p.N),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	// Multi-reference edits use the image[] array form.
	imageField := "image"
	if len(p.ImagePaths) > 1 {
		imageField = "image[]"
	}
	for _, path := range p.ImagePaths {
		if err := attachFile(mw, imageField, path); err != nil {
			return nil, err
		}
	}
	if p.MaskPath != "" {
		if err := attachFile(mw, "mask", p.MaskPath); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.doImages(req)
}

// CreateVariations calls the variations endpoint (dall-e-2 only).
func (c *Client) CreateVariations(ctx context.Context, p VariationPayload) ([]ImageDatum, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"model": p.Model,
		"size":  p.Size,
		"n":     strconv.Itoa(p.N),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := attachFile(mw, "image", p.ImagePath); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/variations", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.doImages(req)
}

// ListModels probes the models endpoint. It is used as a reachability check
// by the health handler.
func (c *Client) ListModels(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("openai: http %d", resp.StatusCode)
		}
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Error != nil && out.Error.Message != "" {
			return errors.New(out.Error.Message)
		}
		return fmt.Errorf("openai: http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) ready() error {
	if c == nil {
		return errors.New("openai client not configured")
	}
	if c.token == "" {
		return errors.New("openai: API key is missing")
	}
	return nil
}

func (c *Client) doImages(req *http.Request) ([]ImageDatum, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out imagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("openai: http %d", resp.StatusCode)
		}
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Error != nil && out.Error.Message != "" {
			return nil, errors.New(out.Error.Message)
		}
		return nil, fmt.Errorf("openai: http %d", resp.StatusCode)
	}
	return out.Data, nil
}

func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("openai: open %s: %w", field, err)
	}
	defer f.Close()
	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	return nil
}
