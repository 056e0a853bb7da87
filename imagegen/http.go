package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// HTTPProvider talks to an image service speaking the JSON contract
// {prompt, model, width, height, imageBase64?, strength?} -> {success, imageUrl?, error?}.
type HTTPProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// HTTPOption configures an HTTPProvider
type HTTPOption func(*HTTPProvider)

// WithAPIKey sends a bearer token with every request
func WithAPIKey(key string) HTTPOption {
	return func(p *HTTPProvider) { p.apiKey = key }
}

// WithDefaultModel is used when a request names no model
func WithDefaultModel(model string) HTTPOption {
	return func(p *HTTPProvider) { p.model = model }
}

// WithHTTPClient replaces the underlying client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// NewHTTPProvider creates a provider posting to endpoint
func NewHTTPProvider(name, endpoint string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		name:       name,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider
func (p *HTTPProvider) Name() string { return p.name }

type httpImageRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	ImageBase64 string  `json:"imageBase64,omitempty"`
	Strength    float64 `json:"strength,omitempty"`
	Steps       int     `json:"steps,omitempty"`
}

type httpImageResponse struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Generate implements Provider
func (p *HTTPProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	payload := httpImageRequest{
		Prompt:   req.Prompt,
		Model:    model,
		Width:    req.Width,
		Height:   req.Height,
		Strength: req.Strength,
		Steps:    req.Steps,
	}
	if len(req.ReferenceImage) > 0 {
		payload.ImageBase64 = base64.StdEncoding.EncodeToString(req.ReferenceImage)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Provider: p.name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: p.name, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Provider: p.name, StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	var out httpImageResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %v: %w", p.name, err, ErrEmptyResult)
	}
	if !out.Success || out.ImageURL == "" {
		if out.Error != "" {
			return nil, fmt.Errorf("%s: %s: %w", p.name, out.Error, ErrEmptyResult)
		}
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmptyResult)
	}

	return &Result{ImageURL: out.ImageURL, Provider: p.name, Model: model}, nil
}

func errorMessage(body []byte) string {
	var out httpImageResponse
	if err := json.Unmarshal(body, &out); err == nil && out.Error != "" {
		return out.Error
	}
	msg := []rune(string(bytes.TrimSpace(body)))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return string(msg)
}

// isContextError is true for cancellation and deadline errors
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
