package imagegen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider generates images through the OpenAI images API, or any
// service compatible with it.
type OpenAIProvider struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAIProvider creates a provider. baseURL may be empty for the public API.
func NewOpenAIProvider(name, apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	return &OpenAIProvider{
		name:   name,
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

// Name implements Provider
func (p *OpenAIProvider) Name() string { return p.name }

// Generate implements Provider. A reference image switches to the edit endpoint.
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	var (
		resp openai.ImageResponse
		err  error
	)
	if len(req.ReferenceImage) > 0 {
		resp, err = p.edit(ctx, req, model)
	} else {
		resp, err = p.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         req.Prompt,
			Model:          model,
			N:              1,
			Size:           imageSize(req.Width, req.Height),
			ResponseFormat: openai.CreateImageResponseFormatURL,
		})
	}
	if err != nil {
		return nil, p.classify(ctx, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmptyResult)
	}
	url := resp.Data[0].URL
	if url == "" && resp.Data[0].B64JSON != "" {
		url = "data:image/png;base64," + resp.Data[0].B64JSON
	}
	if url == "" {
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmptyResult)
	}
	return &Result{ImageURL: url, Provider: p.name, Model: model}, nil
}

func (p *OpenAIProvider) edit(ctx context.Context, req *Request, model string) (openai.ImageResponse, error) {
	// The client uploads from a file handle.
	f, err := os.CreateTemp("", "agency-chat-ref-*.png")
	if err != nil {
		return openai.ImageResponse{}, fmt.Errorf("create reference file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := f.Write(req.ReferenceImage); err != nil {
		return openai.ImageResponse{}, fmt.Errorf("write reference file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return openai.ImageResponse{}, fmt.Errorf("rewind reference file: %w", err)
	}

	return p.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:          f,
		Prompt:         req.Prompt,
		Model:          model,
		N:              1,
		Size:           imageSize(req.Width, req.Height),
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
}

// classify maps client errors onto the dispatcher's failure taxonomy
func (p *OpenAIProvider) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil && isContextError(err) {
		return ctx.Err()
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return &TransportError{Provider: p.name, Err: err}
}

func imageSize(width, height int) string {
	if width <= 0 || height <= 0 {
		return openai.CreateImageSize1024x1024
	}
	return fmt.Sprintf("%dx%d", width, height)
}
