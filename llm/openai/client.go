package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nachoal/agency-chat/llm"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
	defaultModel   = "gpt-4o-mini"
	providerName   = "OpenAI"
)

// Client implements llm.Client against any OpenAI-compatible chat completions endpoint
type Client struct {
	options    llm.ClientOptions
	httpClient *http.Client
}

// NewClient creates a new OpenAI-compatible client
func NewClient(opts ...llm.ClientOption) (*Client, error) {
	options := llm.ClientOptions{
		BaseURL:      defaultBaseURL,
		Timeout:      defaultTimeout,
		MaxRetries:   3,
		DefaultModel: defaultModel,
		Headers:      make(map[string]string),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.APIKey == "" {
		options.APIKey = os.Getenv("OPENAI_API_KEY")
		if options.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not provided")
		}
	}

	// Streams can legitimately run longer than a single request timeout, so
	// the deadline is left to the caller's context instead of http.Client.
	httpClient := &http.Client{}

	return &Client{
		options:    options,
		httpClient: httpClient,
	}, nil
}

// OpenStream sends a streaming chat request and hands back the raw SSE body
func (c *Client) OpenStream(ctx context.Context, request *llm.ChatRequest) (io.ReadCloser, error) {
	if request.Model == "" {
		request.Model = c.options.DefaultModel
	}
	request.Stream = true

	req, err := c.newRequest(ctx, request)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, llm.NewStatusError(providerName, resp.StatusCode, body)
	}

	return resp.Body, nil
}

// Complete sends a non-streaming chat request
func (c *Client) Complete(ctx context.Context, request *llm.ChatRequest) (string, error) {
	if request.Model == "" {
		request.Model = c.options.DefaultModel
	}
	request.Stream = false

	ctx, cancel := context.WithTimeout(ctx, c.options.Timeout)
	defer cancel()

	var answer string
	err := c.doWithRetries(ctx, func() error {
		req, err := c.newRequest(ctx, request)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return llm.NewStatusError(providerName, resp.StatusCode, respBody)
		}

		answer, err = llm.DecodeCompletion(respBody)
		return err
	})

	return answer, err
}

// Close cleans up resources
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) newRequest(ctx context.Context, request *llm.ChatRequest) (*http.Request, error) {
	body, err := json.Marshal(c.buildRequest(request))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.options.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// setHeaders sets common headers for requests
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.options.APIKey)
	req.Header.Set("User-Agent", "agency-chat/1.0")

	for k, v := range c.options.Headers {
		req.Header.Set(k, v)
	}
}

// doWithRetries executes a function with retries
func (c *Client) doWithRetries(ctx context.Context, fn func() error) error {
	var lastErr error

	for i := 0; i <= c.options.MaxRetries; i++ {
		if i > 0 {
			delay := time.Duration(i) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			if llm.IsStatus(err, 429, 500, 502, 503) {
				continue
			}
			return err
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// buildRequest handles model-specific parameter differences for o-series
// reasoning models, which take max_completion_tokens and only the default
// temperature.
func (c *Client) buildRequest(request *llm.ChatRequest) map[string]interface{} {
	reqMap := map[string]interface{}{
		"model":    request.Model,
		"messages": request.Messages,
		"stream":   request.Stream,
	}

	modelLower := strings.ToLower(request.Model)
	isOSeries := strings.HasPrefix(modelLower, "o1") || strings.HasPrefix(modelLower, "o3") || strings.HasPrefix(modelLower, "o4")

	if request.Temperature > 0 && !isOSeries {
		reqMap["temperature"] = request.Temperature
	}

	if request.MaxTokens > 0 {
		if isOSeries {
			reqMap["max_completion_tokens"] = request.MaxTokens
		} else {
			reqMap["max_tokens"] = request.MaxTokens
		}
	}

	return reqMap
}
