package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Client defines the interface for LLM completion providers
type Client interface {
	// OpenStream dispatches a streaming request and returns the raw
	// server-sent-event body. The caller owns the returned reader and must
	// close it on every path.
	OpenStream(ctx context.Context, request *ChatRequest) (io.ReadCloser, error)

	// Complete sends a non-streaming request and returns the answer text
	Complete(ctx context.Context, request *ChatRequest) (string, error)

	// Close cleans up any resources
	Close() error
}

// StatusError is returned when the provider answers with a non-success HTTP status
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: status %d, body: %s", e.Provider, e.StatusCode, e.Body)
}

// ErrNoContent is returned when a well-formed completion carries no text
var ErrNoContent = errors.New("completion has no content")

// DecodeCompletion extracts the answer text from a non-streaming response body.
// It accepts the chat-completions shape as well as the flat {text} and
// {content} shapes some gateways return.
func DecodeCompletion(body []byte) (string, error) {
	var frame Frame
	if err := json.Unmarshal(body, &frame); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if frame.Error != nil && frame.Error.Message != "" {
		return "", fmt.Errorf("provider error: %s", frame.Error.Message)
	}

	switch {
	case len(frame.Choices) > 0 && frame.Choices[0].Message != nil && frame.Choices[0].Message.Content != nil:
		return *frame.Choices[0].Message.Content, nil
	case frame.Text != nil:
		return *frame.Text, nil
	case frame.Content != nil:
		return *frame.Content, nil
	}
	return "", ErrNoContent
}

// IsStatus reports whether err is a StatusError with one of the given codes
func IsStatus(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.StatusCode == c {
			return true
		}
	}
	return false
}

// truncateBody keeps error bodies readable in logs
func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if r := []rune(s); len(r) > 512 {
		return string(r[:512]) + "..."
	}
	return s
}

// NewStatusError builds a StatusError with a truncated body
func NewStatusError(provider string, status int, body []byte) *StatusError {
	return &StatusError{Provider: provider, StatusCode: status, Body: truncateBody(body)}
}
