// Package imagegen dispatches image generation to interchangeable providers,
// falling back to a secondary provider on a defined set of failures.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors for image generation.
var (
	ErrInvalidRequest = errors.New("invalid image request")
	ErrEmptyResult    = errors.New("provider returned no image")
	ErrNoProvider     = errors.New("no image provider available")
)

// Request describes one image to generate
type Request struct {
	Prompt         string
	ReferenceImage []byte
	Provider       string
	Model          string
	Width          int
	Height         int
	Strength       float64
	Steps          int
}

// Validate rejects requests that must never reach a provider
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	hasPrompt := strings.TrimSpace(r.Prompt) != ""
	hasReference := len(r.ReferenceImage) > 0
	if !hasPrompt && !hasReference {
		return fmt.Errorf("%w: prompt or reference image required", ErrInvalidRequest)
	}
	if hasReference && r.Strength <= 0 {
		return fmt.Errorf("%w: reference image requires strength", ErrInvalidRequest)
	}
	return nil
}

// Result is a generated image and who produced it
type Result struct {
	ImageURL string
	Provider string
	Model    string
	// FellBack is set when the secondary provider served the request
	FellBack bool
	// PrimaryErr is the failure that caused the fallback, if any
	PrimaryErr error
}

// Provider is one image generation backend
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Result, error)
}

// StatusError is an HTTP-level failure reported by a provider
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// TransportError wraps a network failure talking to a provider
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ShouldFallback reports whether err from a primary provider allows trying
// the secondary: transport failures, not-found/method-not-allowed statuses
// and empty results.
func ShouldFallback(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrEmptyResult) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 404 || se.StatusCode == 405
	}
	return false
}
