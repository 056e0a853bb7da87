package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_Success(t *testing.T) {
	var got httpImageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"imageUrl":"https://cdn/img.png"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("flux", srv.URL, WithAPIKey("secret"), WithDefaultModel("flux-dev"))
	res, err := p.Generate(context.Background(), &Request{
		Prompt:         "um gato",
		ReferenceImage: []byte("png"),
		Strength:       0.7,
		Width:          512,
		Height:         768,
	})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/img.png", res.ImageURL)
	assert.Equal(t, "flux", res.Provider)
	assert.Equal(t, "flux-dev", got.Model)
	assert.Equal(t, 512, got.Width)
	assert.Equal(t, 768, got.Height)
	assert.Equal(t, 0.7, got.Strength)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png")), got.ImageBase64)
}

func TestHTTPProvider_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		fallback bool
	}{
		{"success false", http.StatusOK, `{"success":false,"error":"no credits"}`, true},
		{"missing url", http.StatusOK, `{"success":true}`, true},
		{"garbage", http.StatusOK, `<html>`, true},
		{"not found", http.StatusNotFound, `{"error":"no route"}`, true},
		{"method not allowed", http.StatusMethodNotAllowed, ``, true},
		{"bad request", http.StatusBadRequest, `{"error":"prompt too long"}`, false},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPProvider("p", srv.URL).Generate(context.Background(), &Request{Prompt: "x"})

			require.Error(t, err)
			assert.Equal(t, tt.fallback, ShouldFallback(err), err.Error())
		})
	}
}

func TestHTTPProvider_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPProvider("p", url).Generate(context.Background(), &Request{Prompt: "x"})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, ShouldFallback(err))
}

func TestDispatcher_HTTPFallbackEndToEnd(t *testing.T) {
	var primaryCalls, secondaryCalls int
	var secondaryGot httpImageRequest

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls++
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer primary.Close()
	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondaryCalls++
		_ = json.NewDecoder(r.Body).Decode(&secondaryGot)
		_, _ = w.Write([]byte(`{"success":true,"imageUrl":"https://cdn/b.png"}`))
	}))
	defer secondary.Close()

	req := &Request{Prompt: "banner", ReferenceImage: []byte("ref"), Strength: 0.4}
	res, err := NewDispatcher().Generate(context.Background(), req,
		NewHTTPProvider("a", primary.URL), NewHTTPProvider("b", secondary.URL))

	require.NoError(t, err)
	assert.Equal(t, "b", res.Provider)
	assert.Equal(t, 1, primaryCalls)
	assert.Equal(t, 1, secondaryCalls)
	assert.Equal(t, "banner", secondaryGot.Prompt)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("ref")), secondaryGot.ImageBase64)
}

func TestOpenAIProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "um farol", body["prompt"])
		assert.Equal(t, "1024x1024", body["size"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[{"url":"https://oai/img.png"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "key", srv.URL, "")
	res, err := p.Generate(context.Background(), &Request{Prompt: "um farol"})

	require.NoError(t, err)
	assert.Equal(t, "https://oai/img.png", res.ImageURL)
	assert.Equal(t, "openai", res.Provider)
}

func TestOpenAIProvider_StatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider("openai", "key", srv.URL, "").Generate(context.Background(), &Request{Prompt: "x"})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.True(t, ShouldFallback(err))
}

func TestOpenAIProvider_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider("openai", "key", srv.URL, "").Generate(context.Background(), &Request{Prompt: "x"})

	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestErrorMessage_CutsOnRuneBoundary(t *testing.T) {
	msg := errorMessage([]byte(strings.Repeat("ção ", 100)))

	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, 256, utf8.RuneCountInString(msg))
}
