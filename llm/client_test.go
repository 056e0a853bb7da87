package llm

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewStatusError_TruncatesBodyOnRunes(t *testing.T) {
	body := []byte(strings.Repeat("não autorizado ", 60))

	err := NewStatusError("OpenAI", 401, body)

	if !utf8.ValidString(err.Body) {
		t.Fatalf("body is not valid UTF-8: %q", err.Body)
	}
	if !strings.HasSuffix(err.Body, "...") {
		t.Errorf("long body should end with an ellipsis: %q", err.Body)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(err.Body, "...")); n != 512 {
		t.Errorf("kept %d runes, want 512", n)
	}
	if !IsStatus(err, 401) {
		t.Error("IsStatus should match the status code")
	}
}

func TestDecodeCompletion_Shapes(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"choices":[{"message":{"content":"a"}}]}`, "a"},
		{`{"text":"b"}`, "b"},
		{`{"content":"c"}`, "c"},
	}
	for _, tt := range tests {
		got, err := DecodeCompletion([]byte(tt.body))
		if err != nil || got != tt.want {
			t.Errorf("DecodeCompletion(%s) = %q, %v; want %q", tt.body, got, err, tt.want)
		}
	}
}
