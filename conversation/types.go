// Package conversation holds the persisted chat transcript and the store
// contract used to save it.
package conversation

import (
	"strings"
	"time"
)

// Role of a message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Scope tags what a conversation is bound to
type Scope string

const (
	ScopeClient  Scope = "client"
	ScopeTraffic Scope = "traffic"
	ScopeGeneral Scope = "general"
)

// Metadata keys used on messages
const (
	MetaImageChoice   = "image_choice"
	MetaImagePrompt   = "image_prompt"
	MetaImageProvider = "image_provider"
	MetaTruncated     = "truncated"
	MetaCorrected     = "corrected"
)

const maxTitleLength = 50

// Message is one turn in a conversation
type Message struct {
	Role      Role              `json:"role" db:"role"`
	Content   string            `json:"content" db:"content"`
	ImageURL  string            `json:"image_url,omitempty" db:"image_url"`
	Reasoning string            `json:"reasoning,omitempty" db:"reasoning"`
	Model     string            `json:"model,omitempty" db:"model"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// Meta returns a metadata value, or "" when unset
func (m Message) Meta(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// SetMeta sets a metadata value, allocating the map if needed
func (m *Message) SetMeta(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// Conversation is an ordered transcript. ID is empty until first persisted
// and never changes afterwards.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Scope     Scope     `json:"scope"`
	SubjectID string    `json:"subject_id,omitempty"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an unsaved conversation
func New(ownerID string, scope Scope, subjectID string) *Conversation {
	now := time.Now()
	return &Conversation{
		OwnerID:   ownerID,
		Scope:     scope,
		SubjectID: subjectID,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = CloneMessages(c.Messages)
	return &out
}

// CloneMessages deep-copies a message slice
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.Metadata != nil {
			out[i].Metadata = make(map[string]string, len(m.Metadata))
			for k, v := range m.Metadata {
				out[i].Metadata[k] = v
			}
		}
	}
	return out
}

// Persisted reports whether the conversation has been created in a store
func (c *Conversation) Persisted() bool {
	return c.ID != ""
}

// LastIndex returns the index of the last message with role, or -1
func (c *Conversation) LastIndex(role Role) int {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == role {
			return i
		}
	}
	return -1
}

// EnsureTitle derives the title from the first user message when unset
func (c *Conversation) EnsureTitle() {
	if c.Title == "" {
		c.Title = GenerateTitle(c.Messages)
	}
}

// GenerateTitle uses the first line of the first user message
func GenerateTitle(msgs []Message) string {
	for _, msg := range msgs {
		if msg.Role != RoleUser || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if idx := strings.IndexByte(content, '\n'); idx != -1 {
			content = content[:idx]
		}
		r := []rune(content)
		if len(r) > maxTitleLength {
			content = string(r[:maxTitleLength-3]) + "..."
		}
		return content
	}
	return "Nova conversa"
}
