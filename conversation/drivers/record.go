package drivers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nachoal/agency-chat/conversation"
)

// record is the row shape shared by the SQL and Supabase drivers
type record struct {
	ID        string          `json:"id" db:"id"`
	OwnerID   string          `json:"owner_id" db:"owner_id"`
	Scope     string          `json:"scope" db:"scope"`
	SubjectID string          `json:"subject_id" db:"subject_id"`
	Title     string          `json:"title" db:"title"`
	Messages  json.RawMessage `json:"messages" db:"messages"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

func toRecord(id string, c *conversation.Conversation) (*record, error) {
	msgs := c.Messages
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}

	title := c.Title
	if title == "" {
		title = conversation.GenerateTitle(c.Messages)
	}

	return &record{
		ID:        id,
		OwnerID:   c.OwnerID,
		Scope:     string(c.Scope),
		SubjectID: c.SubjectID,
		Title:     title,
		Messages:  raw,
		CreatedAt: c.CreatedAt,
		UpdatedAt: time.Now(),
	}, nil
}

func (r *record) conversation() (*conversation.Conversation, error) {
	c := &conversation.Conversation{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Scope:     conversation.Scope(r.Scope),
		SubjectID: r.SubjectID,
		Title:     r.Title,
		Messages:  []conversation.Message{},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Messages) > 0 {
		if err := json.Unmarshal(r.Messages, &c.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
	}
	return c, nil
}
