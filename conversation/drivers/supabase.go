package drivers

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"

	"github.com/nachoal/agency-chat/conversation"
)

const defaultSupabaseTable = "chat_conversations"

// SupabaseStore implements conversation.Store over a Supabase table
type SupabaseStore struct {
	client *supabase.Client
	table  string
}

// NewSupabaseStore creates a store. table defaults to chat_conversations.
func NewSupabaseStore(client *supabase.Client, table string) *SupabaseStore {
	if table == "" {
		table = defaultSupabaseTable
	}
	return &SupabaseStore{client: client, table: table}
}

// Create implements conversation.Store.
func (s *SupabaseStore) Create(ctx context.Context, conv *conversation.Conversation) (string, error) {
	if conv.Persisted() {
		return "", conversation.ErrAlreadyPersisted
	}

	rec, err := toRecord(conversation.NewID(), conv)
	if err != nil {
		return "", err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var rows []record
	_, err = s.client.From(s.table).
		Insert(rec, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return rec.ID, nil
}

// Update implements conversation.Store.
func (s *SupabaseStore) Update(ctx context.Context, id string, conv *conversation.Conversation) error {
	rec, err := toRecord(id, conv)
	if err != nil {
		return err
	}

	changes := map[string]any{
		"title":      rec.Title,
		"scope":      rec.Scope,
		"subject_id": rec.SubjectID,
		"messages":   rec.Messages,
		"updated_at": rec.UpdatedAt,
	}

	var rows []record
	_, err = s.client.From(s.table).
		Update(changes, "representation", "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if len(rows) == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

// Delete implements conversation.Store.
func (s *SupabaseStore) Delete(ctx context.Context, id string) error {
	_, _, err := s.client.From(s.table).
		Delete("minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// Get implements conversation.Store.
func (s *SupabaseStore) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	var rows []record
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if len(rows) == 0 {
		return nil, conversation.ErrNotFound
	}
	return rows[0].conversation()
}

// List implements conversation.Lister.
func (s *SupabaseStore) List(ctx context.Context, ownerID string) ([]conversation.Summary, error) {
	var rows []record
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("owner_id", ownerID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	out := make([]conversation.Summary, 0, len(rows))
	for i := range rows {
		conv, err := rows[i].conversation()
		if err != nil {
			continue
		}
		out = append(out, conversation.Summarize(conv))
	}
	conversation.SortSummaries(out)
	return out, nil
}

// Close implements conversation.Store.
func (s *SupabaseStore) Close() error { return nil }
