package drivers

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nachoal/agency-chat/conversation"
)

// PostgresStore implements conversation.Store on a chat_conversations table
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a store over an open connection
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create implements conversation.Store.
func (s *PostgresStore) Create(ctx context.Context, conv *conversation.Conversation) (string, error) {
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

	query := `
		INSERT INTO chat_conversations (id, owner_id, scope, subject_id, title, messages, created_at, updated_at)
		VALUES (:id, :owner_id, :scope, :subject_id, :title, :messages, :created_at, :updated_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Update implements conversation.Store.
func (s *PostgresStore) Update(ctx context.Context, id string, conv *conversation.Conversation) error {
	rec, err := toRecord(id, conv)
	if err != nil {
		return err
	}

	query := `
		UPDATE chat_conversations
		SET title = :title, scope = :scope, subject_id = :subject_id, messages = :messages, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := s.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

// Delete implements conversation.Store.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chat_conversations WHERE id = $1", id)
	return err
}

// Get implements conversation.Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	var rec record
	query := `
		SELECT id, owner_id, scope, subject_id, title, messages, created_at, updated_at
		FROM chat_conversations
		WHERE id = $1
	`
	if err := s.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, conversation.ErrNotFound
		}
		return nil, err
	}
	return rec.conversation()
}

// List implements conversation.Lister.
func (s *PostgresStore) List(ctx context.Context, ownerID string) ([]conversation.Summary, error) {
	out := []conversation.Summary{}
	query := `
		SELECT id, title, scope, subject_id, jsonb_array_length(messages) AS messages, created_at, updated_at
		FROM chat_conversations
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`
	if err := s.db.SelectContext(ctx, &out, query, ownerID); err != nil {
		return nil, err
	}
	return out, nil
}

// Close implements conversation.Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
