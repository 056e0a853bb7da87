package feedback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/supabase-community/supabase-go"
)

const feedbackTable = "chat_feedback"

type row struct {
	ID               string          `json:"id" db:"id"`
	ConversationID   string          `json:"conversation_id" db:"conversation_id"`
	MessageIndex     int             `json:"message_index" db:"message_index"`
	Kind             string          `json:"kind" db:"kind"`
	OriginalContent  string          `json:"original_content" db:"original_content"`
	CorrectedContent *string         `json:"corrected_content,omitempty" db:"corrected_content"`
	Tags             json.RawMessage `json:"tags" db:"tags"`
	CreatedAt        string          `json:"created_at" db:"created_at"`
}

func toRow(ev Event) (*row, error) {
	tags := ev.Tags
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return &row{
		ID:               uuid.New().String(),
		ConversationID:   ev.ConversationID,
		MessageIndex:     ev.MessageIndex,
		Kind:             string(ev.Kind),
		OriginalContent:  ev.OriginalContent,
		CorrectedContent: ev.CorrectedContent,
		Tags:             raw,
		CreatedAt:        ev.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}, nil
}

// SupabaseRecorder inserts events into the chat_feedback table
type SupabaseRecorder struct {
	client *supabase.Client
}

// NewSupabaseRecorder creates a recorder
func NewSupabaseRecorder(client *supabase.Client) *SupabaseRecorder {
	return &SupabaseRecorder{client: client}
}

// Record implements Recorder
func (r *SupabaseRecorder) Record(ctx context.Context, ev Event) error {
	rec, err := toRow(ev)
	if err != nil {
		return err
	}
	_, _, err = r.client.From(feedbackTable).
		Insert(rec, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// SQLRecorder inserts events into Postgres
type SQLRecorder struct {
	db *sqlx.DB
}

// NewSQLRecorder creates a recorder
func NewSQLRecorder(db *sqlx.DB) *SQLRecorder {
	return &SQLRecorder{db: db}
}

// Record implements Recorder
func (r *SQLRecorder) Record(ctx context.Context, ev Event) error {
	rec, err := toRow(ev)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO chat_feedback (id, conversation_id, message_index, kind, original_content, corrected_content, tags, created_at)
		VALUES (:id, :conversation_id, :message_index, :kind, :original_content, :corrected_content, :tags, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}
