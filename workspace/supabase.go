package workspace

import (
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"

	"github.com/nachoal/agency-chat/budget"
)

// SupabaseRepository reads workspace records from the agency's Supabase project
type SupabaseRepository struct {
	client *supabase.Client
}

// NewSupabaseRepository creates a repository
func NewSupabaseRepository(client *supabase.Client) *SupabaseRepository {
	return &SupabaseRepository{client: client}
}

type documentRow struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type projectRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type taskRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Client implements Repository
func (r *SupabaseRepository) Client(ctx context.Context, id string) (*Client, error) {
	var rows []Client
	_, err := r.client.From("clients").
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// AdAccount implements Repository
func (r *SupabaseRepository) AdAccount(ctx context.Context, id string) (*AdAccount, error) {
	var rows []AdAccount
	_, err := r.client.From("ad_accounts").
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get ad account: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// Documents implements Repository
func (r *SupabaseRepository) Documents(ctx context.Context, clientID string) ([]budget.Item, error) {
	var rows []documentRow
	_, err := r.client.From("client_documents").
		Select("id,title,content", "", false).
		Eq("client_id", clientID).
		Order("updated_at", nil).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	items := make([]budget.Item, len(rows))
	for i, d := range rows {
		items[i] = budget.Item{ID: d.ID, Kind: "document", Title: d.Title, Body: d.Content}
	}
	return items, nil
}

// Projects implements Repository
func (r *SupabaseRepository) Projects(ctx context.Context, clientID string) ([]budget.Item, error) {
	var rows []projectRow
	_, err := r.client.From("projects").
		Select("id,name,description,status", "", false).
		Eq("client_id", clientID).
		Order("updated_at", nil).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	items := make([]budget.Item, len(rows))
	for i, p := range rows {
		items[i] = budget.Item{ID: p.ID, Kind: "project", Title: p.Name, Body: p.Description, Status: p.Status}
	}
	return items, nil
}

// Tasks implements Repository
func (r *SupabaseRepository) Tasks(ctx context.Context, clientID string) ([]budget.Item, error) {
	var rows []taskRow
	_, err := r.client.From("tasks").
		Select("id,title,description,status", "", false).
		Eq("client_id", clientID).
		Order("updated_at", nil).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	items := make([]budget.Item, len(rows))
	for i, t := range rows {
		items[i] = budget.Item{ID: t.ID, Kind: "task", Title: t.Title, Body: t.Description, Status: t.Status}
	}
	return items, nil
}
