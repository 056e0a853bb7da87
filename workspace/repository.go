// Package workspace loads the agency data that backs each assistant: client
// profiles, ad accounts, documents, projects and tasks.
package workspace

import (
	"context"
	"errors"
	"sync"

	"github.com/nachoal/agency-chat/budget"
)

// ErrNotFound is returned when a client or ad account does not exist
var ErrNotFound = errors.New("workspace record not found")

// Client is an agency customer
type Client struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Segment  string `json:"segment"`
	Website  string `json:"website"`
	Audience string `json:"audience"`
	Tone     string `json:"tone"`
	Notes    string `json:"notes"`
}

// AdAccount is a paid-traffic account managed for a client
type AdAccount struct {
	ID            string  `json:"id"`
	ClientID      string  `json:"client_id"`
	Name          string  `json:"name"`
	Platform      string  `json:"platform"`
	Objective     string  `json:"objective"`
	MonthlyBudget float64 `json:"monthly_budget"`
}

// Repository reads workspace records. Lists come back most recent first.
type Repository interface {
	Client(ctx context.Context, id string) (*Client, error)
	AdAccount(ctx context.Context, id string) (*AdAccount, error)
	Documents(ctx context.Context, clientID string) ([]budget.Item, error)
	Projects(ctx context.Context, clientID string) ([]budget.Item, error)
	Tasks(ctx context.Context, clientID string) ([]budget.Item, error)
}

// StaticRepository serves records held in memory
type StaticRepository struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	adAccounts map[string]*AdAccount
	documents  map[string][]budget.Item
	projects   map[string][]budget.Item
	tasks      map[string][]budget.Item
}

// NewStaticRepository creates an empty repository
func NewStaticRepository() *StaticRepository {
	return &StaticRepository{
		clients:    make(map[string]*Client),
		adAccounts: make(map[string]*AdAccount),
		documents:  make(map[string][]budget.Item),
		projects:   make(map[string][]budget.Item),
		tasks:      make(map[string][]budget.Item),
	}
}

// AddClient registers a client along with its context items
func (r *StaticRepository) AddClient(c Client, documents, projects, tasks []budget.Item) *StaticRepository {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c.ID] = &c
	r.documents[c.ID] = documents
	r.projects[c.ID] = projects
	r.tasks[c.ID] = tasks
	return r
}

// AddAdAccount registers an ad account
func (r *StaticRepository) AddAdAccount(a AdAccount) *StaticRepository {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adAccounts[a.ID] = &a
	return r
}

// Client implements Repository
func (r *StaticRepository) Client(_ context.Context, id string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

// AdAccount implements Repository
func (r *StaticRepository) AdAccount(_ context.Context, id string) (*AdAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adAccounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *a
	return &out, nil
}

// Documents implements Repository
func (r *StaticRepository) Documents(_ context.Context, clientID string) ([]budget.Item, error) {
	return r.list(r.documents, clientID), nil
}

// Projects implements Repository
func (r *StaticRepository) Projects(_ context.Context, clientID string) ([]budget.Item, error) {
	return r.list(r.projects, clientID), nil
}

// Tasks implements Repository
func (r *StaticRepository) Tasks(_ context.Context, clientID string) ([]budget.Item, error) {
	return r.list(r.tasks, clientID), nil
}

func (r *StaticRepository) list(m map[string][]budget.Item, clientID string) []budget.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]budget.Item(nil), m[clientID]...)
}
