package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for conversation store operations.
var (
	ErrNotFound         = errors.New("conversation not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrAlreadyPersisted = errors.New("conversation already has an id")
)

// Store persists conversations. Writes are last-write-wins.
type Store interface {
	// Create stores a conversation that has no id yet and returns the new id.
	// Returns ErrAlreadyPersisted if the conversation already has one.
	Create(ctx context.Context, conv *Conversation) (string, error)

	// Update replaces the stored conversation with the given id.
	// Returns ErrNotFound if it does not exist.
	Update(ctx context.Context, id string, conv *Conversation) error

	// Delete removes a conversation. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Get retrieves a conversation. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*Conversation, error)

	// Close releases any resources held by the store.
	Close() error
}

// Summary is a listing entry
type Summary struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Scope     Scope     `json:"scope" db:"scope"`
	SubjectID string    `json:"subject_id" db:"subject_id"`
	Messages  int       `json:"messages" db:"messages"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Lister is implemented by stores that can enumerate an owner's conversations
type Lister interface {
	List(ctx context.Context, ownerID string) ([]Summary, error)
}

// NewID returns a fresh conversation id
func NewID() string {
	return uuid.New().String()
}

// Summarize builds the listing entry for c
func Summarize(c *Conversation) Summary {
	return Summary{
		ID:        c.ID,
		Title:     c.Title,
		Scope:     c.Scope,
		SubjectID: c.SubjectID,
		Messages:  len(c.Messages),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// SortSummaries orders newest-updated first
func SortSummaries(s []Summary) {
	sort.Slice(s, func(i, j int) bool {
		return s[i].UpdatedAt.After(s[j].UpdatedAt)
	})
}

// MemoryStore keeps conversations in a map. Stored values are copies.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*Conversation)}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, conv *Conversation) (string, error) {
	if conv.Persisted() {
		return "", ErrAlreadyPersisted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := conv.Clone()
	stored.ID = NewID()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	stored.EnsureTitle()

	s.convs[stored.ID] = stored
	return stored.ID, nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, id string, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}

	stored := conv.Clone()
	stored.ID = id
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	stored.EnsureTitle()

	s.convs[id] = stored
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.convs, id)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

// List implements Lister.
func (s *MemoryStore) List(ctx context.Context, ownerID string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Summary{}
	for _, c := range s.convs {
		if c.OwnerID == ownerID {
			out = append(out, Summarize(c))
		}
	}
	SortSummaries(out)
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.convs = make(map[string]*Conversation)
	return nil
}
