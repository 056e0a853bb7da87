// Package history stores conversations as JSON files on local disk.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nachoal/agency-chat/conversation"
)

const metaVersion = "1.0"

// Manager is a file-backed conversation.Store
type Manager struct {
	dir      string
	metaPath string
	mu       sync.RWMutex
}

// DefaultDir is ~/.agency-chat/conversations
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".agency-chat", "conversations"), nil
}

// NewManager creates a history manager rooted at dir; empty dir uses DefaultDir
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	m := &Manager{
		dir:      dir,
		metaPath: filepath.Join(dir, "meta.json"),
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create conversations directory: %w", err)
	}

	if _, err := os.Stat(m.metaPath); os.IsNotExist(err) {
		if err := m.saveMeta(&MetaIndex{
			Version:    metaVersion,
			OwnerIndex: make(map[string][]string),
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize meta index: %w", err)
		}
	}

	return m, nil
}

// Create implements conversation.Store
func (m *Manager) Create(ctx context.Context, conv *conversation.Conversation) (string, error) {
	if conv.Persisted() {
		return "", conversation.ErrAlreadyPersisted
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := conv.Clone()
	stored.ID = conversation.NewID()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	if err := m.write(stored); err != nil {
		return "", err
	}

	meta, err := m.loadMeta()
	if err != nil {
		return "", fmt.Errorf("failed to load meta: %w", err)
	}
	if meta.OwnerIndex == nil {
		meta.OwnerIndex = make(map[string][]string)
	}
	meta.OwnerIndex[stored.OwnerID] = append(meta.OwnerIndex[stored.OwnerID], stored.ID)
	meta.LastConversation = stored.ID
	if err := m.saveMeta(meta); err != nil {
		return "", fmt.Errorf("failed to save meta: %w", err)
	}

	return stored.ID, nil
}

// Update implements conversation.Store
func (m *Manager) Update(ctx context.Context, id string, conv *conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.read(id)
	if err != nil {
		return err
	}

	stored := conv.Clone()
	stored.ID = id
	stored.CreatedAt = existing.CreatedAt
	return m.write(stored)
}

// Delete implements conversation.Store
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove conversation file: %w", err)
	}

	meta, err := m.loadMeta()
	if err != nil {
		return fmt.Errorf("failed to load meta: %w", err)
	}
	for owner, ids := range meta.OwnerIndex {
		meta.OwnerIndex[owner] = removeID(ids, id)
	}
	if meta.LastConversation == id {
		meta.LastConversation = ""
	}
	return m.saveMeta(meta)
}

// Get implements conversation.Store
func (m *Manager) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.read(id)
}

// List implements conversation.Lister, newest first
func (m *Manager) List(ctx context.Context, ownerID string) ([]conversation.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, err := m.loadMeta()
	if err != nil {
		return nil, fmt.Errorf("failed to load meta: %w", err)
	}

	out := []conversation.Summary{}
	for _, id := range meta.OwnerIndex[ownerID] {
		conv, err := m.read(id)
		if err != nil {
			continue
		}
		out = append(out, conversation.Summarize(conv))
	}
	conversation.SortSummaries(out)
	return out, nil
}

// Last returns the most recently created conversation
func (m *Manager) Last(ctx context.Context) (*conversation.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, err := m.loadMeta()
	if err != nil {
		return nil, fmt.Errorf("failed to load meta: %w", err)
	}
	if meta.LastConversation == "" {
		return nil, conversation.ErrNotFound
	}
	return m.read(meta.LastConversation)
}

// Close implements conversation.Store
func (m *Manager) Close() error { return nil }

// Private methods

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, filepath.Base(id)+".json")
}

func (m *Manager) read(id string) (*conversation.Conversation, error) {
	data, err := os.ReadFile(m.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conv conversation.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (m *Manager) write(conv *conversation.Conversation) error {
	conv.UpdatedAt = time.Now()
	conv.EnsureTitle()

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	// Write then rename so a crash never leaves a half-written file.
	tmp := m.path(conv.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	if err := os.Rename(tmp, m.path(conv.ID)); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return nil
}

func (m *Manager) loadMeta() (*MetaIndex, error) {
	data, err := os.ReadFile(m.metaPath)
	if err != nil {
		return nil, err
	}

	var meta MetaIndex
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (m *Manager) saveMeta(meta *MetaIndex) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.metaPath, data, 0644)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
