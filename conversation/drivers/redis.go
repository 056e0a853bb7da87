package drivers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nachoal/agency-chat/conversation"
)

const (
	// Redis key prefix for conversations
	conversationKeyPrefix = "conversation:"
	// Default TTL for conversation keys (30 days)
	defaultTTL = 30 * 24 * time.Hour
)

// RedisStore implements conversation.Store using Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-based conversation store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Create implements conversation.Store.
func (s *RedisStore) Create(ctx context.Context, conv *conversation.Conversation) (string, error) {
	if conv.Persisted() {
		return "", conversation.ErrAlreadyPersisted
	}

	stored := conv.Clone()
	stored.ID = conversation.NewID()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	stored.EnsureTitle()

	val, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}

	ok, err := s.client.SetNX(ctx, s.key(stored.ID), val, s.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", conversation.ErrAlreadyPersisted
	}
	return stored.ID, nil
}

// Update implements conversation.Store.
// Only overwrites an existing key, so a deleted conversation stays deleted.
func (s *RedisStore) Update(ctx context.Context, id string, conv *conversation.Conversation) error {
	stored := conv.Clone()
	stored.ID = id
	stored.UpdatedAt = time.Now()
	stored.EnsureTitle()

	val, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	ok, err := s.client.SetXX(ctx, s.key(id), val, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return conversation.ErrNotFound
	}
	return nil
}

// Delete implements conversation.Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Get implements conversation.Store.
// Refreshes TTL on every read.
func (s *RedisStore) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var conv conversation.Conversation
	if err := json.Unmarshal(val, &conv); err != nil {
		return nil, err
	}

	// TTL refresh is best effort.
	_ = s.client.Expire(ctx, key, s.ttl).Err()

	return &conv, nil
}

// Close implements conversation.Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return conversationKeyPrefix + id
}
