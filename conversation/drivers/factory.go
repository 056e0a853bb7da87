// Package drivers provides the persistent conversation.Store implementations
// and a factory selecting one by type.
package drivers

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"

	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/history"
)

// StoreType represents the type of conversation store.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeFile     StoreType = "file"
	StoreTypeRedis    StoreType = "redis"
	StoreTypePostgres StoreType = "postgres"
	StoreTypeSupabase StoreType = "supabase"
)

// StoreOption is a functional option for configuring a conversation store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient    *redis.Client
	redisTTL       time.Duration
	db             *sqlx.DB
	supabaseClient *supabase.Client
	table          string
	dir            string
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithRedisTTL sets the TTL for Redis keys.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// WithDB sets the connection for the Postgres store.
func WithDB(db *sqlx.DB) StoreOption {
	return func(c *storeConfig) { c.db = db }
}

// WithSupabaseClient sets the client for the Supabase store.
func WithSupabaseClient(client *supabase.Client) StoreOption {
	return func(c *storeConfig) { c.supabaseClient = client }
}

// WithTable overrides the Supabase table name.
func WithTable(table string) StoreOption {
	return func(c *storeConfig) { c.table = table }
}

// WithDir sets the directory for the file store.
func WithDir(dir string) StoreOption {
	return func(c *storeConfig) { c.dir = dir }
}

// NewStore creates a conversation store of the given type. Backends that need
// a client return conversation.ErrInvalidConfig when it is missing.
func NewStore(storeType StoreType, opts ...StoreOption) (conversation.Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory, "":
		return conversation.NewMemoryStore(), nil

	case StoreTypeFile:
		m, err := history.NewManager(cfg.dir)
		if err != nil {
			return nil, err
		}
		return m, nil

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, conversation.ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.redisTTL), nil

	case StoreTypePostgres:
		if cfg.db == nil {
			return nil, conversation.ErrInvalidConfig
		}
		return NewPostgresStore(cfg.db), nil

	case StoreTypeSupabase:
		if cfg.supabaseClient == nil {
			return nil, conversation.ErrInvalidConfig
		}
		return NewSupabaseStore(cfg.supabaseClient, cfg.table), nil

	default:
		return nil, conversation.ErrInvalidStoreType
	}
}
