package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/history"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		typ     StoreType
		opts    []StoreOption
		wantErr error
	}{
		{name: "memory", typ: StoreTypeMemory},
		{name: "default", typ: ""},
		{name: "file", typ: StoreTypeFile, opts: []StoreOption{WithDir(t.TempDir())}},
		{name: "redis without client", typ: StoreTypeRedis, wantErr: conversation.ErrInvalidConfig},
		{name: "postgres without db", typ: StoreTypePostgres, wantErr: conversation.ErrInvalidConfig},
		{name: "supabase without client", typ: StoreTypeSupabase, wantErr: conversation.ErrInvalidConfig},
		{name: "unknown", typ: "sqlite", wantErr: conversation.ErrInvalidStoreType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore(tt.typ, tt.opts...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, s)
			defer s.Close()
		})
	}
}

func TestNewStore_FileIsHistoryManager(t *testing.T) {
	s, err := NewStore(StoreTypeFile, WithDir(t.TempDir()))
	require.NoError(t, err)
	_, ok := s.(*history.Manager)
	assert.True(t, ok)
}

func TestNewStore_RedisDefaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	s, err := NewStore(StoreTypeRedis, WithRedisClient(client))
	require.NoError(t, err)
	defer s.Close()

	rs, ok := s.(*RedisStore)
	require.True(t, ok)
	assert.Equal(t, defaultTTL, rs.ttl)
	assert.Equal(t, "conversation:abc", rs.key("abc"))

	s2 := NewRedisStore(client, time.Hour)
	assert.Equal(t, time.Hour, s2.ttl)
}

func TestStoresRejectPersistedConversations(t *testing.T) {
	conv := conversation.New("o", conversation.ScopeGeneral, "")
	conv.ID = "existing"

	// Rejected before any network call is made.
	stores := []conversation.Store{
		NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:0"}), 0),
		NewPostgresStore(nil),
		NewSupabaseStore(nil, ""),
	}
	for _, s := range stores {
		_, err := s.Create(context.Background(), conv)
		assert.ErrorIs(t, err, conversation.ErrAlreadyPersisted)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	conv := &conversation.Conversation{
		OwnerID:   "owner",
		Scope:     conversation.ScopeTraffic,
		SubjectID: "acct-1",
		CreatedAt: created,
		Messages: []conversation.Message{
			{Role: conversation.RoleUser, Content: "Como está o CPC?"},
			{Role: conversation.RoleAssistant, Content: "Estável.", Reasoning: "olhei os dados", Model: "gpt-4o",
				Metadata: map[string]string{conversation.MetaTruncated: "true"}},
		},
	}

	rec, err := toRecord("id-1", conv)
	require.NoError(t, err)
	assert.Equal(t, "Como está o CPC?", rec.Title)
	assert.Equal(t, "traffic", rec.Scope)

	back, err := rec.conversation()
	require.NoError(t, err)
	assert.Equal(t, "id-1", back.ID)
	assert.Equal(t, created, back.CreatedAt)
	require.Len(t, back.Messages, 2)
	assert.Equal(t, "olhei os dados", back.Messages[1].Reasoning)
	assert.Equal(t, "true", back.Messages[1].Meta(conversation.MetaTruncated))
}

func TestRecordEmptyMessages(t *testing.T) {
	rec, err := toRecord("id", &conversation.Conversation{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(rec.Messages))
}
