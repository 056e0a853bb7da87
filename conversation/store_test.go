package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	conv := New("owner-1", ScopeClient, "client-9")
	conv.Messages = append(conv.Messages,
		Message{Role: RoleUser, Content: "Resumo da semana\ncom detalhes"},
		Message{Role: RoleAssistant, Content: "Aqui está."},
	)

	id, err := s.Create(ctx, conv)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Empty(t, conv.ID, "Create must not mutate the caller's value")

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Resumo da semana", got.Title)
	assert.Len(t, got.Messages, 2)

	conv.ID = id
	_, err = s.Create(ctx, conv)
	assert.ErrorIs(t, err, ErrAlreadyPersisted)

	conv.Messages = append(conv.Messages, Message{Role: RoleUser, Content: "mais"})
	require.NoError(t, s.Update(ctx, id, conv))
	got, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 3)

	list, err := s.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Messages)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, id, conv), ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	conv := New("o", ScopeGeneral, "")
	conv.Messages = []Message{{Role: RoleUser, Content: "oi", Metadata: map[string]string{"k": "v"}}}
	id, err := s.Create(ctx, conv)
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	got.Messages[0].Content = "changed"
	got.Messages[0].Metadata["k"] = "changed"

	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "oi", again.Messages[0].Content)
	assert.Equal(t, "v", again.Messages[0].Meta("k"))
}

func TestGenerateTitle(t *testing.T) {
	assert.Equal(t, "Nova conversa", GenerateTitle(nil))
	assert.Equal(t, "primeira", GenerateTitle([]Message{
		{Role: RoleAssistant, Content: "olá"},
		{Role: RoleUser, Content: "  primeira\nsegunda"},
	}))

	long := strings.Repeat("á", 80)
	title := GenerateTitle([]Message{{Role: RoleUser, Content: long}})
	assert.Equal(t, 50, len([]rune(title)))
	assert.True(t, strings.HasSuffix(title, "..."))
}

func TestConversation_LastIndex(t *testing.T) {
	c := &Conversation{Messages: []Message{
		{Role: RoleUser}, {Role: RoleAssistant}, {Role: RoleUser},
	}}
	assert.Equal(t, 1, c.LastIndex(RoleAssistant))
	assert.Equal(t, 2, c.LastIndex(RoleUser))
	assert.Equal(t, -1, (&Conversation{}).LastIndex(RoleUser))
}
