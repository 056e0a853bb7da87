package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/agency-chat/budget"
	"github.com/nachoal/agency-chat/conversation"
)

func fixture() *StaticRepository {
	return NewStaticRepository().
		AddClient(Client{ID: "c1", Name: "Padaria Sol", Segment: "Alimentação"},
			[]budget.Item{{ID: "d1", Title: "Briefing", Body: "Pães artesanais"}},
			[]budget.Item{{ID: "p1", Title: "Site"}},
			[]budget.Item{{ID: "t1", Title: "Posts", Status: "done"}},
		).
		AddAdAccount(AdAccount{ID: "a1", ClientID: "c1", Name: "Sol Meta Ads", Platform: "Meta", MonthlyBudget: 1500})
}

func TestClientSource(t *testing.T) {
	ctx := context.Background()
	src := NewClientSource(fixture(), "c1")

	assert.Equal(t, conversation.ScopeClient, src.Scope())
	assert.Equal(t, "c1", src.SubjectID())
	assert.Contains(t, src.Persona(ctx), "Padaria Sol")

	in, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Padaria Sol", in.Profile.Name)
	assert.Len(t, in.Documents, 1)
	assert.Len(t, in.Projects, 1)
	assert.Len(t, in.Tasks, 1)
}

func TestClientSource_Missing(t *testing.T) {
	_, err := NewClientSource(fixture(), "nope").Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrafficSource(t *testing.T) {
	ctx := context.Background()
	src := NewTrafficSource(fixture(), "a1")

	assert.Equal(t, conversation.ScopeTraffic, src.Scope())
	assert.Contains(t, src.Persona(ctx), "Sol Meta Ads")

	in, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sol Meta Ads", in.Profile.Name)
	assert.Contains(t, in.Profile.Fields, budget.Field{Label: "Orçamento mensal", Value: "R$ 1500.00"})
	assert.Contains(t, in.Profile.Fields, budget.Field{Label: "Cliente", Value: "Padaria Sol"})
	assert.Len(t, in.Tasks, 1)
}

func TestStaticRepository_ReturnsCopies(t *testing.T) {
	repo := fixture()
	docs, _ := repo.Documents(context.Background(), "c1")
	docs[0].Title = "changed"

	again, _ := repo.Documents(context.Background(), "c1")
	assert.Equal(t, "Briefing", again[0].Title)
}
