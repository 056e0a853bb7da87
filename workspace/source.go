package workspace

import (
	"context"
	"fmt"
	"strings"

	"github.com/nachoal/agency-chat/budget"
	"github.com/nachoal/agency-chat/conversation"
)

const clientPersona = `Você é o assistente da agência para o cliente %s.
Responda em português, de forma objetiva, usando o contexto abaixo sobre o cliente,
seus documentos, projetos e tarefas. Se a informação não estiver no contexto, diga que não sabe.`

const trafficPersona = `Você é o analista de tráfego pago da agência para a conta %s.
Responda em português com recomendações práticas de mídia paga (campanhas, públicos,
orçamento, criativos), usando o contexto abaixo. Não invente métricas.`

// ClientSource is the context for the client-bound assistant
type ClientSource struct {
	repo     Repository
	clientID string
}

// NewClientSource creates a source for one client
func NewClientSource(repo Repository, clientID string) *ClientSource {
	return &ClientSource{repo: repo, clientID: clientID}
}

// Scope returns conversation.ScopeClient
func (s *ClientSource) Scope() conversation.Scope { return conversation.ScopeClient }

// SubjectID is the client id
func (s *ClientSource) SubjectID() string { return s.clientID }

// Persona is the system prompt for this client
func (s *ClientSource) Persona(ctx context.Context) string {
	name := s.clientID
	if c, err := s.repo.Client(ctx, s.clientID); err == nil && c.Name != "" {
		name = c.Name
	}
	return fmt.Sprintf(clientPersona, name)
}

// Load gathers the client snapshot
func (s *ClientSource) Load(ctx context.Context) (budget.Input, error) {
	c, err := s.repo.Client(ctx, s.clientID)
	if err != nil {
		return budget.Input{}, fmt.Errorf("load client %s: %w", s.clientID, err)
	}

	in := budget.Input{Profile: clientProfile(c)}
	if err := loadItems(ctx, s.repo, c.ID, &in); err != nil {
		return budget.Input{}, err
	}
	return in, nil
}

// TrafficSource is the context for the paid-traffic assistant
type TrafficSource struct {
	repo      Repository
	accountID string
}

// NewTrafficSource creates a source for one ad account
func NewTrafficSource(repo Repository, accountID string) *TrafficSource {
	return &TrafficSource{repo: repo, accountID: accountID}
}

// Scope returns conversation.ScopeTraffic
func (s *TrafficSource) Scope() conversation.Scope { return conversation.ScopeTraffic }

// SubjectID is the ad account id
func (s *TrafficSource) SubjectID() string { return s.accountID }

// Persona is the system prompt for this account
func (s *TrafficSource) Persona(ctx context.Context) string {
	name := s.accountID
	if a, err := s.repo.AdAccount(ctx, s.accountID); err == nil && a.Name != "" {
		name = a.Name
	}
	return fmt.Sprintf(trafficPersona, name)
}

// Load gathers the ad account snapshot plus its client's items
func (s *TrafficSource) Load(ctx context.Context) (budget.Input, error) {
	a, err := s.repo.AdAccount(ctx, s.accountID)
	if err != nil {
		return budget.Input{}, fmt.Errorf("load ad account %s: %w", s.accountID, err)
	}

	in := budget.Input{Profile: accountProfile(a)}
	if a.ClientID == "" {
		return in, nil
	}
	if c, err := s.repo.Client(ctx, a.ClientID); err == nil {
		in.Profile.Fields = append(in.Profile.Fields, budget.Field{Label: "Cliente", Value: c.Name})
	}
	if err := loadItems(ctx, s.repo, a.ClientID, &in); err != nil {
		return budget.Input{}, err
	}
	return in, nil
}

func loadItems(ctx context.Context, repo Repository, clientID string, in *budget.Input) error {
	var err error
	if in.Documents, err = repo.Documents(ctx, clientID); err != nil {
		return err
	}
	if in.Projects, err = repo.Projects(ctx, clientID); err != nil {
		return err
	}
	if in.Tasks, err = repo.Tasks(ctx, clientID); err != nil {
		return err
	}
	return nil
}

func clientProfile(c *Client) budget.Profile {
	return budget.Profile{
		Name: c.Name,
		Fields: []budget.Field{
			{Label: "Segmento", Value: c.Segment},
			{Label: "Site", Value: c.Website},
			{Label: "Público-alvo", Value: c.Audience},
			{Label: "Tom de voz", Value: c.Tone},
			{Label: "Observações", Value: strings.TrimSpace(c.Notes)},
		},
	}
}

func accountProfile(a *AdAccount) budget.Profile {
	p := budget.Profile{
		Name: a.Name,
		Fields: []budget.Field{
			{Label: "Plataforma", Value: a.Platform},
			{Label: "Objetivo", Value: a.Objective},
		},
	}
	if a.MonthlyBudget > 0 {
		p.Fields = append(p.Fields, budget.Field{Label: "Orçamento mensal", Value: fmt.Sprintf("R$ %.2f", a.MonthlyBudget)})
	}
	return p
}
