package chat

import (
	"context"
	"strings"

	"github.com/nachoal/agency-chat/budget"
	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/llm"
)

const defaultPersona = "Você é o assistente da agência. Responda em português, de forma clara e objetiva."

// Window returns the most recent n messages, oldest first. n <= 0 means none.
func Window(msgs []conversation.Message, n int) []conversation.Message {
	if n <= 0 {
		return nil
	}
	if len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

// systemPrompt joins persona and the budgeted context block
func (s *Session) systemPrompt(ctx context.Context, selected []string) string {
	if s.source == nil {
		return defaultPersona
	}

	persona := s.source.Persona(ctx)
	in, err := s.source.Load(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to load context, continuing without it")
		return persona
	}

	block := budget.Build(s.caps, s.model, in, selected)
	if block == "" {
		return persona
	}
	return persona + "\n\n# Contexto\n\n" + block
}

// buildRequest assembles system prompt, windowed prior history and the new
// user message. Reasoning traces are never included.
func (s *Session) buildRequest(ctx context.Context, prior []conversation.Message, user conversation.Message, selected []string) *llm.ChatRequest {
	system := s.systemPrompt(ctx, selected)
	window := Window(prior, s.caps.OptimalHistoryLength(s.model))

	msgs := make([]llm.Message, 0, len(window)+2)
	for _, m := range window {
		content := historyContent(m)
		if content == "" {
			continue
		}
		msgs = append(msgs, llm.Message{Role: llm.Role(m.Role), Content: content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: user.Content})

	if s.caps.IsReasoningModel(s.model) {
		// These models reject the system role; fold it into the first user turn.
		for i := range msgs {
			if msgs[i].Role == llm.RoleUser {
				msgs[i].Content = system + "\n\n---\n\n" + msgs[i].Content
				break
			}
		}
	} else {
		msgs = append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, msgs...)
	}

	return &llm.ChatRequest{
		Model:    s.model,
		Messages: msgs,
		Stream:   s.streaming,
	}
}

func historyContent(m conversation.Message) string {
	content := strings.TrimSpace(m.Content)
	if m.ImageURL != "" {
		if content != "" {
			content += "\n"
		}
		content += "[imagem: " + m.ImageURL + "]"
	}
	return content
}
