package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nachoal/agency-chat/conversation"
)

const assistantMessageWrapWidth = 74

var (
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	traceTagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Bold(true)
	traceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	noteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	choiceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// newRenderer uses the non-colored style so text stays visible on any theme
func newRenderer() *glamour.TermRenderer {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(assistantMessageWrapWidth),
	)
	return renderer
}

func renderUserMessage(content string) string {
	return fmt.Sprintf("👤 Você: %s", userStyle.Render(content))
}

func renderMarkdown(renderer *glamour.TermRenderer, content string) string {
	if renderer != nil {
		if rendered, err := renderer.Render(content); err == nil {
			return strings.TrimRight(rendered, "\n")
		}
	}
	return content
}

func renderReasoning(reasoning string) string {
	return fmt.Sprintf("%s\n%s\n%s",
		traceTagStyle.Render("<raciocínio>"),
		traceStyle.Render(strings.TrimSpace(reasoning)),
		traceTagStyle.Render("</raciocínio>"),
	)
}

func renderAssistantMessage(renderer *glamour.TermRenderer, msg conversation.Message) string {
	var sections []string
	if strings.TrimSpace(msg.Reasoning) != "" {
		sections = append(sections, renderReasoning(msg.Reasoning))
	}
	if strings.TrimSpace(msg.Content) != "" {
		sections = append(sections, renderMarkdown(renderer, msg.Content))
	}
	if msg.ImageURL != "" {
		sections = append(sections, "🖼  "+msg.ImageURL)
	}
	if msg.Meta(conversation.MetaImageChoice) != "" {
		sections = append(sections, choiceStyle.Render("Use /pick <n> para escolher o provedor"))
	}

	var notes []string
	if msg.Meta(conversation.MetaTruncated) == "true" {
		notes = append(notes, "resposta interrompida")
	}
	if msg.Meta(conversation.MetaCorrected) == "true" {
		notes = append(notes, "corrigida")
	}
	if len(notes) > 0 {
		sections = append(sections, noteStyle.Render("("+strings.Join(notes, ", ")+")"))
	}

	return fmt.Sprintf("🤖 Assistente:\n%s", strings.Join(sections, "\n\n"))
}

// renderConversation draws the stored messages plus the answer being streamed
func renderConversation(renderer *glamour.TermRenderer, msgs []conversation.Message, partial, partialReasoning string) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleUser:
			b.WriteString(renderUserMessage(m.Content))
		case conversation.RoleAssistant:
			b.WriteString(renderAssistantMessage(renderer, m))
		}
		b.WriteString("\n\n")
	}

	if partial != "" || partialReasoning != "" {
		b.WriteString("🤖 Assistente:\n")
		if partialReasoning != "" {
			b.WriteString(renderReasoning(partialReasoning))
			b.WriteString("\n\n")
		}
		// Markdown is rendered once the answer is complete
		b.WriteString(partial)
		b.WriteString("\n")
	}
	return b.String()
}
