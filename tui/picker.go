package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nachoal/agency-chat/conversation"
)

// ConversationPicker lets the user choose a stored conversation to resume
type ConversationPicker struct {
	conversations []conversation.Summary
	selected      int
	width         int
	height        int
	// SelectedID is set when the user confirms a choice
	SelectedID string
}

// NewConversationPicker creates a picker over summaries, newest first
func NewConversationPicker(summaries []conversation.Summary) *ConversationPicker {
	return &ConversationPicker{
		conversations: summaries,
		width:         80,
		height:        24,
	}
}

func (p *ConversationPicker) Init() tea.Cmd {
	return nil
}

func (p *ConversationPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if p.selected > 0 {
				p.selected--
			}
		case "down", "j":
			if p.selected < len(p.conversations)-1 {
				p.selected++
			}
		case "enter":
			if len(p.conversations) > 0 {
				p.SelectedID = p.conversations[p.selected].ID
			}
			return p, tea.Quit
		case "esc", "q", "ctrl+c":
			return p, tea.Quit
		}
	}
	return p, nil
}

func (p *ConversationPicker) View() string {
	if len(p.conversations) == 0 {
		return "\nNenhuma conversa salva.\n\nPressione [Esc] para começar uma nova."
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")).MarginBottom(1)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	normalStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Escolha uma conversa para continuar:"))
	b.WriteString("\n\n")

	start, end := visibleRange(p.selected, len(p.conversations), p.height-6)
	for i := start; i < end; i++ {
		c := p.conversations[i]
		cursor, style := "  ", normalStyle
		if i == p.selected {
			cursor, style = "▸ ", selectedStyle
		}
		line := fmt.Sprintf("%s%s - %s (%d mensagens, %s)",
			cursor,
			c.UpdatedAt.Format("02/01 15:04"),
			truncateString(c.Title, 40),
			c.Messages,
			c.Scope)
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	if start > 0 || end < len(p.conversations) {
		b.WriteString(normalStyle.Render(fmt.Sprintf("\n[%d-%d de %d]", start+1, end, len(p.conversations))))
	}

	b.WriteString(helpStyle.Render("\n[↑/↓/j/k] Navegar  [Enter] Abrir  [Esc/q] Cancelar"))
	return b.String()
}

// visibleRange keeps the selection centered when the list is taller than height
func visibleRange(selected, total, height int) (int, int) {
	if height <= 0 || total <= height {
		return 0, total
	}
	start := 0
	if selected > height/2 {
		start = selected - height/2
		if start+height > total {
			start = total - height
		}
	}
	return start, start + height
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
