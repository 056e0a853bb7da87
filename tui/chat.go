package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nachoal/agency-chat/chat"
	"github.com/nachoal/agency-chat/feedback"
)

// Bridge carries session updates into the bubbletea loop. Pass Observe to
// chat.WithObserver when building the session.
type Bridge struct {
	updates chan chat.Update
	done    chan struct{}
	once    sync.Once
}

// NewBridge creates a bridge
func NewBridge() *Bridge {
	return &Bridge{
		updates: make(chan chat.Update, 256),
		done:    make(chan struct{}),
	}
}

// Observe forwards u to the UI. After Close it drops updates instead of
// blocking the turn.
func (b *Bridge) Observe(u chat.Update) {
	select {
	case b.updates <- u:
	case <-b.done:
	}
}

// Close stops delivery
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-b.updates:
			return updateMsg(u)
		case <-b.done:
			return nil
		}
	}
}

type (
	updateMsg chat.Update

	resultMsg struct {
		notice string
		err    error
	}
)

// ChatModel is the terminal chat surface for one session
type ChatModel struct {
	session  *chat.Session
	bridge   *Bridge
	renderer *glamour.TermRenderer
	title    string

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	busy             bool
	state            chat.State
	partial          string
	partialReasoning string
	notice           string
	noticeIsError    bool
	width            int
	height           int
	ready            bool
}

// NewChat creates the chat surface. title is shown in the header.
func NewChat(session *chat.Session, bridge *Bridge, title string) *ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Digite sua mensagem ou /help"
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.SetWidth(74)
	ta.Focus()

	// Enter sends the message
	ta.KeyMap.InsertNewline.SetEnabled(false)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))

	return &ChatModel{
		session:  session,
		bridge:   bridge,
		renderer: newRenderer(),
		title:    title,
		textarea: ta,
		spinner:  s,
		state:    session.State(),
		width:    80,
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.bridge.listen())
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.viewportHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.viewportHeight()
		}
		m.textarea.SetWidth(msg.Width - 4)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if msg.Type == tea.KeyCtrlC && m.textarea.Value() != "" {
				m.textarea.Reset()
				return m, nil
			}
			return m, m.shutdown()

		case tea.KeyEnter:
			value := strings.TrimSpace(m.textarea.Value())
			if value == "" {
				return m, nil
			}
			if m.busy {
				m.setNotice("Aguarde a resposta atual terminar.", true)
				return m, nil
			}
			m.textarea.Reset()
			return m, m.handleInput(value)
		}

	case updateMsg:
		m.applyUpdate(chat.Update(msg))
		return m, m.bridge.listen()

	case resultMsg:
		m.busy = false
		m.partial, m.partialReasoning = "", ""
		if msg.err != nil {
			m.setNotice(describeError(msg.err), true)
		} else if msg.notice != "" {
			m.setNotice(msg.notice, false)
		}
		m.refresh()

	case spinner.TickMsg:
		if m.busy {
			s, cmd := m.spinner.Update(msg)
			m.spinner = s
			cmds = append(cmds, cmd)
		}
	}

	if !m.busy {
		ta, cmd := m.textarea.Update(msg)
		m.textarea = ta
		cmds = append(cmds, cmd)
	}

	if m.ready {
		vp, cmd := m.viewport.Update(msg)
		m.viewport = vp
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *ChatModel) View() string {
	if !m.ready {
		return "\nIniciando..."
	}

	var b strings.Builder
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	modelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	cmdStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	b.WriteString(headerStyle.Render("Agency Chat") + " | " + modelStyle.Render(m.session.Model()))
	if m.title != "" {
		b.WriteString(" | " + m.title)
	}
	b.WriteString("\n" + cmdStyle.Render("/help para comandos, ctrl+c para sair") + "\n")
	b.WriteString(strings.Repeat("─", max(m.width, 1)) + "\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.notice != "" {
		if m.noticeIsError {
			b.WriteString(errorStyle.Render(m.notice))
		} else {
			b.WriteString(noteStyle.Render(m.notice))
		}
		b.WriteString("\n")
	}

	if m.busy {
		b.WriteString(fmt.Sprintf("%s %s...\n", m.spinner.View(), stateLabel(m.state)))
	} else {
		b.WriteString(m.textarea.View())
	}
	return b.String()
}

func (m *ChatModel) viewportHeight() int {
	h := m.height - 8
	if h < 3 {
		h = 3
	}
	return h
}

func (m *ChatModel) applyUpdate(u chat.Update) {
	switch u.Kind {
	case chat.UpdateState:
		m.state = u.State
	case chat.UpdateContent:
		m.partial += u.Text
	case chat.UpdateReasoning:
		m.partialReasoning += u.Text
	case chat.UpdateMessages:
		// A rollback or a new stored answer supersedes the stream preview
		m.partial, m.partialReasoning = "", ""
	case chat.UpdateImageChoice:
		m.setNotice(fmt.Sprintf("Escolha o provedor com /pick: %s", strings.Join(numbered(u.Providers), ", ")), false)
	}
	m.refresh()
}

func (m *ChatModel) refresh() {
	if !m.ready {
		return
	}
	conv := m.session.Conversation()
	m.viewport.SetContent(renderConversation(m.renderer, conv.Messages, m.partial, m.partialReasoning))
	m.viewport.GotoBottom()
}

func (m *ChatModel) setNotice(text string, isError bool) {
	m.notice = strings.TrimSpace(text)
	m.noticeIsError = isError
}

// run executes fn off the UI goroutine
func (m *ChatModel) run(fn func(ctx context.Context) (string, error)) tea.Cmd {
	m.busy = true
	m.notice = ""
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		notice, err := fn(context.Background())
		return resultMsg{notice: notice, err: err}
	})
}

func (m *ChatModel) handleInput(input string) tea.Cmd {
	cmd, ok := ParseCommand(input)
	if !ok {
		return m.run(func(ctx context.Context) (string, error) {
			_, err := m.session.Send(ctx, input)
			return "", err
		})
	}

	switch cmd.Name {
	case "/regen":
		return m.run(func(ctx context.Context) (string, error) {
			_, err := m.session.Regenerate(ctx)
			return "", err
		})

	case "/edit":
		idx := m.session.LastAssistantIndex()
		return m.run(func(ctx context.Context) (string, error) {
			if err := m.session.Correct(ctx, idx, cmd.Arg); err != nil {
				return "", err
			}
			return "Resposta corrigida. Obrigado!", nil
		})

	case "/good", "/bad":
		kind := feedback.KindPositive
		if cmd.Name == "/bad" {
			kind = feedback.KindNegative
		}
		if err := m.session.Feedback(m.session.LastAssistantIndex(), kind); err != nil {
			m.setNotice(describeError(err), true)
		} else {
			m.setNotice("Avaliação registrada.", false)
		}

	case "/pick":
		name, err := resolvePick(cmd.Arg, m.session.PendingImageChoice())
		if err != nil {
			m.setNotice(err.Error(), true)
			return nil
		}
		return m.run(func(ctx context.Context) (string, error) {
			_, err := m.session.ChooseImageProvider(ctx, name)
			return "", err
		})

	case "/docs":
		ids := parseDocIDs(cmd.Arg)
		m.session.SelectDocuments(ids...)
		if len(ids) == 0 {
			m.setNotice("Nenhum documento selecionado.", false)
		} else {
			m.setNotice("Documentos selecionados: "+strings.Join(ids, ", "), false)
		}

	case "/delete":
		return m.run(func(ctx context.Context) (string, error) {
			if err := m.session.Delete(ctx, ""); err != nil {
				return "", err
			}
			return "Conversa apagada.", nil
		})

	case "/clear":
		if err := m.session.Reset(); err != nil {
			m.setNotice(describeError(err), true)
		} else {
			m.setNotice("Nova conversa.", false)
		}

	case "/help":
		m.setNotice(helpText(), false)

	case "/exit":
		return m.shutdown()

	default:
		m.setNotice(fmt.Sprintf("Comando desconhecido: %s (use /help)", cmd.Name), true)
	}

	m.refresh()
	return nil
}

// shutdown cancels any in-flight answer and quits
func (m *ChatModel) shutdown() tea.Cmd {
	m.bridge.Close()
	_ = m.session.Close()
	return tea.Quit
}

func describeError(err error) string {
	var te *chat.TransportError
	switch {
	case errors.Is(err, chat.ErrBusy):
		return "Aguarde a resposta atual terminar."
	case errors.Is(err, chat.ErrImageChoicePending):
		return "Escolha um provedor com /pick antes de continuar."
	case errors.Is(err, chat.ErrCancelled):
		return "Resposta cancelada."
	case errors.Is(err, chat.ErrNothingToRegenerate):
		return "Não há resposta para gerar novamente."
	case errors.Is(err, chat.ErrEmptyResponse):
		return "O modelo não retornou nenhuma resposta. Tente novamente."
	case errors.Is(err, chat.ErrIndexOutOfRange), errors.Is(err, chat.ErrNotAssistantMessage):
		return "Não há resposta do assistente para avaliar."
	case errors.As(err, &te):
		return fmt.Sprintf("Falha de conexão com o modelo: %v", te.Err)
	}
	return fmt.Sprintf("Erro: %v", err)
}

func stateLabel(s chat.State) string {
	switch s {
	case chat.StateDispatching:
		return "Enviando"
	case chat.StateStreaming:
		return "Recebendo"
	case chat.StateFinalizing:
		return "Salvando"
	}
	return "Processando"
}

func numbered(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%d) %s", i+1, n)
	}
	return out
}
