package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nachoal/agency-chat/capability"
	"github.com/nachoal/agency-chat/chat"
	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/llm"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in     string
		want   Command
		wantOK bool
	}{
		{"olá", Command{}, false},
		{"/regen", Command{Name: "/regen"}, true},
		{"  /EDIT  texto corrigido ", Command{Name: "/edit", Arg: "texto corrigido"}, true},
		{"/quit", Command{Name: "/exit"}, true},
		{"/docs a, b", Command{Name: "/docs", Arg: "a, b"}, true},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestResolvePick(t *testing.T) {
	offered := []string{"dalle", "flux"}

	if got, err := resolvePick("2", offered); err != nil || got != "flux" {
		t.Errorf("by number = %q, %v", got, err)
	}
	if got, err := resolvePick("DALLE", offered); err != nil || got != "dalle" {
		t.Errorf("by name = %q, %v", got, err)
	}
	for _, bad := range []string{"", "0", "3", "midjourney"} {
		if _, err := resolvePick(bad, offered); err == nil {
			t.Errorf("resolvePick(%q) should fail", bad)
		}
	}
	if _, err := resolvePick("1", nil); err == nil {
		t.Error("resolvePick without an offer should fail")
	}
}

func TestParseDocIDs(t *testing.T) {
	got := parseDocIDs(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("parseDocIDs = %v", got)
	}
	if parseDocIDs("") != nil {
		t.Error("empty input should select nothing")
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	help := helpText()
	for _, c := range commands {
		if !strings.Contains(help, c.name) {
			t.Errorf("help is missing %s", c.name)
		}
	}
}

func TestRenderConversation(t *testing.T) {
	answer := conversation.Message{Role: conversation.RoleAssistant, Content: "meia resposta", Reasoning: "pensei"}
	answer.SetMeta(conversation.MetaTruncated, "true")
	image := conversation.Message{Role: conversation.RoleAssistant, Content: "Imagem", ImageURL: "https://img/x.png"}

	out := renderConversation(nil, []conversation.Message{
		{Role: conversation.RoleUser, Content: "pergunta"},
		answer,
		image,
	}, "em andamento", "")

	for _, want := range []string{"pergunta", "meia resposta", "pensei", "resposta interrompida", "https://img/x.png", "em andamento"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered conversation missing %q:\n%s", want, out)
		}
	}
}

func TestBridge_ObserveAfterCloseDoesNotBlock(t *testing.T) {
	b := NewBridge()
	b.Observe(chat.Update{Kind: chat.UpdateContent, Text: "x"})

	msg := b.listen()()
	if u, ok := msg.(updateMsg); !ok || u.Text != "x" {
		t.Fatalf("listen = %#v", msg)
	}

	b.Close()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Observe(chat.Update{Kind: chat.UpdateContent})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Observe blocked after Close")
	}
}

type cannedLLM struct{}

func (cannedLLM) OpenStream(context.Context, *llm.ChatRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"oi\"}}]}\n\ndata: [DONE]\n\n")), nil
}

func (cannedLLM) Complete(context.Context, *llm.ChatRequest) (string, error) { return "oi", nil }

func (cannedLLM) Close() error { return nil }

func newTestChat(t *testing.T) (*ChatModel, *chat.Session) {
	t.Helper()
	bridge := NewBridge()
	session := chat.New(cannedLLM{}, capability.NewStatic(nil), conversation.NewMemoryStore(),
		chat.WithModel("gpt-4o"), chat.WithObserver(bridge.Observe))
	t.Cleanup(func() {
		bridge.Close()
		session.Close()
	})
	m := NewChat(session, bridge, "teste")
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, session
}

func TestChatModel_DocsCommandSelectsDocuments(t *testing.T) {
	m, session := newTestChat(t)

	m.handleInput("/docs d1,d2")
	if got := session.SelectedDocuments(); len(got) != 2 || got[0] != "d1" {
		t.Errorf("selected = %v", got)
	}
	if !strings.Contains(m.notice, "d1, d2") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestChatModel_SendRunsTurn(t *testing.T) {
	m, session := newTestChat(t)

	cmd := m.handleInput("olá")
	if cmd == nil || !m.busy {
		t.Fatal("sending should start a turn")
	}

	// Run the turn synchronously, the way the program would
	res := resultFromBatch(t, cmd)
	m.Update(res)

	if m.busy {
		t.Error("model still busy after result")
	}
	if n := len(session.Conversation().Messages); n != 2 {
		t.Errorf("messages = %d", n)
	}
}

func TestChatModel_ResultErrorShowsNotice(t *testing.T) {
	m, _ := newTestChat(t)
	m.busy = true

	m.Update(resultMsg{err: &chat.TransportError{Err: errors.New("timeout")}})
	if !m.noticeIsError || !strings.Contains(m.notice, "timeout") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestChatModel_PickWithoutOffer(t *testing.T) {
	m, _ := newTestChat(t)
	if cmd := m.handleInput("/pick 1"); cmd != nil {
		t.Error("pick without offer should not start a turn")
	}
	if !m.noticeIsError {
		t.Error("expected an error notice")
	}
}

// resultFromBatch runs the commands of a batch and returns the first resultMsg
func resultFromBatch(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return msg
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if res, ok := c().(resultMsg); ok {
			return res
		}
	}
	t.Fatal("no result in batch")
	return nil
}

func TestVisibleRange(t *testing.T) {
	if s, e := visibleRange(0, 5, 10); s != 0 || e != 5 {
		t.Errorf("short list = %d,%d", s, e)
	}
	if s, e := visibleRange(19, 20, 10); s != 10 || e != 20 {
		t.Errorf("end of list = %d,%d", s, e)
	}
	if s, e := visibleRange(8, 20, 10); s != 3 || e != 13 {
		t.Errorf("middle = %d,%d", s, e)
	}
}
