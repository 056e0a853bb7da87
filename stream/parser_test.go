package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type chunkSource struct {
	chunks []string
	err    error
	closed int
}

func (s *chunkSource) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n := copy(p, s.chunks[0])
	s.chunks[0] = s.chunks[0][n:]
	if s.chunks[0] == "" {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func (s *chunkSource) Close() error {
	s.closed++
	return nil
}

func collectAll(t *testing.T, p *Parser) []Event {
	t.Helper()
	var events []Event
	for {
		ev, err := p.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("unexpected parser error: %v", err)
		}
		events = append(events, ev)
	}
}

func TestParser_TypedEvents(t *testing.T) {
	input := strings.Join([]string{
		`: keep-alive`,
		`data: {"choices":[{"delta":{"thinking":"plan"}}]}`,
		`data: {"choices":[{"delta":{"content":"Hi"}}]}`,
		`event: ping`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
	}, "\n")

	events := collectAll(t, NewParser(strings.NewReader(input)))

	want := []Event{
		{Kind: KindReasoning, Text: "plan"},
		{Kind: KindContent, Text: "Hi"},
		{Kind: KindDone},
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(events), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestParser_ReasoningKeyVariants(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"thinking", `data: {"choices":[{"delta":{"thinking":"x"}}]}`},
		{"reasoning", `data: {"choices":[{"delta":{"reasoning":"x"}}]}`},
		{"reasoning_content", `data: {"choices":[{"delta":{"reasoning_content":"x"}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := collectAll(t, NewParser(strings.NewReader(tt.frame+"\n")))
			if len(events) != 1 || events[0].Kind != KindReasoning || events[0].Text != "x" {
				t.Fatalf("unexpected events: %+v", events)
			}
		})
	}
}

func TestParser_PrefixWithoutSpace(t *testing.T) {
	events := collectAll(t, NewParser(strings.NewReader(`data:{"choices":[{"delta":{"content":"a"}}]}`)))
	if len(events) != 1 || events[0].Text != "a" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestCollect_PartialStreamIsTruncatedNotError(t *testing.T) {
	src := &chunkSource{chunks: []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n",
	}}

	res, err := Collect(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("expected partial success, got error: %v", err)
	}
	if res.Content != "Hello" {
		t.Fatalf("content = %q, want %q", res.Content, "Hello")
	}
	if !res.Truncated {
		t.Fatalf("expected truncated flag to be set")
	}
	if res.Done {
		t.Fatalf("expected done flag to be false")
	}
	if src.closed == 0 {
		t.Fatalf("expected source to be closed")
	}
}

func TestCollect_MalformedFrameIsDropped(t *testing.T) {
	src := &chunkSource{chunks: []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"foo\"}}]}\n",
		"data: {not json\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"bar\"}}]}\n",
		"data: [DONE]\n",
	}}

	res, err := Collect(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "foobar" {
		t.Fatalf("content = %q, want %q", res.Content, "foobar")
	}
	if res.Malformed != 1 {
		t.Fatalf("malformed = %d, want 1", res.Malformed)
	}
	if res.Truncated || !res.Done {
		t.Fatalf("expected a completed stream, got %+v", res)
	}
}

func TestCollect_FrameSplitAcrossReads(t *testing.T) {
	src := &chunkSource{chunks: []string{
		"data: {\"choices\":[{\"del",
		"ta\":{\"content\":\"joined\"}}]}\n\ndata: [DO",
		"NE]\n",
	}}

	res, err := Collect(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "joined" || !res.Done {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCollect_CompleteMessageWinsOverDeltas(t *testing.T) {
	src := &chunkSource{chunks: []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n",
		"data: {\"choices\":[{\"message\":{\"content\":\"whole answer\"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"tial\"}}]}\n",
		"data: [DONE]\n",
	}}

	res, err := Collect(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "whole answer" {
		t.Fatalf("content = %q, want %q", res.Content, "whole answer")
	}
}

func TestCollect_FlatFallbackShape(t *testing.T) {
	src := &chunkSource{chunks: []string{"data: {\"text\":\"flat\"}\n"}}

	res, err := Collect(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "flat" {
		t.Fatalf("content = %q, want %q", res.Content, "flat")
	}
}

func TestCollect_ErrorBeforeAnyData(t *testing.T) {
	boom := errors.New("connection reset")
	src := &chunkSource{err: boom}

	res, err := Collect(context.Background(), src, nil)
	if err == nil {
		t.Fatalf("expected hard failure, got %+v", res)
	}
	if !errors.Is(err, ErrNoData) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrNoData wrapping the cause, got %v", err)
	}
	if src.closed == 0 {
		t.Fatalf("expected source to be closed on error")
	}
}

func TestCollect_ErrorAfterDataKeepsPartial(t *testing.T) {
	boom := errors.New("connection reset")
	src := &chunkSource{
		chunks: []string{"data: {\"choices\":[{\"delta\":{\"content\":\"part\"}}]}\n"},
		err:    boom,
	}

	res, err := Collect(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if res.Content != "part" || !res.Truncated || !errors.Is(res.Cause, boom) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCollect_EventsInArrivalOrder(t *testing.T) {
	src := &chunkSource{chunks: []string{
		"data: {\"choices\":[{\"delta\":{\"reasoning\":\"r1\"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"c1\"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"reasoning\":\"r2\"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"c2\"}}]}\n",
	}}

	var order []string
	res, err := Collect(context.Background(), src, func(ev Event) {
		order = append(order, ev.Text)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(order, ",") != "r1,c1,r2,c2" {
		t.Fatalf("unexpected order: %v", order)
	}
	if res.Reasoning != "r1r2" || res.Content != "c1c2" {
		t.Fatalf("unexpected buffers: %+v", res)
	}
}

func TestCollect_CancelReleasesBlockedReader(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Collect(ctx, pr, nil)
		done <- err
	}()

	if _, err := pw.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Collect did not return after cancellation")
	}
}
