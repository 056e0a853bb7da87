package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/feedback"
)

type eventLog struct {
	mu     sync.Mutex
	events []feedback.Event
}

func (l *eventLog) Record(ctx context.Context, ev feedback.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func TestCorrect_ReplacesAnswerAndReportsIt(t *testing.T) {
	events := &eventLog{}
	store := newCountingStore()
	s := newTestSession(&fakeLLM{bodies: []string{sse("Errado")}}, store, WithFeedback(events))

	reply, err := s.Send(context.Background(), "Oi")
	require.NoError(t, err)

	require.NoError(t, s.Correct(context.Background(), reply.Index, "Certo", "tom"))

	msg := s.Conversation().Messages[reply.Index]
	assert.Equal(t, "Certo", msg.Content)
	assert.Equal(t, "true", msg.Meta(conversation.MetaCorrected))

	stored, err := store.Get(context.Background(), s.Conversation().ID)
	require.NoError(t, err)
	assert.Equal(t, "Certo", stored.Messages[reply.Index].Content)

	require.NoError(t, s.Close())
	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, feedback.KindCorrection, ev.Kind)
	assert.Equal(t, "Errado", ev.OriginalContent)
	require.NotNil(t, ev.CorrectedContent)
	assert.Equal(t, "Certo", *ev.CorrectedContent)
	assert.Equal(t, []string{"tom"}, ev.Tags)
}

func TestCorrect_Validation(t *testing.T) {
	s := newTestSession(&fakeLLM{bodies: []string{sse("ok")}}, newCountingStore())
	_, err := s.Send(context.Background(), "Oi")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Correct(context.Background(), 0, "x"), ErrNotAssistantMessage)
	assert.ErrorIs(t, s.Correct(context.Background(), 7, "x"), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.Correct(context.Background(), -1, "x"), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.Correct(context.Background(), 1, " "), ErrEmptyMessage)
	assert.Equal(t, "ok", s.Conversation().Messages[1].Content)
}

func TestFeedback_RecordsRating(t *testing.T) {
	events := &eventLog{}
	s := newTestSession(&fakeLLM{bodies: []string{sse("ok")}}, newCountingStore(), WithFeedback(events))
	_, err := s.Send(context.Background(), "Oi")
	require.NoError(t, err)

	idx := s.LastAssistantIndex()
	require.Equal(t, 1, idx)
	require.NoError(t, s.Feedback(idx, feedback.KindPositive))
	assert.Error(t, s.Feedback(idx, feedback.KindCorrection))

	require.NoError(t, s.Close())
	require.Len(t, events.events, 1)
	assert.Equal(t, feedback.KindPositive, events.events[0].Kind)
	assert.Equal(t, s.Conversation().ID, events.events[0].ConversationID)
}

func TestFeedback_RecorderFailureIsNotReturned(t *testing.T) {
	failing := feedback.RecorderFunc(func(context.Context, feedback.Event) error {
		return errors.New("backend down")
	})
	s := newTestSession(&fakeLLM{bodies: []string{sse("ok")}}, newCountingStore(), WithFeedback(failing))
	_, err := s.Send(context.Background(), "Oi")
	require.NoError(t, err)

	assert.NoError(t, s.Feedback(1, feedback.KindNegative, "vago"))
	assert.NoError(t, s.Correct(context.Background(), 1, "melhor"))
	require.NoError(t, s.Close())
}
