package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/feedback"
)

// Correct replaces the content of an assistant answer with the user's
// correction and reports it to the feedback collaborator.
func (s *Session) Correct(ctx context.Context, index int, corrected string, tags ...string) error {
	corrected = strings.TrimSpace(corrected)
	if corrected == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if err := s.checkIdleLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	msg, err := s.assistantAtLocked(index)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	original := msg.Content
	msg.Content = corrected
	msg.SetMeta(conversation.MetaCorrected, "true")
	convID := s.conv.ID
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateMessages})
	s.persist(ctx)

	s.feedback.Submit(feedback.Event{
		ConversationID:   convID,
		MessageIndex:     index,
		Kind:             feedback.KindCorrection,
		OriginalContent:  original,
		CorrectedContent: &corrected,
		Tags:             tags,
		CreatedAt:        time.Now(),
	})
	return nil
}

// Feedback rates an assistant answer. It does not change the conversation
// and may be called while a turn is running.
func (s *Session) Feedback(index int, kind feedback.Kind, tags ...string) error {
	if kind != feedback.KindPositive && kind != feedback.KindNegative {
		return fmt.Errorf("unsupported feedback kind %q", kind)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	msg, err := s.assistantAtLocked(index)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	ev := feedback.Event{
		ConversationID:  s.conv.ID,
		MessageIndex:    index,
		Kind:            kind,
		OriginalContent: msg.Content,
		Tags:            tags,
		CreatedAt:       time.Now(),
	}
	s.mu.Unlock()

	s.feedback.Submit(ev)
	return nil
}

// LastAssistantIndex returns the index of the latest assistant answer or -1
func (s *Session) LastAssistantIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.LastIndex(conversation.RoleAssistant)
}

func (s *Session) assistantAtLocked(index int) (*conversation.Message, error) {
	if index < 0 || index >= len(s.conv.Messages) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	msg := &s.conv.Messages[index]
	if msg.Role != conversation.RoleAssistant {
		return nil, ErrNotAssistantMessage
	}
	return msg, nil
}
