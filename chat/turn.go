package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/imageintent"
	"github.com/nachoal/agency-chat/stream"
)

// Send runs one user turn. Depending on the model and the message it streams
// a text answer, generates an image, or offers a choice of image providers.
// On failure the user message is rolled back and nothing is persisted.
func (s *Session) Send(ctx context.Context, text string, opts ...SendOption) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	turnCtx, prev, err := s.begin(ctx, StateComposing, true)
	if err != nil {
		return nil, err
	}
	var abandoned *abandonedOffer
	if prev == StateAwaitingImageChoice {
		abandoned = s.abandonImageChoice()
	}

	user := conversation.Message{Role: conversation.RoleUser, Content: text, CreatedAt: time.Now()}

	if s.caps.IsImageGenerationModel(s.model) {
		return s.imageTurn(turnCtx, user, text, o.reference, nil, abandoned)
	}

	if len(s.images) > 0 {
		if intent := imageintent.Classify(text); intent.IsImageRequest {
			if len(s.images) == 1 {
				return s.imageTurn(turnCtx, user, intent.Prompt, o.reference, s.images[0], abandoned)
			}
			return s.offerImageChoice(turnCtx, user, intent.Prompt, o.reference)
		}
	}

	return s.textTurn(turnCtx, user, abandoned)
}

// textTurn appends the user message optimistically and streams the answer.
// On failure an offer abandoned by this turn is reopened.
func (s *Session) textTurn(ctx context.Context, user conversation.Message, abandoned *abandonedOffer) (*Reply, error) {
	s.mu.Lock()
	prior := conversation.CloneMessages(s.conv.Messages)
	selected := append([]string(nil), s.selected...)
	s.conv.Messages = append(s.conv.Messages, user)
	userIdx := len(s.conv.Messages) - 1
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateMessages})

	answer, truncated, err := s.complete(ctx, prior, user, selected)
	if err != nil {
		s.mu.Lock()
		s.conv.Messages = s.conv.Messages[:userIdx]
		state := s.reopenOfferLocked(abandoned)
		s.mu.Unlock()
		s.notify(Update{Kind: UpdateMessages})
		s.fail(state)
		return nil, err
	}

	s.setState(StateFinalizing)
	s.mu.Lock()
	s.conv.Messages = append(s.conv.Messages, *answer)
	idx := len(s.conv.Messages) - 1
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateMessages})

	s.persist(ctx)
	s.finish(StateIdle)
	return &Reply{Message: *answer, Index: idx, Truncated: truncated}, nil
}

// complete dispatches the request and assembles the assistant message. It
// does not touch the conversation.
func (s *Session) complete(ctx context.Context, prior []conversation.Message, user conversation.Message, selected []string) (*conversation.Message, bool, error) {
	req := s.buildRequest(ctx, prior, user, selected)
	log := s.logger.WithField("model", s.model)

	s.setState(StateDispatching)
	log.WithField("messages", len(req.Messages)).Debug("dispatching chat request")

	if !s.streaming {
		text, err := s.llm.Complete(ctx, req)
		if err != nil {
			return nil, false, s.dispatchError(ctx, err)
		}
		if strings.TrimSpace(text) == "" {
			return nil, false, ErrEmptyResponse
		}
		return s.assistantMessage(text, "", false), false, nil
	}

	body, err := s.llm.OpenStream(ctx, req)
	if err != nil {
		return nil, false, s.dispatchError(ctx, err)
	}

	s.setState(StateStreaming)
	res, err := stream.Collect(ctx, body, func(ev stream.Event) {
		switch ev.Kind {
		case stream.KindContent:
			s.notify(Update{Kind: UpdateContent, Text: ev.Text})
		case stream.KindReasoning:
			s.notify(Update{Kind: UpdateReasoning, Text: ev.Text})
		}
	})
	if err != nil {
		return nil, false, s.dispatchError(ctx, err)
	}

	if res.Malformed > 0 {
		log.WithField("dropped", res.Malformed).Debug("dropped malformed stream frames")
	}
	if res.Empty() {
		if res.Cause != nil {
			return nil, false, &TransportError{Err: res.Cause}
		}
		return nil, false, ErrEmptyResponse
	}
	if res.Truncated {
		log.WithError(res.Cause).Warn("stream ended without completion signal, keeping partial answer")
	}

	return s.assistantMessage(res.Content, res.Reasoning, res.Truncated), res.Truncated, nil
}

func (s *Session) assistantMessage(content, reasoning string, truncated bool) *conversation.Message {
	msg := &conversation.Message{
		Role:      conversation.RoleAssistant,
		Content:   content,
		Reasoning: reasoning,
		Model:     s.model,
		CreatedAt: time.Now(),
	}
	if truncated {
		msg.SetMeta(conversation.MetaTruncated, "true")
	}
	return msg
}

func (s *Session) dispatchError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCancelled, context.Canceled)
	}
	return &TransportError{Err: err}
}

// Regenerate replaces the latest assistant answer with a fresh one for the
// same user message. If that fails the conversation is left exactly as it was.
func (s *Session) Regenerate(ctx context.Context) (*Reply, error) {
	turnCtx, _, err := s.begin(ctx, StateComposing, false)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	snapshot := conversation.CloneMessages(s.conv.Messages)
	selected := append([]string(nil), s.selected...)
	s.mu.Unlock()

	last := len(snapshot) - 1
	userIdx := last - 1
	if last >= 2 && isPickedImage(snapshot[last], snapshot[last-1]) {
		userIdx = last - 2
	}
	if last < 1 || snapshot[last].Role != conversation.RoleAssistant || snapshot[userIdx].Role != conversation.RoleUser ||
		snapshot[last].Meta(conversation.MetaImageChoice) != "" {
		s.finish(StateIdle)
		return nil, ErrNothingToRegenerate
	}
	previous := snapshot[last]
	user := snapshot[userIdx]

	s.mu.Lock()
	s.conv.Messages = conversation.CloneMessages(snapshot[:last])
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateMessages})

	var answer *conversation.Message
	var image *imageOutcome
	var truncated bool
	if provider := previous.Meta(conversation.MetaImageProvider); provider != "" {
		image, err = s.regenerateImage(turnCtx, previous, user)
		if err == nil {
			answer = image.message
		}
	} else {
		answer, truncated, err = s.complete(turnCtx, snapshot[:userIdx], user, selected)
	}

	if err != nil {
		s.mu.Lock()
		s.conv.Messages = snapshot
		s.mu.Unlock()
		s.notify(Update{Kind: UpdateMessages})
		s.fail(StateIdle)
		return nil, err
	}

	s.setState(StateFinalizing)
	s.mu.Lock()
	s.conv.Messages = append(s.conv.Messages, *answer)
	idx := len(s.conv.Messages) - 1
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateMessages})

	s.persist(turnCtx)
	s.finish(StateIdle)

	reply := &Reply{Message: *answer, Index: idx, Truncated: truncated}
	if image != nil {
		reply.Image = image.result
	}
	return reply, nil
}

// isPickedImage reports whether answer came from a provider picked in reply
// to offer. Such answers regenerate against the user message before the offer.
func isPickedImage(answer, offer conversation.Message) bool {
	return answer.Meta(conversation.MetaImageProvider) != "" &&
		offer.Role == conversation.RoleAssistant &&
		offer.Meta(conversation.MetaImageProvider) == "" &&
		offer.Meta(conversation.MetaImagePrompt) != ""
}
