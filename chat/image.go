package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/imagegen"
)

type imageOutcome struct {
	message *conversation.Message
	result  *imagegen.Result
}

// abandonedOffer remembers an offer closed by a new Send until that turn
// settles, so a failed turn can reopen it.
type abandonedOffer struct {
	index     int
	choice    string
	reference []byte
}

// imageTurn appends the user message and generates an image for prompt.
// A nil provider means the configured preference order.
func (s *Session) imageTurn(ctx context.Context, user conversation.Message, prompt string, reference []byte, provider imagegen.Provider, abandoned *abandonedOffer) (*Reply, error) {
	s.mu.Lock()
	s.conv.Messages = append(s.conv.Messages, user)
	userIdx := len(s.conv.Messages) - 1
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateMessages})

	model := ""
	if s.caps.IsImageGenerationModel(s.model) {
		model = s.model
	}

	out, err := s.generate(ctx, prompt, model, reference, provider)
	if err != nil {
		s.mu.Lock()
		s.conv.Messages = s.conv.Messages[:userIdx]
		state := s.reopenOfferLocked(abandoned)
		s.mu.Unlock()
		s.notify(Update{Kind: UpdateMessages})
		s.fail(state)
		return nil, err
	}

	return s.finishImage(ctx, out), nil
}

// offerImageChoice records the user message and an assistant message asking
// which provider to use, then suspends. reference is held until the pick.
func (s *Session) offerImageChoice(ctx context.Context, user conversation.Message, prompt string, reference []byte) (*Reply, error) {
	names := s.providerNames()

	var b strings.Builder
	b.WriteString("Posso gerar essa imagem. Qual provedor você prefere?")
	for i, n := range names {
		fmt.Fprintf(&b, "\n%d. %s", i+1, n)
	}

	offer := conversation.Message{
		Role:      conversation.RoleAssistant,
		Content:   b.String(),
		CreatedAt: time.Now(),
	}
	offer.SetMeta(conversation.MetaImageChoice, strings.Join(names, ","))
	offer.SetMeta(conversation.MetaImagePrompt, prompt)

	s.setState(StateFinalizing)
	s.mu.Lock()
	s.conv.Messages = append(s.conv.Messages, user, offer)
	s.pendingReference = reference
	idx := len(s.conv.Messages) - 1
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateMessages})

	s.persist(ctx)
	s.finish(StateAwaitingImageChoice)
	s.notify(Update{Kind: UpdateImageChoice, Providers: names})

	return &Reply{Message: offer, Index: idx, Providers: names}, nil
}

// ChooseImageProvider answers a pending provider offer and generates the image
func (s *Session) ChooseImageProvider(ctx context.Context, name string) (*Reply, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.state != StateAwaitingImageChoice {
		busy := s.state.Busy()
		s.mu.Unlock()
		if busy {
			return nil, ErrBusy
		}
		return nil, ErrNoPendingImageChoice
	}
	offerIdx := s.pendingChoiceLocked()
	if offerIdx < 0 {
		s.state = StateIdle
		s.mu.Unlock()
		return nil, ErrNoPendingImageChoice
	}
	provider := s.provider(name)
	if provider == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	prompt := s.conv.Messages[offerIdx].Meta(conversation.MetaImagePrompt)
	reference := s.pendingReference

	turnCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateDispatching
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateState, State: StateDispatching})

	out, err := s.generate(turnCtx, prompt, "", reference, provider)
	if err != nil {
		// The offer stays open so another provider can be picked.
		s.fail(StateAwaitingImageChoice)
		return nil, err
	}

	s.mu.Lock()
	if offerIdx < len(s.conv.Messages) {
		delete(s.conv.Messages[offerIdx].Metadata, conversation.MetaImageChoice)
	}
	s.pendingReference = nil
	s.mu.Unlock()

	return s.finishImage(turnCtx, out), nil
}

// PendingImageChoice returns the providers on offer, or nil
func (s *Session) PendingImageChoice() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.pendingChoiceLocked()
	if idx < 0 {
		return nil
	}
	return strings.Split(s.conv.Messages[idx].Meta(conversation.MetaImageChoice), ",")
}

// pendingChoiceLocked returns the index of an open offer, which is only
// ever the last message, or -1.
func (s *Session) pendingChoiceLocked() int {
	n := len(s.conv.Messages)
	if n == 0 {
		return -1
	}
	if s.conv.Messages[n-1].Meta(conversation.MetaImageChoice) == "" {
		return -1
	}
	return n - 1
}

// abandonImageChoice closes an open offer when the user moves on
func (s *Session) abandonImageChoice() *abandonedOffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.pendingChoiceLocked()
	if idx < 0 {
		return nil
	}
	offer := &abandonedOffer{
		index:     idx,
		choice:    s.conv.Messages[idx].Meta(conversation.MetaImageChoice),
		reference: s.pendingReference,
	}
	delete(s.conv.Messages[idx].Metadata, conversation.MetaImageChoice)
	s.pendingReference = nil
	return offer
}

// reopenOfferLocked restores an abandoned offer and returns the state the
// session settles on.
func (s *Session) reopenOfferLocked(offer *abandonedOffer) State {
	if offer == nil || offer.index != len(s.conv.Messages)-1 {
		return StateIdle
	}
	s.conv.Messages[offer.index].SetMeta(conversation.MetaImageChoice, offer.choice)
	s.pendingReference = offer.reference
	return StateAwaitingImageChoice
}

func (s *Session) regenerateImage(ctx context.Context, previous, user conversation.Message) (*imageOutcome, error) {
	prompt := previous.Meta(conversation.MetaImagePrompt)
	if prompt == "" {
		prompt = user.Content
	}
	provider := s.provider(previous.Meta(conversation.MetaImageProvider))

	model := ""
	if s.caps.IsImageGenerationModel(s.model) {
		model = s.model
	}
	return s.generate(ctx, prompt, model, nil, provider)
}

// generate runs the dispatcher with provider as primary and the next
// configured provider as secondary.
func (s *Session) generate(ctx context.Context, prompt, model string, reference []byte, provider imagegen.Provider) (*imageOutcome, error) {
	primary, secondary := s.providerOrder(provider)

	req := &imagegen.Request{
		Prompt:         prompt,
		ReferenceImage: reference,
		Model:          model,
		Width:          s.imageDefaults.Width,
		Height:         s.imageDefaults.Height,
		Steps:          s.imageDefaults.Steps,
	}
	if len(reference) > 0 {
		req.Strength = s.imageDefaults.Strength
	}

	s.setState(StateDispatching)
	res, err := s.dispatcher.Generate(ctx, req, primary, secondary)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		return nil, err
	}

	content := fmt.Sprintf("Imagem gerada com %s.", res.Provider)
	if res.FellBack && primary != nil {
		content = fmt.Sprintf("Imagem gerada com %s (%s não respondeu).", res.Provider, primary.Name())
	}
	msg := &conversation.Message{
		Role:      conversation.RoleAssistant,
		Content:   content,
		ImageURL:  res.ImageURL,
		Model:     res.Model,
		CreatedAt: time.Now(),
	}
	msg.SetMeta(conversation.MetaImageProvider, res.Provider)
	msg.SetMeta(conversation.MetaImagePrompt, prompt)

	return &imageOutcome{message: msg, result: res}, nil
}

func (s *Session) finishImage(ctx context.Context, out *imageOutcome) *Reply {
	s.setState(StateFinalizing)
	s.mu.Lock()
	s.conv.Messages = append(s.conv.Messages, *out.message)
	idx := len(s.conv.Messages) - 1
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateMessages})

	s.persist(ctx)
	s.finish(StateIdle)
	return &Reply{Message: *out.message, Index: idx, Image: out.result}
}

func (s *Session) providerNames() []string {
	names := make([]string, len(s.images))
	for i, p := range s.images {
		names[i] = p.Name()
	}
	return names
}

func (s *Session) provider(name string) imagegen.Provider {
	for _, p := range s.images {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func (s *Session) providerOrder(preferred imagegen.Provider) (imagegen.Provider, imagegen.Provider) {
	if preferred == nil {
		if len(s.images) == 0 {
			return nil, nil
		}
		preferred = s.images[0]
	}
	for _, p := range s.images {
		if p.Name() != preferred.Name() {
			return preferred, p
		}
	}
	return preferred, nil
}
