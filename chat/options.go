package chat

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nachoal/agency-chat/budget"
	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/feedback"
	"github.com/nachoal/agency-chat/imagegen"
)

// ContextSource supplies the persona and background data for one assistant
type ContextSource interface {
	Scope() conversation.Scope
	SubjectID() string
	Persona(ctx context.Context) string
	Load(ctx context.Context) (budget.Input, error)
}

// ImageDefaults are provider parameters applied to every image request
type ImageDefaults struct {
	Width    int
	Height   int
	Strength float64
	Steps    int
}

// Option configures a Session
type Option func(*Session)

// WithModel sets the model used for every turn
func WithModel(model string) Option {
	return func(s *Session) { s.model = model }
}

// WithOwner sets the owner recorded on new conversations
func WithOwner(ownerID string) Option {
	return func(s *Session) { s.ownerID = ownerID }
}

// WithContextSource sets where persona and background data come from
func WithContextSource(src ContextSource) Option {
	return func(s *Session) { s.source = src }
}

// WithImageProviders sets the image providers in preference order
func WithImageProviders(providers ...imagegen.Provider) Option {
	return func(s *Session) { s.images = providers }
}

// WithImageDefaults sets size, strength and steps for image requests
func WithImageDefaults(d ImageDefaults) Option {
	return func(s *Session) { s.imageDefaults = d }
}

// WithFeedback sets the collaborator that receives ratings and corrections
func WithFeedback(r feedback.Recorder) Option {
	return func(s *Session) { s.feedbackRecorder = r }
}

// WithLogger sets the session logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers fn for turn updates. fn runs on the goroutine
// driving the turn, without the session lock held.
func WithObserver(fn func(Update)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithStreaming toggles streamed answers; when off the non-streaming
// completion endpoint is used.
func WithStreaming(enabled bool) Option {
	return func(s *Session) { s.streaming = enabled }
}

// WithConversation resumes an existing conversation
func WithConversation(conv *conversation.Conversation) Option {
	return func(s *Session) {
		if conv != nil {
			s.conv = conv.Clone()
		}
	}
}

// SendOption adjusts a single Send
type SendOption func(*sendOptions)

type sendOptions struct {
	reference []byte
}

// WithReferenceImage attaches an image to edit or use as a starting point
func WithReferenceImage(img []byte) SendOption {
	return func(o *sendOptions) { o.reference = img }
}
