// Package chat runs conversation turns against a language model: it builds
// the capacity-aware request, consumes the streamed answer, branches into
// image generation and persists the result.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nachoal/agency-chat/capability"
	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/feedback"
	"github.com/nachoal/agency-chat/imagegen"
	"github.com/nachoal/agency-chat/internal/logging"
	"github.com/nachoal/agency-chat/llm"
)

const persistTimeout = 15 * time.Second

// Session owns one conversation and runs its turns. At most one turn is in
// flight at a time; commands issued meanwhile fail with ErrBusy.
type Session struct {
	llm        llm.Client
	caps       capability.Lookup
	store      conversation.Store
	source     ContextSource
	images     []imagegen.Provider
	dispatcher *imagegen.Dispatcher
	logger     logrus.FieldLogger
	observer   func(Update)

	feedbackRecorder feedback.Recorder
	feedback         *feedback.Async

	model         string
	ownerID       string
	streaming     bool
	imageDefaults ImageDefaults

	mu       sync.Mutex
	state    State
	conv     *conversation.Conversation
	selected []string
	cancel   context.CancelFunc
	closed   bool

	// reference image attached to the open provider offer
	pendingReference []byte

	// serializes store writes across turns
	persistMu sync.Mutex
}

// Reply describes what a command produced
type Reply struct {
	Message   conversation.Message
	Index     int
	Truncated bool
	// Providers is set when the session is waiting for an image provider pick
	Providers []string
	Image     *imagegen.Result
}

// New creates a session. client, caps and store are required.
func New(client llm.Client, caps capability.Lookup, store conversation.Store, opts ...Option) *Session {
	s := &Session{
		llm:       client,
		caps:      caps,
		store:     store,
		logger:    logging.Discard(),
		streaming: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dispatcher = imagegen.NewDispatcher(imagegen.WithLogger(s.logger))
	s.feedback = feedback.NewAsync(s.feedbackRecorder, feedback.WithLogger(s.logger))

	if s.conv == nil {
		s.conv = s.newConversation()
	}
	if s.pendingChoiceLocked() >= 0 {
		s.state = StateAwaitingImageChoice
	}
	return s
}

func (s *Session) newConversation() *conversation.Conversation {
	scope, subject := conversation.ScopeGeneral, ""
	if s.source != nil {
		scope, subject = s.source.Scope(), s.source.SubjectID()
	}
	return conversation.New(s.ownerID, scope, subject)
}

// State returns the current turn state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Model returns the model used for turns
func (s *Session) Model() string {
	return s.model
}

// Conversation returns a copy of the current conversation
func (s *Session) Conversation() *conversation.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Clone()
}

// SelectDocuments sets which documents are sent as context. No ids means none.
func (s *Session) SelectDocuments(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = append([]string(nil), ids...)
}

// SelectedDocuments returns the current document selection
func (s *Session) SelectedDocuments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selected...)
}

// Load replaces the active conversation with a stored one
func (s *Session) Load(ctx context.Context, id string) error {
	s.mu.Lock()
	if err := s.checkIdleLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", id, err)
	}

	s.mu.Lock()
	s.conv = conv
	s.pendingReference = nil
	s.state = StateIdle
	if s.pendingChoiceLocked() >= 0 {
		s.state = StateAwaitingImageChoice
	}
	state := s.state
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateMessages})
	s.notify(Update{Kind: UpdateState, State: state})
	return nil
}

// Reset starts a new, unsaved conversation
func (s *Session) Reset() error {
	s.mu.Lock()
	if err := s.checkIdleLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.conv = s.newConversation()
	s.pendingReference = nil
	s.state = StateIdle
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateMessages})
	s.notify(Update{Kind: UpdateState, State: StateIdle})
	return nil
}

// Delete removes a conversation from the store. An empty id means the active
// one; deleting the active conversation also clears it from the session.
func (s *Session) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if err := s.checkIdleLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	active := s.conv.ID
	if id == "" {
		id = active
	}
	s.mu.Unlock()

	if id != "" {
		if err := s.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete conversation %s: %w", id, err)
		}
	}

	if id == active || id == "" {
		return s.Reset()
	}
	return nil
}

// Close cancels any in-flight turn. The session rejects further commands.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.feedback.Wait()
	return nil
}

// begin moves an idle session into a busy state and returns the turn context
func (s *Session) begin(ctx context.Context, next State, allowAwaiting bool) (context.Context, State, error) {
	s.mu.Lock()
	prev := s.state
	if s.closed {
		s.mu.Unlock()
		return nil, prev, ErrClosed
	}
	if prev.Busy() {
		s.mu.Unlock()
		return nil, prev, ErrBusy
	}
	if prev == StateAwaitingImageChoice && !allowAwaiting {
		s.mu.Unlock()
		return nil, prev, ErrImageChoicePending
	}

	turnCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = next
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateState, State: next})
	return turnCtx, prev, nil
}

// finish releases the turn and settles on state
func (s *Session) finish(state State) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = state
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateState, State: state})
}

// fail passes through Failed on the way back to state
func (s *Session) fail(state State) {
	s.setState(StateFailed)
	s.finish(state)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateState, State: state})
}

func (s *Session) checkIdleLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.state.Busy() {
		return ErrBusy
	}
	return nil
}

func (s *Session) notify(u Update) {
	if s.observer != nil {
		s.observer(u)
	}
}

// persist writes the conversation: create once, update afterwards. Failures
// are logged and never undo the turn.
func (s *Session) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	s.mu.Lock()
	s.conv.UpdatedAt = time.Now()
	s.conv.EnsureTitle()
	snapshot := s.conv.Clone()
	s.mu.Unlock()

	log := s.logger.WithField("conversation_id", snapshot.ID)

	if snapshot.Persisted() {
		if err := s.store.Update(ctx, snapshot.ID, snapshot); err != nil {
			log.WithError(err).Warn("failed to update conversation")
		}
		return
	}

	id, err := s.store.Create(ctx, snapshot)
	if err != nil {
		if errors.Is(err, conversation.ErrAlreadyPersisted) {
			return
		}
		log.WithError(err).Warn("failed to create conversation")
		return
	}

	s.mu.Lock()
	if s.conv.ID == "" {
		s.conv.ID = id
	}
	s.mu.Unlock()
	log.WithField("id", id).Debug("conversation created")
}
