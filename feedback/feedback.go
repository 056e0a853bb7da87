// Package feedback forwards user ratings and corrections to a learning
// backend without ever blocking or failing a chat turn.
package feedback

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind of feedback
type Kind string

const (
	KindPositive   Kind = "positive"
	KindNegative   Kind = "negative"
	KindCorrection Kind = "correction"
)

// Event is one piece of feedback about an assistant message
type Event struct {
	ConversationID   string    `json:"conversation_id" db:"conversation_id"`
	MessageIndex     int       `json:"message_index" db:"message_index"`
	Kind             Kind      `json:"kind" db:"kind"`
	OriginalContent  string    `json:"original_content" db:"original_content"`
	CorrectedContent *string   `json:"corrected_content,omitempty" db:"corrected_content"`
	Tags             []string  `json:"tags,omitempty"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Recorder stores feedback events
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// RecorderFunc adapts a function to Recorder
type RecorderFunc func(ctx context.Context, ev Event) error

// Record implements Recorder
func (f RecorderFunc) Record(ctx context.Context, ev Event) error { return f(ctx, ev) }

// LogRecorder writes events to a logger
type LogRecorder struct {
	Logger logrus.FieldLogger
}

// Record implements Recorder
func (r LogRecorder) Record(_ context.Context, ev Event) error {
	r.Logger.WithFields(logrus.Fields{
		"conversation_id": ev.ConversationID,
		"message_index":   ev.MessageIndex,
		"kind":            ev.Kind,
		"tags":            ev.Tags,
	}).Info("feedback recorded")
	return nil
}

const defaultTimeout = 10 * time.Second

// Async hands events to a Recorder on a background goroutine. Submit never
// blocks the caller and recorder errors are only logged.
type Async struct {
	next    Recorder
	logger  logrus.FieldLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

// AsyncOption configures Async
type AsyncOption func(*Async)

// WithLogger sets the logger for recorder failures
func WithLogger(l logrus.FieldLogger) AsyncOption {
	return func(a *Async) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTimeout bounds each Record call
func WithTimeout(d time.Duration) AsyncOption {
	return func(a *Async) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAsync wraps next
func NewAsync(next Recorder, opts ...AsyncOption) *Async {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	a := &Async{next: next, logger: discard, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit records ev in the background
func (a *Async) Submit(ev Event) {
	if a == nil || a.next == nil {
		return
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.WithField("panic", r).Error("feedback recorder panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.next.Record(ctx, ev); err != nil {
			a.logger.WithError(err).WithField("conversation_id", ev.ConversationID).Warn("failed to record feedback")
		}
	}()
}

// Wait blocks until every submitted event has been handled
func (a *Async) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}
