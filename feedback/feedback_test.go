package feedback

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsync_SubmitDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var got []Event

	a := NewAsync(RecorderFunc(func(ctx context.Context, ev Event) error {
		<-release
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		return nil
	}))

	done := make(chan struct{})
	go func() {
		a.Submit(Event{ConversationID: "c", MessageIndex: 1, Kind: KindPositive})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on the recorder")
	}

	close(release)
	a.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, KindPositive, got[0].Kind)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestAsync_ErrorsAreLoggedOnly(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)

	a := NewAsync(RecorderFunc(func(context.Context, Event) error {
		return errors.New("backend down")
	}), WithLogger(l))

	a.Submit(Event{ConversationID: "c"})
	a.Wait()

	assert.Contains(t, buf.String(), "backend down")
}

func TestAsync_RecoversPanics(t *testing.T) {
	a := NewAsync(RecorderFunc(func(context.Context, Event) error {
		panic("boom")
	}))

	a.Submit(Event{})
	a.Wait()
}

func TestAsync_NilSafe(t *testing.T) {
	var a *Async
	a.Submit(Event{})
	a.Wait()

	NewAsync(nil).Submit(Event{})
}

func TestToRow(t *testing.T) {
	corrected := "novo texto"
	r, err := toRow(Event{
		ConversationID:   "c1",
		MessageIndex:     3,
		Kind:             KindCorrection,
		OriginalContent:  "velho",
		CorrectedContent: &corrected,
		CreatedAt:        time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "correction", r.Kind)
	assert.JSONEq(t, `[]`, string(r.Tags))
	assert.Equal(t, "2024-01-02T03:04:05.000Z", r.CreatedAt)
	assert.Equal(t, &corrected, r.CorrectedContent)
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)

	require.NoError(t, LogRecorder{Logger: l}.Record(context.Background(), Event{ConversationID: "abc", Kind: KindNegative}))
	assert.Contains(t, buf.String(), "conversation_id=abc")
}
