package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoData is returned when the source failed before a single byte was decoded
var ErrNoData = errors.New("stream failed before any data was received")

// Result is the assembled outcome of one stream
type Result struct {
	Content   string
	Reasoning string

	// Done is true when the provider sent the completion sentinel.
	Done bool
	// Truncated is true when the stream ended without the sentinel, either
	// by a clean close or by a read error after some data arrived.
	Truncated bool
	// Cause is the read error that cut the stream short, if any.
	Cause error

	BytesRead int64
	Malformed int
}

// Empty reports whether the stream produced no answer text. A stream that
// carried only reasoning is empty.
func (r *Result) Empty() bool {
	return strings.TrimSpace(r.Content) == ""
}

// Assembler applies events to content and reasoning buffers in arrival order
type Assembler struct {
	content   strings.Builder
	reasoning strings.Builder
	complete  bool
}

// Apply folds one event into the buffers. A complete message replaces
// whatever content was accumulated and later content deltas are ignored.
func (a *Assembler) Apply(ev Event) {
	switch ev.Kind {
	case KindContent:
		if ev.Complete {
			a.content.Reset()
			a.content.WriteString(ev.Text)
			a.complete = true
			return
		}
		if !a.complete {
			a.content.WriteString(ev.Text)
		}
	case KindReasoning:
		a.reasoning.WriteString(ev.Text)
	}
}

// Content returns the accumulated answer text
func (a *Assembler) Content() string {
	return a.content.String()
}

// Reasoning returns the accumulated reasoning trace
func (a *Assembler) Reasoning() string {
	return a.reasoning.String()
}

// Collect drives a parser over src until the stream resolves, calling fn for
// every event in arrival order. src is always closed, including when ctx is
// cancelled mid-read; a cancelled stream returns ctx.Err() and no result.
func Collect(ctx context.Context, src io.ReadCloser, fn func(Event)) (*Result, error) {
	defer src.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks a read that is waiting on the network.
			src.Close()
		case <-stop:
		}
	}()

	parser := NewParser(src)
	var asm Assembler

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev, err := parser.Next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, io.EOF) {
				return &Result{
					Content:   asm.Content(),
					Reasoning: asm.Reasoning(),
					Done:      parser.SawDone(),
					Truncated: !parser.SawDone(),
					BytesRead: parser.BytesRead(),
					Malformed: parser.Malformed(),
				}, nil
			}
			if parser.BytesRead() == 0 {
				return nil, fmt.Errorf("%w: %w", ErrNoData, err)
			}
			return &Result{
				Content:   asm.Content(),
				Reasoning: asm.Reasoning(),
				Truncated: true,
				Cause:     err,
				BytesRead: parser.BytesRead(),
				Malformed: parser.Malformed(),
			}, nil
		}

		asm.Apply(ev)
		if fn != nil {
			fn(ev)
		}
	}
}
