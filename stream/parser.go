// Package stream decodes server-sent-event completion streams into typed
// content, reasoning and completion events.
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/nachoal/agency-chat/llm"
)

const (
	eventPrefix  = "data:"
	doneSentinel = "[DONE]"
)

// Kind identifies the type of a stream event
type Kind int

const (
	KindContent Kind = iota + 1
	KindReasoning
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindReasoning:
		return "reasoning"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is a single typed delta decoded from the stream
type Event struct {
	Kind Kind
	Text string

	// Complete marks a content event that carries the whole message rather
	// than an increment.
	Complete bool
}

// Parser turns a byte source into a lazy, finite sequence of events.
// It is not restartable: once Next has returned a non-nil error every
// further call returns the same error.
type Parser struct {
	r         *bufio.Reader
	pending   []Event
	bytesRead int64
	malformed int
	sawDone   bool
	eof       bool
	err       error
}

// NewParser creates a parser reading from r
func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReader(r)}
}

// Next returns the next event. It returns io.EOF once the stream is exhausted
// or a Done event has been delivered, and the source error if reading failed.
func (p *Parser) Next() (Event, error) {
	for {
		if len(p.pending) > 0 {
			ev := p.pending[0]
			p.pending = p.pending[1:]
			return ev, nil
		}
		if p.sawDone || p.eof {
			return Event{}, io.EOF
		}
		if p.err != nil {
			return Event{}, p.err
		}

		line, err := p.r.ReadBytes('\n')
		p.bytesRead += int64(len(line))
		if len(line) > 0 {
			p.processLine(string(line))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.eof = true
			} else {
				p.err = err
			}
		}
	}
}

// BytesRead reports how many bytes were successfully read from the source
func (p *Parser) BytesRead() int64 {
	return p.bytesRead
}

// Malformed reports how many event lines were dropped because they did not decode
func (p *Parser) Malformed() int {
	return p.malformed
}

// SawDone reports whether the sentinel was seen
func (p *Parser) SawDone() bool {
	return p.sawDone
}

func (p *Parser) processLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, eventPrefix) {
		return
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, eventPrefix))
	if payload == "" {
		return
	}

	if payload == doneSentinel {
		p.pending = append(p.pending, Event{Kind: KindDone})
		p.sawDone = true
		return
	}

	var frame llm.Frame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		p.malformed++
		return
	}

	p.pending = append(p.pending, eventsFromFrame(&frame)...)
}

func eventsFromFrame(frame *llm.Frame) []Event {
	var events []Event

	if len(frame.Choices) == 0 {
		switch {
		case frame.Text != nil && *frame.Text != "":
			events = append(events, Event{Kind: KindContent, Text: *frame.Text, Complete: true})
		case frame.Content != nil && *frame.Content != "":
			events = append(events, Event{Kind: KindContent, Text: *frame.Content, Complete: true})
		}
		return events
	}

	choice := frame.Choices[0]
	if choice.Delta != nil {
		if text, ok := choice.Delta.ReasoningText(); ok && text != "" {
			events = append(events, Event{Kind: KindReasoning, Text: text})
		}
		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			events = append(events, Event{Kind: KindContent, Text: *choice.Delta.Content})
		}
	}
	if choice.Message != nil && choice.Message.Content != nil && *choice.Message.Content != "" {
		events = append(events, Event{Kind: KindContent, Text: *choice.Message.Content, Complete: true})
	}

	return events
}
