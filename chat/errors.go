package chat

import (
	"errors"
	"fmt"
)

// Errors returned by Session commands. None of them leave the conversation
// in a partially updated state.
var (
	ErrBusy                 = errors.New("a response is already in progress")
	ErrClosed               = errors.New("session is closed")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrNothingToRegenerate  = errors.New("no assistant answer to regenerate")
	ErrNoPendingImageChoice = errors.New("no image provider choice is pending")
	ErrImageChoicePending   = errors.New("an image provider choice is pending")
	ErrUnknownProvider      = errors.New("unknown image provider")
	ErrEmptyResponse        = errors.New("model returned an empty response")
	ErrCancelled            = errors.New("response cancelled")
	ErrNotAssistantMessage  = errors.New("message is not an assistant answer")
	ErrIndexOutOfRange      = errors.New("message index out of range")
)

// TransportError wraps a failure reaching the model provider
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
