package chat

// State is where a session is in its turn lifecycle
type State int

const (
	StateIdle State = iota
	StateComposing
	StateDispatching
	StateStreaming
	StateFinalizing
	StateFailed
	StateAwaitingImageChoice
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateDispatching:
		return "dispatching"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateFailed:
		return "failed"
	case StateAwaitingImageChoice:
		return "awaiting_image_choice"
	default:
		return "unknown"
	}
}

// Busy reports whether a turn is in flight
func (s State) Busy() bool {
	switch s {
	case StateComposing, StateDispatching, StateStreaming, StateFinalizing, StateFailed:
		return true
	}
	return false
}

// UpdateKind tags an Update
type UpdateKind int

const (
	UpdateState UpdateKind = iota
	UpdateContent
	UpdateReasoning
	UpdateMessages
	UpdateImageChoice
)

// Update is pushed to the observer as a turn progresses
type Update struct {
	Kind      UpdateKind
	State     State
	Text      string
	Providers []string
}
