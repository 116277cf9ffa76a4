package cursor

import (
	"errors"
	"slices"
	"time"

	"github.com/vietddude/votewatch/internal/core/domain"
)

// State is an alias for domain.PassState for internal use.
type State = domain.PassState

const (
	StateIdle     = domain.PassStateIdle
	StateFetching = domain.PassStateFetching
	StateApplying = domain.PassStateApplying
	StateError    = domain.PassStateError
)

// States lists every state, for metrics.
var States = []State{StateIdle, StateFetching, StateApplying, StateError}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	StateIdle:     {StateFetching},
	StateFetching: {StateApplying, StateError, StateIdle},
	StateApplying: {StateIdle, StateError},
	StateError:    {StateIdle},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	return slices.Contains(ValidTransitions[from], to)
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransition creates a new transition record.
func NewTransition(from, to State, reason string) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case StateIdle:
		return "Idle - waiting for the next tick"
	case StateFetching:
		return "Fetching - listing signatures newer than the cursor"
	case StateApplying:
		return "Applying - processing listed signatures oldest first"
	case StateError:
		return "Error - listing failed, pass aborted"
	default:
		return "Unknown state"
	}
}
