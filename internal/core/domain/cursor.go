package domain

import "time"

// Cursor is the resume position of the indexer for one program.
// An empty LastSignature means nothing has been indexed yet.
type Cursor struct {
	ProgramID     string    `json:"programId,omitempty"`
	LastSignature string    `json:"lastSignature,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitzero"`
}

// PassState is the state of the indexing state machine.
type PassState string

const (
	PassStateIdle     PassState = "idle"
	PassStateFetching PassState = "fetching"
	PassStateApplying PassState = "applying"
	PassStateError    PassState = "error"
)
