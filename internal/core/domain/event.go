package domain

// EventKind names a program event variant.
type EventKind string

const (
	EventKindContestCreated EventKind = "ContestCreated"
	EventKindVoteCasted     EventKind = "VoteCasted"
)

// Event is a decoded program event. ContestCreated and VoteCasted are the
// only implementations.
type Event interface {
	Kind() EventKind
	event()
}

// ContestCreated is emitted when a contest is opened on-chain.
type ContestCreated struct {
	ContestID   uint64
	CreatedBy   string // base58 pubkey
	MetadataURI string
	CreatedAt   int64
	StartTime   int64
	EndTime     int64
}

func (ContestCreated) Kind() EventKind { return EventKindContestCreated }
func (ContestCreated) event()          {}

// VoteCasted is emitted for every vote.
type VoteCasted struct {
	VotedBy      string // base58 pubkey
	ContestID    uint64
	ContestantID uint64
	CastedAt     int64
}

func (VoteCasted) Kind() EventKind { return EventKindVoteCasted }
func (VoteCasted) event()          {}

// Envelope ties an event to the transaction it was decoded from.
type Envelope struct {
	Signature string
	Index     int // position of the event within the transaction
	Slot      uint64
	BlockTime int64
	Event     Event
}
