package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/votewatch/internal/core/domain"
)

// ErrUnknownEvent is returned for an event variant with no handler.
var ErrUnknownEvent = errors.New("unknown event")

// ContestHandler handles ContestCreated events.
type ContestHandler interface {
	OnContestCreated(ctx context.Context, env domain.Envelope, ev domain.ContestCreated) error
}

// VoteHandler handles VoteCasted events.
type VoteHandler interface {
	OnVoteCasted(ctx context.Context, env domain.Envelope, ev domain.VoteCasted) error
}

// Dispatcher routes each event to exactly one handler.
type Dispatcher struct {
	contests ContestHandler
	votes    VoteHandler
}

// NewDispatcher creates a dispatcher. A nil contests handler logs the event.
func NewDispatcher(contests ContestHandler, votes VoteHandler) *Dispatcher {
	if contests == nil {
		contests = NewContestLogger()
	}
	return &Dispatcher{contests: contests, votes: votes}
}

// Dispatch routes one event.
func (d *Dispatcher) Dispatch(ctx context.Context, env domain.Envelope) error {
	switch ev := env.Event.(type) {
	case domain.ContestCreated:
		return d.contests.OnContestCreated(ctx, env, ev)
	case domain.VoteCasted:
		if d.votes == nil {
			return fmt.Errorf("%w: no vote handler", ErrUnknownEvent)
		}
		return d.votes.OnVoteCasted(ctx, env, ev)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, env.Event)
	}
}

// DispatchAll routes the events of one transaction in order and stops at the
// first handler error.
func (d *Dispatcher) DispatchAll(ctx context.Context, envs []domain.Envelope) error {
	for _, env := range envs {
		if err := d.Dispatch(ctx, env); err != nil {
			return fmt.Errorf("event %s#%d (%s): %w", env.Signature, env.Index, env.Event.Kind(), err)
		}
	}
	return nil
}

// ContestLogger records ContestCreated events in the log.
type ContestLogger struct {
	log *slog.Logger
}

// NewContestLogger creates the observational contest handler.
func NewContestLogger() *ContestLogger {
	return &ContestLogger{log: slog.Default().With("component", "contest-events")}
}

func (c *ContestLogger) OnContestCreated(ctx context.Context, env domain.Envelope, ev domain.ContestCreated) error {
	c.log.Info("Contest created",
		"contest_id", ev.ContestID,
		"created_by", ev.CreatedBy,
		"metadata_uri", ev.MetadataURI,
		"start_time", ev.StartTime,
		"end_time", ev.EndTime,
		"signature", env.Signature,
	)
	return nil
}
