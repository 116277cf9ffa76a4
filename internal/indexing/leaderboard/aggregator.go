// Package leaderboard folds votes into per-contest rankings and serves
// ranked, paginated reads merged with the contestant roster.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/vietddude/votewatch/internal/core/domain"
	"github.com/vietddude/votewatch/internal/indexing/metrics"
)

// ErrInvalidPage is returned for a page or limit below 1.
var ErrInvalidPage = errors.New("invalid page")

// Store is the leaderboard cache.
type Store interface {
	// ApplyVote increments the score and appends the vote record. It returns
	// false when vote.EventID was already applied.
	ApplyVote(ctx context.Context, vote domain.Vote) (bool, error)
	Seed(ctx context.Context, contestID string, contestantIDs []string) error
	Scores(ctx context.Context, contestID string) (map[string]int64, error)
	VoteCount(ctx context.Context, contestID, contestantID string) (int64, error)
	VoteHistory(ctx context.Context, contestID, contestantID string) ([]domain.VoteRecord, error)
	Reset(ctx context.Context) (int, error)
}

// Reader is the read side served to the HTTP API.
type Reader interface {
	GetLeaderboard(ctx context.Context, contestID string, page, limit int) (*domain.Leaderboard, error)
	GetContestantStats(ctx context.Context, contestID, contestantID string) (*domain.ContestantStats, error)
	GetContestantVoteHistory(ctx context.Context, contestID, contestantID string) ([]domain.VoteRecord, error)
	GetContestantVoteCount(ctx context.Context, contestID, contestantID string) (int64, error)
}

// Aggregator applies votes and serves rankings.
type Aggregator struct {
	store  Store
	roster *Roster
	now    func() time.Time
	log    *slog.Logger
}

var _ Reader = (*Aggregator)(nil)

// NewAggregator creates an aggregator over store. roster is shared and never modified.
func NewAggregator(store Store, roster *Roster) *Aggregator {
	return &Aggregator{
		store:  store,
		roster: roster,
		now:    time.Now,
		log:    slog.Default().With("component", "leaderboard"),
	}
}

// Seed registers every roster contestant with a zero score in contestID.
func (a *Aggregator) Seed(ctx context.Context, contestID string) error {
	ids := a.roster.IDs()
	if err := a.store.Seed(ctx, contestID, ids); err != nil {
		return err
	}
	a.log.Info("Leaderboard seeded", "contest_id", contestID, "contestants", len(ids))
	return nil
}

// ApplyVote folds one vote into the leaderboard.
func (a *Aggregator) ApplyVote(ctx context.Context, vote domain.Vote) error {
	applied, err := a.store.ApplyVote(ctx, vote)
	if err != nil {
		return err
	}
	if !applied {
		a.log.Debug("Vote already applied", "event_id", vote.EventID)
		return nil
	}
	metrics.VotesApplied.WithLabelValues(vote.ContestID).Inc()
	a.log.Debug("Vote applied",
		"contest_id", vote.ContestID,
		"contestant_id", vote.ContestantID,
		"voted_by", vote.VotedBy,
	)
	return nil
}

// OnVoteCasted adapts a decoded VoteCasted event into ApplyVote.
func (a *Aggregator) OnVoteCasted(ctx context.Context, env domain.Envelope, ev domain.VoteCasted) error {
	return a.ApplyVote(ctx, domain.Vote{
		EventID:      fmt.Sprintf("%s#%d", env.Signature, env.Index),
		ContestID:    strconv.FormatUint(ev.ContestID, 10),
		ContestantID: strconv.FormatUint(ev.ContestantID, 10),
		VotedBy:      ev.VotedBy,
		CastedAt:     ev.CastedAt,
	})
}

// GetLeaderboard returns one page of the ranking. page is 1-based.
func (a *Aggregator) GetLeaderboard(ctx context.Context, contestID string, page, limit int) (*domain.Leaderboard, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("%w: page=%d limit=%d", ErrInvalidPage, page, limit)
	}
	scores, err := a.store.Scores(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard %s: %w", contestID, err)
	}

	lb := build(contestID, a.roster, scores, page, limit)
	lb.LastUpdated = a.now().UnixMilli()
	return &lb, nil
}

// GetContestantStats returns the rank and votes of one contestant.
func (a *Aggregator) GetContestantStats(ctx context.Context, contestID, contestantID string) (*domain.ContestantStats, error) {
	scores, err := a.store.Scores(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard %s: %w", contestID, err)
	}
	stats := statsFor(scores, contestantID)
	return &stats, nil
}

// GetContestantVoteHistory returns the votes of one contestant, oldest first.
func (a *Aggregator) GetContestantVoteHistory(ctx context.Context, contestID, contestantID string) ([]domain.VoteRecord, error) {
	records, err := a.store.VoteHistory(ctx, contestID, contestantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read vote history: %w", err)
	}
	return records, nil
}

// GetContestantVoteCount returns the vote count of one contestant.
func (a *Aggregator) GetContestantVoteCount(ctx context.Context, contestID, contestantID string) (int64, error) {
	n, err := a.store.VoteCount(ctx, contestID, contestantID)
	if err != nil {
		return 0, fmt.Errorf("failed to read vote count: %w", err)
	}
	return n, nil
}

// Reset deletes every leaderboard key.
func (a *Aggregator) Reset(ctx context.Context) error {
	n, err := a.store.Reset(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset leaderboard: %w", err)
	}
	a.log.Info("Leaderboard reset", "keys_deleted", n)
	return nil
}
