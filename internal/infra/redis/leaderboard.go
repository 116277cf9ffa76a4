package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/votewatch/internal/core/domain"
)

// applyVoteScript records the event id and applies the vote only on first sight.
// KEYS: applied set, leaderboard zset, contestant vote hash.
// ARGV: event id, contestant id, vote field, vote record JSON.
var applyVoteScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('ZINCRBY', KEYS[2], 1, ARGV[2])
redis.call('HSET', KEYS[3], ARGV[3], ARGV[4])
return 1
`)

// LeaderboardStore keeps contest scores and vote history in Redis.
type LeaderboardStore struct {
	client *Client
}

// NewLeaderboardStore creates a Redis-backed leaderboard store.
func NewLeaderboardStore(client *Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

// ApplyVote increments the contestant score and appends the vote record.
// It returns false when the vote's event id was already applied.
func (s *LeaderboardStore) ApplyVote(ctx context.Context, vote domain.Vote) (bool, error) {
	record, err := json.Marshal(domain.VoteRecord{VotedBy: vote.VotedBy, Timestamp: vote.CastedAt})
	if err != nil {
		return false, fmt.Errorf("failed to marshal vote record: %w", err)
	}

	keys := []string{
		appliedKey(vote.ContestID),
		leaderboardKey(vote.ContestID),
		votesKey(vote.ContestID, vote.ContestantID),
	}
	applied, err := applyVoteScript.Run(ctx, s.client.rdb, keys,
		vote.EventID, vote.ContestantID, voteField(vote), record,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to apply vote: %w", err)
	}
	return applied == 1, nil
}

// Seed adds contestants with a zero score. Existing scores are kept.
func (s *LeaderboardStore) Seed(ctx context.Context, contestID string, contestantIDs []string) error {
	if len(contestantIDs) == 0 {
		return nil
	}
	members := make([]redis.Z, len(contestantIDs))
	for i, id := range contestantIDs {
		members[i] = redis.Z{Score: 0, Member: id}
	}
	if err := s.client.rdb.ZAddNX(ctx, leaderboardKey(contestID), members...).Err(); err != nil {
		return fmt.Errorf("failed to seed leaderboard: %w", err)
	}
	return nil
}

// Scores returns every contestant score of a contest.
func (s *LeaderboardStore) Scores(ctx context.Context, contestID string) (map[string]int64, error) {
	results, err := s.client.rdb.ZRangeWithScores(ctx, leaderboardKey(contestID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	scores := make(map[string]int64, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		scores[member] = int64(z.Score)
	}
	return scores, nil
}

// VoteCount returns the score of one contestant, 0 if unknown.
func (s *LeaderboardStore) VoteCount(ctx context.Context, contestID, contestantID string) (int64, error) {
	score, err := s.client.rdb.ZScore(ctx, leaderboardKey(contestID), contestantID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("zscore failed: %w", err)
	}
	return int64(score), nil
}

// VoteHistory returns the vote records of one contestant, oldest first.
func (s *LeaderboardStore) VoteHistory(ctx context.Context, contestID, contestantID string) ([]domain.VoteRecord, error) {
	fields, err := s.client.rdb.HGetAll(ctx, votesKey(contestID, contestantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}

	records := make([]domain.VoteRecord, 0, len(fields))
	for field, raw := range fields {
		var rec domain.VoteRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("invalid vote record %s: %w", field, err)
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b domain.VoteRecord) int {
		return cmp.Or(cmp.Compare(a.Timestamp, b.Timestamp), cmp.Compare(a.VotedBy, b.VotedBy))
	})
	return records, nil
}

// Reset deletes every leaderboard, vote history and applied-event key.
func (s *LeaderboardStore) Reset(ctx context.Context) (int, error) {
	total := 0
	for _, prefix := range []string{leaderboardPrefix, votesPrefix, appliedPrefix} {
		n, err := s.client.deleteByPrefix(ctx, prefix)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func voteField(vote domain.Vote) string {
	return strconv.FormatInt(vote.CastedAt, 10) + ":" + vote.VotedBy
}
