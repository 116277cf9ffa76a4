package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vietddude/votewatch/internal/core/domain"
)

// setupTestRedis starts a Redis container and returns a connected client.
func setupTestRedis(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "6379/tcp", "redis")
	require.NoError(t, err, "failed to get endpoint")

	client, err := NewClient(Config{URL: endpoint})
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLeaderboardStore(t *testing.T) {
	client := setupTestRedis(t)
	store := NewLeaderboardStore(client)
	ctx := context.Background()

	require.NoError(t, store.Seed(ctx, "1", []string{"A", "B", "C"}))

	votes := []domain.Vote{
		{EventID: "s1#0", ContestID: "1", ContestantID: "B", VotedBy: "v1", CastedAt: 100},
		{EventID: "s2#0", ContestID: "1", ContestantID: "A", VotedBy: "v2", CastedAt: 101},
		{EventID: "s3#0", ContestID: "1", ContestantID: "B", VotedBy: "v3", CastedAt: 102},
	}
	for _, v := range votes {
		applied, err := store.ApplyVote(ctx, v)
		require.NoError(t, err)
		assert.True(t, applied)
	}

	t.Run("duplicate event is a no-op", func(t *testing.T) {
		applied, err := store.ApplyVote(ctx, votes[0])
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("seed keeps existing scores", func(t *testing.T) {
		require.NoError(t, store.Seed(ctx, "1", []string{"A", "B", "C"}))
	})

	scores, err := store.Scores(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 1, "B": 2, "C": 0}, scores)

	count, err := store.VoteCount(ctx, "1", "B")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = store.VoteCount(ctx, "1", "unknown")
	require.NoError(t, err)
	assert.Zero(t, count)

	history, err := store.VoteHistory(ctx, "1", "B")
	require.NoError(t, err)
	assert.Equal(t, []domain.VoteRecord{
		{VotedBy: "v1", Timestamp: 100},
		{VotedBy: "v3", Timestamp: 102},
	}, history)

	deleted, err := store.Reset(ctx)
	require.NoError(t, err)
	assert.Positive(t, deleted)

	scores, err = store.Scores(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestLeaderboardStore_ConcurrentVotes(t *testing.T) {
	client := setupTestRedis(t)
	store := NewLeaderboardStore(client)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			contestant := "A"
			if i%2 == 1 {
				contestant = "B"
			}
			// every event is delivered twice
			for range 2 {
				_, err := store.ApplyVote(ctx, domain.Vote{
					EventID:      fmt.Sprintf("sig%d#0", i),
					ContestID:    "7",
					ContestantID: contestant,
					VotedBy:      fmt.Sprintf("voter%d", i),
					CastedAt:     int64(1000 + i),
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	scores, err := store.Scores(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 25, "B": 25}, scores)
}

func TestJournalRepo(t *testing.T) {
	client := setupTestRedis(t)
	repo := NewJournalRepo(client, "prog")
	ctx := context.Background()

	for _, sig := range []string{"a", "b", "a"} {
		require.NoError(t, repo.Append(ctx, sig))
	}
	n, err := repo.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, repo.Remove(ctx, []string{"a"}))
	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, list)

	require.NoError(t, repo.Clear(ctx))
	n, err = repo.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
