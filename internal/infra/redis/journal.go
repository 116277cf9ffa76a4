package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// JournalRepo implements storage.JournalRepository as a Redis list.
type JournalRepo struct {
	client *Client
	key    string
}

// NewJournalRepo creates a journal for one program.
func NewJournalRepo(client *Client, programID string) *JournalRepo {
	return &JournalRepo{client: client, key: journalKey(programID)}
}

// Append pushes a signature to the tail of the list.
func (r *JournalRepo) Append(ctx context.Context, signature string) error {
	if err := r.client.rdb.RPush(ctx, r.key, signature).Err(); err != nil {
		return fmt.Errorf("rpush failed: %w", err)
	}
	return nil
}

// List returns the journal in append order.
func (r *JournalRepo) List(ctx context.Context) ([]string, error) {
	entries, err := r.client.rdb.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}
	return entries, nil
}

// Remove deletes the oldest occurrence of each signature.
func (r *JournalRepo) Remove(ctx context.Context, signatures []string) error {
	if len(signatures) == 0 {
		return nil
	}
	_, err := r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sig := range signatures {
			pipe.LRem(ctx, r.key, 1, sig)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("lrem failed: %w", err)
	}
	return nil
}

// Len returns the number of entries.
func (r *JournalRepo) Len(ctx context.Context) (int, error) {
	n, err := r.client.rdb.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen failed: %w", err)
	}
	return int(n), nil
}

// Clear deletes the journal.
func (r *JournalRepo) Clear(ctx context.Context) error {
	if err := r.client.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}
