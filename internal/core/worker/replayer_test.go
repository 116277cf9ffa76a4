package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/votewatch/internal/indexing/ledger"
)

type countingReplayer struct {
	calls atomic.Int32
	err   error
}

func (c *countingReplayer) Replay(ctx context.Context) (ledger.ReplayResult, error) {
	c.calls.Add(1)
	return ledger.ReplayResult{}, c.err
}

func TestJournalReplayer_RunsUntilCancelled(t *testing.T) {
	target := &countingReplayer{err: errors.New("store down")}
	r := NewJournalReplayer(target, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("replayer did not stop after cancellation")
	}

	if got := target.calls.Load(); got < 2 {
		t.Errorf("expected at least 2 replays, got %d", got)
	}
}

func TestJournalReplayer_Disabled(t *testing.T) {
	target := &countingReplayer{}
	NewJournalReplayer(target, 0).Start(context.Background())

	if got := target.calls.Load(); got != 0 {
		t.Errorf("expected no replays, got %d", got)
	}
}
