package indexer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/votewatch/internal/core/cursor"
	"github.com/vietddude/votewatch/internal/core/domain"
	"github.com/vietddude/votewatch/internal/indexing/events"
	"github.com/vietddude/votewatch/internal/indexing/leaderboard"
	"github.com/vietddude/votewatch/internal/indexing/ledger"
	"github.com/vietddude/votewatch/internal/infra/rpc/solana"
	"github.com/vietddude/votewatch/internal/infra/storage/memory"
)

const testProgram = "Vote111111111111111111111111111111111111111"

// voteLogs returns the log lines of a transaction emitting one VoteCasted.
func voteLogs(contest, contestant uint64, castedAt int64) []string {
	var buf bytes.Buffer
	d := events.Discriminator("VoteCasted")
	buf.Write(d[:])
	buf.Write(bytes.Repeat([]byte{9}, 32))
	_ = binary.Write(&buf, binary.LittleEndian, contest)
	_ = binary.Write(&buf, binary.LittleEndian, contestant)
	_ = binary.Write(&buf, binary.LittleEndian, castedAt)
	return []string{
		"Program " + testProgram + " invoke [1]",
		"Program log: Instruction: Vote",
		"Program data: " + base64.StdEncoding.EncodeToString(buf.Bytes()),
		"Program " + testProgram + " success",
	}
}

// =============================================================================
// Fakes
// =============================================================================

type fakeFetcher struct {
	mu       sync.Mutex
	chain    []domain.SignatureInfo // newest first
	txs      map[string]*domain.Transaction
	listErr  error
	delay    time.Duration
	txCalls  map[string]int
	listReqs []solana.SignaturesOpts
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		txs:     make(map[string]*domain.Transaction),
		txCalls: make(map[string]int),
	}
}

// push appends a newer vote transaction to the head of the chain.
func (f *fakeFetcher) push(sig string, contestant uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot := uint64(len(f.chain) + 1)
	f.chain = slices.Insert(f.chain, 0, domain.SignatureInfo{Signature: sig, Slot: slot})
	f.txs[sig] = &domain.Transaction{
		Signature:   sig,
		Slot:        slot,
		LogMessages: voteLogs(1, contestant, int64(1000+slot)),
	}
}

func (f *fakeFetcher) ListSignatures(ctx context.Context, address string, opts solana.SignaturesOpts) ([]domain.SignatureInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listReqs = append(f.listReqs, opts)
	if f.listErr != nil {
		return nil, f.listErr
	}

	start := 0
	if opts.Before != "" {
		start = slices.IndexFunc(f.chain, func(s domain.SignatureInfo) bool { return s.Signature == opts.Before }) + 1
	}
	var out []domain.SignatureInfo
	for i := start; i < len(f.chain) && len(out) < opts.Limit; i++ {
		if f.chain[i].Signature == opts.Until {
			break
		}
		out = append(out, f.chain[i])
	}
	return out, nil
}

func (f *fakeFetcher) GetTransaction(ctx context.Context, signature string) (*domain.Transaction, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls[signature]++
	return f.txs[signature], nil
}

func (f *fakeFetcher) calls(sig string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txCalls[sig]
}

// countingDispatcher wraps the real dispatcher and counts deliveries.
type countingDispatcher struct {
	next  Dispatcher
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func (d *countingDispatcher) DispatchAll(ctx context.Context, envs []domain.Envelope) error {
	if len(envs) == 0 {
		return nil
	}
	sig := envs[0].Signature
	d.mu.Lock()
	d.calls[sig]++
	err := d.fail[sig]
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return d.next.DispatchAll(ctx, envs)
}

type harness struct {
	pipeline   *Pipeline
	fetcher    *fakeFetcher
	dispatcher *countingDispatcher
	ledger     *ledger.Ledger
	cursor     *cursor.Manager
	cursorRepo *memory.CursorRepo
	board      *leaderboard.Aggregator
}

func newHarness(t *testing.T, pageSize int) *harness {
	t.Helper()
	store := memory.NewMemoryStorage()
	l := ledger.New(memory.NewLedgerRepo(store), memory.NewJournalRepo(store), ledger.DefaultConfig())
	cursorRepo := memory.NewCursorRepo(store)
	mgr := cursor.NewManager(cursorRepo, testProgram)

	board := leaderboard.NewAggregator(memory.NewLeaderboardStore(), leaderboard.NewRoster(nil))
	disp := &countingDispatcher{
		next:  events.NewDispatcher(nil, board),
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
	fetcher := newFakeFetcher()

	p := NewPipeline(Config{
		ProgramID:    testProgram,
		Fetcher:      fetcher,
		Ledger:       l,
		Dispatcher:   disp,
		Cursor:       mgr,
		ScanInterval: time.Hour,
		PageSize:     pageSize,
		Workers:      4,
	})
	return &harness{
		pipeline:   p,
		fetcher:    fetcher,
		dispatcher: disp,
		ledger:     l,
		cursor:     mgr,
		cursorRepo: cursorRepo,
		board:      board,
	}
}

func (h *harness) votes(t *testing.T, contestant string) int64 {
	t.Helper()
	n, err := h.board.GetContestantVoteCount(context.Background(), "1", contestant)
	require.NoError(t, err)
	return n
}

// =============================================================================
// Tests
// =============================================================================

func TestRunPass_EndToEnd(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	h.fetcher.push("sig1", 7)
	h.fetcher.push("sig2", 8)
	h.fetcher.push("sig3", 7)

	res, err := h.pipeline.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Listed)
	assert.Equal(t, 3, res.Applied)
	assert.True(t, res.Complete())
	assert.Equal(t, "sig3", res.Cursor)

	// pages of size 2 and 1
	require.Len(t, h.fetcher.listReqs, 2)
	assert.Equal(t, "sig2", h.fetcher.listReqs[1].Before)

	n, err := h.ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(2), h.votes(t, "7"))
	assert.Equal(t, int64(1), h.votes(t, "8"))

	saved, err := h.cursorRepo.Get(ctx, testProgram)
	require.NoError(t, err)
	assert.Equal(t, "sig3", saved.LastSignature)
}

func TestRunPass_ResumesFromCursor(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.fetcher.push("sig3", 1)
	h.fetcher.push("sig4", 1)
	h.fetcher.push("sig5", 2)

	require.NoError(t, h.cursorRepo.Save(ctx, &domain.Cursor{ProgramID: testProgram, LastSignature: "sig3"}))
	_, err := h.cursor.Load(ctx)
	require.NoError(t, err)

	res, err := h.pipeline.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, "sig5", res.Cursor)
	assert.Zero(t, h.fetcher.calls("sig3"), "cursor signature must not be reprocessed")
	assert.Equal(t, "sig3", h.fetcher.listReqs[0].Until)

	// nothing new: the next pass is empty
	res, err = h.pipeline.RunPass(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Listed)
	assert.Equal(t, "sig5", res.Cursor)
}

func TestRunPass_OverlappingPassesApplyOnce(t *testing.T) {
	h := newHarness(t, 3)
	h.fetcher.delay = 5 * time.Millisecond
	ctx := context.Background()

	for i := 1; i <= 8; i++ {
		h.fetcher.push(fmt.Sprintf("sig%d", i), uint64(i%2))
	}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.pipeline.RunPass(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for i := 1; i <= 8; i++ {
		sig := fmt.Sprintf("sig%d", i)
		assert.Equal(t, 1, h.dispatcher.calls[sig], "signature %s dispatched more than once", sig)
	}
	assert.Equal(t, int64(4), h.votes(t, "0"))
	assert.Equal(t, int64(4), h.votes(t, "1"))
	assert.Equal(t, "sig8", h.cursor.Current())
}

func TestRunPass_MissFreezesCursor(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.fetcher.push("sig1", 1)
	h.fetcher.push("sig2", 1)
	h.fetcher.push("sig3", 1)
	missing := h.fetcher.txs["sig2"]
	delete(h.fetcher.txs, "sig2")

	res, err := h.pipeline.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Missed)
	assert.Equal(t, 2, res.Applied)
	assert.False(t, res.Complete())
	assert.Equal(t, "sig1", res.Cursor)

	done, err := h.ledger.IsProcessed(ctx, "sig2")
	require.NoError(t, err)
	assert.False(t, done, "missed signature stays unmarked")

	// the transaction becomes available
	h.fetcher.mu.Lock()
	h.fetcher.txs["sig2"] = missing
	h.fetcher.mu.Unlock()

	res, err = h.pipeline.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "sig3", res.Cursor)
	assert.Equal(t, int64(3), h.votes(t, "1"))
}

// nodeFetcher lists from the fake chain and fetches transactions from a node.
type nodeFetcher struct {
	*fakeFetcher
	node *solana.HTTPProvider
}

func (f nodeFetcher) GetTransaction(ctx context.Context, signature string) (*domain.Transaction, error) {
	return f.node.GetTransaction(ctx, signature)
}

// nodeServer answers getTransaction from logs; a nil entry has no log payload.
func nodeServer(t *testing.T, logs map[string][]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64 `json:"id"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		sig, _ := req.Params[0].(string)
		result := map[string]any{
			"slot": 5,
			"meta": map[string]any{"err": nil, "logMessages": logs[sig]},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunPass_MissingLogPayloadFreezesCursor(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.fetcher.push("sig1", 1)
	h.fetcher.push("sig2", 1)
	h.fetcher.push("sig3", 1)
	logs := map[string][]string{
		"sig1": voteLogs(1, 1, 1001),
		"sig2": nil,
		"sig3": voteLogs(1, 1, 1003),
	}
	fetcher := nodeFetcher{
		fakeFetcher: h.fetcher,
		node:        solana.NewHTTPProvider(nodeServer(t, logs).URL, "", 5*time.Second),
	}
	p := NewPipeline(Config{
		ProgramID:    testProgram,
		Fetcher:      fetcher,
		Ledger:       h.ledger,
		Dispatcher:   h.dispatcher,
		Cursor:       h.cursor,
		ScanInterval: time.Hour,
		PageSize:     10,
		Workers:      2,
	})

	assert.Equal(t, outcomeMissed, p.processSignature(ctx, domain.SignatureInfo{Signature: "sig2", Slot: 2}))

	res, err := p.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Missed)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, "sig1", res.Cursor)
	assert.Equal(t, 0, h.dispatcher.calls["sig2"])

	done, err := h.ledger.IsProcessed(ctx, "sig2")
	require.NoError(t, err)
	assert.False(t, done, "signature without log payload stays unmarked")
	assert.Equal(t, int64(2), h.votes(t, "1"))
}

func TestRunPass_HandlerErrorLeavesSignatureUnmarked(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.fetcher.push("sig1", 1)
	h.fetcher.push("sig2", 2)
	h.dispatcher.fail["sig2"] = errors.New("redis unavailable")

	res, err := h.pipeline.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "sig1", res.Cursor)

	done, err := h.ledger.IsProcessed(ctx, "sig2")
	require.NoError(t, err)
	assert.False(t, done)

	delete(h.dispatcher.fail, "sig2")
	res, err = h.pipeline.RunPass(ctx)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, "sig2", res.Cursor)
	assert.Equal(t, int64(1), h.votes(t, "2"))
}

func TestRunPass_ListingErrorAbortsPass(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	var seen []cursor.Transition
	h.cursor.SetStateChangeCallback(func(tr cursor.Transition) { seen = append(seen, tr) })
	h.fetcher.listErr = errors.New("rpc: too many requests")

	_, err := h.pipeline.RunPass(ctx)
	require.Error(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, cursor.StateFetching, seen[0].To)
	assert.Equal(t, cursor.StateError, seen[1].To)
	assert.Equal(t, cursor.StateIdle, seen[2].To)

	st := h.pipeline.GetStatus()
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, string(cursor.StateIdle), st.State)
	assert.Equal(t, cursor.StateDescription(cursor.StateIdle), st.StateDetail)
}

func TestRunPass_FailedTransactionRecordedWithoutFetch(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.fetcher.push("sig1", 1)
	h.fetcher.chain[0].Failed = true

	res, err := h.pipeline.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Zero(t, h.fetcher.calls("sig1"))
	assert.Zero(t, h.votes(t, "1"))

	done, err := h.ledger.IsProcessed(ctx, "sig1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestPipeline_StartWakeStop(t *testing.T) {
	h := newHarness(t, 10)
	h.fetcher.push("sig1", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.pipeline.Start(ctx) }()

	require.Eventually(t, func() bool { return h.cursor.Current() == "sig1" }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.pipeline.Start(ctx), ErrAlreadyRunning)

	h.fetcher.push("sig2", 1)
	h.pipeline.Wake()
	require.Eventually(t, func() bool { return h.cursor.Current() == "sig2" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.pipeline.Stop())
	require.NoError(t, h.pipeline.Stop())
	require.NoError(t, <-done)
	assert.False(t, h.pipeline.GetStatus().Running)
}
