package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/votewatch/internal/core/domain"
)

// MemoryStorage backs every repository in memory mode and in tests.
type MemoryStorage struct {
	processed map[string]time.Time
	cursors   map[string]*domain.Cursor
	journal   []string
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		processed: make(map[string]time.Time),
		cursors:   make(map[string]*domain.Cursor),
	}
}

// -----------------------------------------------------------------------------
// Ledger Repository
// -----------------------------------------------------------------------------

type LedgerRepo struct {
	store *MemoryStorage
}

func NewLedgerRepo(store *MemoryStorage) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func (r *LedgerRepo) Exists(ctx context.Context, signature string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	_, ok := r.store.processed[signature]
	return ok, nil
}

func (r *LedgerRepo) Insert(ctx context.Context, signature string, processedAt time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.processed[signature]; ok {
		return false, nil
	}
	r.store.processed[signature] = processedAt
	return true, nil
}

func (r *LedgerRepo) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.processed)), nil
}

func (r *LedgerRepo) Truncate(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.processed = make(map[string]time.Time)
	return nil
}

// -----------------------------------------------------------------------------
// Cursor Repository
// -----------------------------------------------------------------------------

type CursorRepo struct {
	store *MemoryStorage
}

func NewCursorRepo(store *MemoryStorage) *CursorRepo {
	return &CursorRepo{store: store}
}

func (r *CursorRepo) Get(ctx context.Context, programID string) (*domain.Cursor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.cursors[programID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *CursorRepo) Save(ctx context.Context, cursor *domain.Cursor) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *cursor
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	r.store.cursors[cursor.ProgramID] = &cp
	return nil
}

func (r *CursorRepo) Delete(ctx context.Context, programID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.cursors, programID)
	return nil
}

// -----------------------------------------------------------------------------
// Journal Repository
// -----------------------------------------------------------------------------

type JournalRepo struct {
	store *MemoryStorage
}

func NewJournalRepo(store *MemoryStorage) *JournalRepo {
	return &JournalRepo{store: store}
}

func (r *JournalRepo) Append(ctx context.Context, signature string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.journal = append(r.store.journal, signature)
	return nil
}

func (r *JournalRepo) List(ctx context.Context) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return slices.Clone(r.store.journal), nil
}

func (r *JournalRepo) Remove(ctx context.Context, signatures []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, sig := range signatures {
		if i := slices.Index(r.store.journal, sig); i >= 0 {
			r.store.journal = slices.Delete(r.store.journal, i, i+1)
		}
	}
	return nil
}

func (r *JournalRepo) Len(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.journal), nil
}

func (r *JournalRepo) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.journal = nil
	return nil
}

// -----------------------------------------------------------------------------
// Leaderboard Store
// -----------------------------------------------------------------------------

type LeaderboardStore struct {
	scores  map[string]map[string]int64
	history map[string][]domain.VoteRecord // contest:contestant
	applied map[string]struct{}
	mu      sync.RWMutex
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{
		scores:  make(map[string]map[string]int64),
		history: make(map[string][]domain.VoteRecord),
		applied: make(map[string]struct{}),
	}
}

func (s *LeaderboardStore) ApplyVote(ctx context.Context, vote domain.Vote) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := vote.ContestID + "/" + vote.EventID
	if _, ok := s.applied[key]; ok {
		return false, nil
	}
	s.applied[key] = struct{}{}

	contest := s.contest(vote.ContestID)
	contest[vote.ContestantID]++

	hk := vote.ContestID + ":" + vote.ContestantID
	s.history[hk] = append(s.history[hk], domain.VoteRecord{VotedBy: vote.VotedBy, Timestamp: vote.CastedAt})
	return true, nil
}

func (s *LeaderboardStore) Seed(ctx context.Context, contestID string, contestantIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contest := s.contest(contestID)
	for _, id := range contestantIDs {
		if _, ok := contest[id]; !ok {
			contest[id] = 0
		}
	}
	return nil
}

func (s *LeaderboardStore) Scores(ctx context.Context, contestID string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(s.scores[contestID]))
	for id, v := range s.scores[contestID] {
		out[id] = v
	}
	return out, nil
}

func (s *LeaderboardStore) VoteCount(ctx context.Context, contestID, contestantID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scores[contestID][contestantID], nil
}

func (s *LeaderboardStore) VoteHistory(ctx context.Context, contestID, contestantID string) ([]domain.VoteRecord, error) {
	s.mu.RLock()
	records := slices.Clone(s.history[contestID+":"+contestantID])
	s.mu.RUnlock()

	slices.SortStableFunc(records, func(a, b domain.VoteRecord) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return records, nil
}

func (s *LeaderboardStore) Reset(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.scores) + len(s.history)
	s.scores = make(map[string]map[string]int64)
	s.history = make(map[string][]domain.VoteRecord)
	s.applied = make(map[string]struct{})
	return n, nil
}

func (s *LeaderboardStore) contest(id string) map[string]int64 {
	c, ok := s.scores[id]
	if !ok {
		c = make(map[string]int64)
		s.scores[id] = c
	}
	return c
}
