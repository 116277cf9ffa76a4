package cursor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/votewatch/internal/core/domain"
	"github.com/vietddude/votewatch/internal/indexing/metrics"
	"github.com/vietddude/votewatch/internal/infra/storage"
)

// Manager owns the cursor of one program and the pass state machine.
type Manager struct {
	repo          storage.CursorRepository
	programID     string
	mu            sync.RWMutex
	last          string
	lastSlot      uint64 // slot of last, 0 when loaded from storage
	state         State
	stateCallback func(Transition)
	collector     *MetricsCollector
	log           *slog.Logger
}

// NewManager creates a manager in the idle state.
func NewManager(repo storage.CursorRepository, programID string) *Manager {
	m := &Manager{
		repo:      repo,
		programID: programID,
		state:     StateIdle,
		collector: NewMetricsCollector(20),
		log:       slog.Default().With("component", "cursor"),
	}
	m.publishState()
	return m
}

// Load reads the persisted cursor. An empty string means nothing was indexed.
func (m *Manager) Load(ctx context.Context) (string, error) {
	c, err := m.repo.Get(ctx, m.programID)
	if err != nil {
		return "", fmt.Errorf("failed to load cursor: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = ""
	m.lastSlot = 0
	if c != nil {
		m.last = c.LastSignature
	}
	return m.last, nil
}

// Current returns the in-memory cursor.
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Advance persists signature as the new cursor. Callers pass only signatures
// whose older predecessors are committed. A signature from an older slot than
// the current cursor is ignored so overlapping passes never move it backwards.
func (m *Manager) Advance(ctx context.Context, signature string, slot uint64) error {
	if signature == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if signature == m.last || slot < m.lastSlot {
		return nil
	}

	err := m.repo.Save(ctx, &domain.Cursor{
		ProgramID:     m.programID,
		LastSignature: signature,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	m.log.Debug("Cursor advanced", "from", m.last, "to", signature, "slot", slot)
	m.last = signature
	m.lastSlot = slot
	return nil
}

// Reset deletes the persisted cursor so the next pass starts from the oldest history.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.Delete(ctx, m.programID); err != nil {
		return fmt.Errorf("failed to delete cursor: %w", err)
	}
	m.last = ""
	m.lastSlot = 0
	return nil
}

// State returns the state of the most recent transition of any pass.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Pass is the state machine of one indexing pass.
type Pass struct {
	m     *Manager
	state State
}

// BeginPass returns a state machine in the idle state. Overlapping passes
// each validate their own transitions; the manager reports the latest one.
func (m *Manager) BeginPass() *Pass {
	return &Pass{m: m, state: StateIdle}
}

// State returns the pass state.
func (p *Pass) State() State {
	return p.state
}

// SetState transitions the pass to a new state.
func (p *Pass) SetState(to State, reason string) error {
	t := NewTransition(p.state, to, reason)
	if !t.IsValid() {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, p.state, to)
	}
	p.state = to
	p.m.record(t)
	return nil
}

func (m *Manager) record(t Transition) {
	m.mu.Lock()
	m.state = t.To
	m.collector.RecordTransition(t)
	cb := m.stateCallback
	m.mu.Unlock()

	m.publishState()
	m.log.Debug("Pass state changed", "from", t.From, "to", t.To, "reason", t.Reason, "state", StateDescription(t.To))
	if cb != nil {
		cb(t)
	}
}

// SetStateChangeCallback registers callback for state changes.
func (m *Manager) SetStateChangeCallback(fn func(t Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateCallback = fn
}

// GetMetrics returns recent state machine activity.
func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collector.GetMetrics()
}

func (m *Manager) publishState() {
	current := m.State()
	for _, s := range States {
		v := 0.0
		if s == current {
			v = 1
		}
		metrics.PassState.WithLabelValues(string(s)).Set(v)
	}
}
