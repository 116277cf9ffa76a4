package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/votewatch/internal/indexing/indexer"
)

// StatusSource reports orchestrator status.
type StatusSource interface {
	GetStatus() indexer.Status
}

// JournalSizer reports pending failed ledger writes.
type JournalSizer interface {
	JournalLen(ctx context.Context) (int, error)
}

// Pinger checks a store connection.
type Pinger func(ctx context.Context) error

// Thresholds decide when the system is degraded or critical.
type Thresholds struct {
	StaleAfter      time.Duration // no completed pass for this long is critical
	CriticalJournal int
	CacheFor        time.Duration
}

// DefaultThresholds derives thresholds from the scan interval.
func DefaultThresholds(scanInterval time.Duration) Thresholds {
	return Thresholds{
		StaleAfter:      max(4*scanInterval, time.Minute),
		CriticalJournal: 50,
		CacheFor:        5 * time.Second,
	}
}

// Monitor aggregates health status from various system components.
type Monitor struct {
	source     StatusSource
	journal    JournalSizer
	stores     map[string]Pinger
	thresholds Thresholds
	now        func() time.Time
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(source StatusSource, journal JournalSizer, stores map[string]Pinger, thresholds Thresholds) *Monitor {
	return &Monitor{
		source:     source,
		journal:    journal,
		stores:     stores,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// CheckHealth builds a report, reusing a recent one to avoid hammering stores.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastReport != nil && now.Sub(m.lastCheck) < m.thresholds.CacheFor {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Stores:       make(map[string]string, len(m.stores)),
		Indexer:      m.source.GetStatus(),
	}
	worsen := func(s SystemStatus) {
		if s == StatusCritical || report.SystemStatus == StatusHealthy {
			report.SystemStatus = s
		}
	}

	// 1. Stores
	for name, ping := range m.stores {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := ping(pctx)
		cancel()
		if err != nil {
			report.Stores[name] = err.Error()
			worsen(StatusCritical)
			continue
		}
		report.Stores[name] = "ok"
	}

	// 2. Failure journal
	if m.journal != nil {
		n, err := m.journal.JournalLen(ctx)
		switch {
		case err != nil:
			worsen(StatusDegraded)
		case n >= m.thresholds.CriticalJournal:
			worsen(StatusCritical)
		case n > 0:
			worsen(StatusDegraded)
		}
		report.JournalSize = n
	}

	// 3. Pass progress
	st := report.Indexer
	if st.LastError != "" || (st.LastPass != nil && !st.LastPass.Complete()) {
		worsen(StatusDegraded)
	}
	if st.Running && st.LastPassAt != nil && now.Sub(*st.LastPassAt) > m.thresholds.StaleAfter {
		worsen(StatusCritical)
	}

	m.lastCheck = now
	m.lastReport = &report
	return report
}
