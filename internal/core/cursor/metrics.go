package cursor

import (
	"time"
)

// Metrics holds recent state machine activity.
type Metrics struct {
	LastPassAt      *time.Time
	LastErrorAt     *time.Time
	AveragePassTime time.Duration
	StateHistory    []Transition
}

// MetricsCollector tracks recent transitions and pass durations.
type MetricsCollector struct {
	windowSize  int             // number of passes to track
	passTimes   []time.Duration // ring buffer of pass durations
	transitions []Transition    // recent state changes
	passStart   time.Time
	lastPassAt  *time.Time
	lastErrorAt *time.Time
}

// NewMetricsCollector creates a collector that averages over windowSize passes.
func NewMetricsCollector(windowSize int) *MetricsCollector {
	return &MetricsCollector{windowSize: max(windowSize, 1)}
}

// RecordTransition records a state transition and derives pass timing from it.
func (mc *MetricsCollector) RecordTransition(t Transition) {
	// Keep only last 10 transitions
	if len(mc.transitions) >= 10 {
		copy(mc.transitions, mc.transitions[1:])
		mc.transitions[len(mc.transitions)-1] = t
	} else {
		mc.transitions = append(mc.transitions, t)
	}

	switch {
	case t.To == StateFetching:
		mc.passStart = t.Timestamp
	case t.To == StateError:
		at := t.Timestamp
		mc.lastErrorAt = &at
	case t.To == StateIdle && !mc.passStart.IsZero():
		at := t.Timestamp
		mc.lastPassAt = &at
		mc.recordPass(at.Sub(mc.passStart))
		mc.passStart = time.Time{}
	}
}

func (mc *MetricsCollector) recordPass(d time.Duration) {
	if len(mc.passTimes) >= mc.windowSize {
		// Shift elements left, drop oldest
		copy(mc.passTimes, mc.passTimes[1:])
		mc.passTimes[len(mc.passTimes)-1] = d
	} else {
		mc.passTimes = append(mc.passTimes, d)
	}
}

// GetMetrics returns current metrics.
func (mc *MetricsCollector) GetMetrics() Metrics {
	m := Metrics{
		LastPassAt:   mc.lastPassAt,
		LastErrorAt:  mc.lastErrorAt,
		StateHistory: make([]Transition, len(mc.transitions)),
	}
	copy(m.StateHistory, mc.transitions)

	if len(mc.passTimes) > 0 {
		var total time.Duration
		for _, d := range mc.passTimes {
			total += d
		}
		m.AveragePassTime = total / time.Duration(len(mc.passTimes))
	}
	return m
}

// Reset clears all collected metrics.
func (mc *MetricsCollector) Reset() {
	mc.passTimes = mc.passTimes[:0]
	mc.transitions = mc.transitions[:0]
	mc.passStart = time.Time{}
	mc.lastPassAt = nil
	mc.lastErrorAt = nil
}
