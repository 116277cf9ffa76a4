package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignaturesProcessed tracks signatures applied and marked processed
	SignaturesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votewatch_signatures_processed_total",
			Help: "Total number of signatures applied and recorded in the ledger",
		},
	)

	// SignaturesSkipped tracks signatures skipped, by reason (processed, not_found)
	SignaturesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votewatch_signatures_skipped_total",
			Help: "Total number of signatures skipped",
		},
		[]string{"reason"},
	)

	// SignaturesFailed tracks signatures left for the next pass
	SignaturesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votewatch_signatures_failed_total",
			Help: "Total number of signatures that failed and will be retried",
		},
		[]string{"stage"},
	)

	// EventsDecoded tracks decoded program events by kind
	EventsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votewatch_events_decoded_total",
			Help: "Total number of program events decoded",
		},
		[]string{"kind"},
	)

	// PassesTotal tracks indexing passes by outcome
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votewatch_passes_total",
			Help: "Total number of indexing passes",
		},
		[]string{"result"},
	)

	// PassDuration tracks indexing pass latency
	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "votewatch_pass_duration_seconds",
			Help:    "Indexing pass duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	// PassState is 1 for the current orchestrator state and 0 for the others
	PassState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "votewatch_pass_state",
			Help: "Current indexing state machine state",
		},
		[]string{"state"},
	)

	// RPCCallsTotal tracks upstream RPC calls
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votewatch_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"method"},
	)

	// RPCErrorsTotal tracks upstream RPC errors
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votewatch_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"method", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "votewatch_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// RPCRetryDelay tracks backoff delays taken after rate-limit errors
	RPCRetryDelay = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "votewatch_rpc_retry_delay_seconds",
			Help:    "Backoff delay applied after a rate-limited RPC call",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16},
		},
		[]string{"method"},
	)

	// RateLimitWaitSeconds tracks time callers spend waiting on the limiter
	RateLimitWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "votewatch_rate_limit_wait_seconds",
			Help:    "Time spent waiting for a rate limiter slot",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	// LedgerWriteFailures tracks ledger writes that exhausted their retries
	LedgerWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votewatch_ledger_write_failures_total",
			Help: "Total number of ledger writes sent to the failure journal",
		},
	)

	// JournalReplayed tracks journal entries replayed by outcome
	JournalReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votewatch_journal_replayed_total",
			Help: "Total number of failure journal entries replayed",
		},
		[]string{"result"},
	)

	// JournalSize tracks entries waiting in the failure journal
	JournalSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "votewatch_journal_size",
			Help: "Number of signatures waiting in the failure journal",
		},
	)

	// VotesApplied tracks votes applied per contest
	VotesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votewatch_votes_applied_total",
			Help: "Total number of votes applied to the leaderboard",
		},
		[]string{"contest"},
	)

	// DBConnectionPoolUsage tracks open connections as a percentage of the pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "votewatch_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
