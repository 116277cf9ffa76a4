package rpc

import (
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/vietddude/votewatch/internal/infra/rpc/solana"
)

// ErrRetriesExhausted is returned when a call is still rate limited after
// the last retry.
var ErrRetriesExhausted = errors.New("rpc retries exhausted")

// RetryConfig defines retry behavior for rate-limited calls.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:   3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     10 * time.Second,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFail
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ClassifyError determines the action for a given error. Only rate-limit
// class errors are retried at this layer.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFail
	}
	if errors.Is(err, solana.ErrRateLimited) {
		return ActionRetry
	}

	s := err.Error()
	sLower := strings.ToLower(s)
	if strings.Contains(s, "429") ||
		strings.Contains(sLower, "too many requests") ||
		strings.Contains(sLower, "rate limit") {
		return ActionRetry
	}

	return ActionFail
}

// newBackoff returns delays min(InitialDelay*2^attempt, MaxDelay) for at
// most MaxRetries retries.
func newBackoff(cfg RetryConfig) retry.Backoff {
	b := retry.NewExponential(cfg.InitialDelay)
	b = retry.WithCappedDuration(cfg.MaxDelay, b)
	return retry.WithMaxRetries(uint64(cfg.MaxRetries), b)
}
