package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/votewatch/internal/core/domain"
	"github.com/vietddude/votewatch/internal/indexing/metrics"
	"github.com/vietddude/votewatch/internal/indexing/throttle"
	"github.com/vietddude/votewatch/internal/infra/rpc/solana"
)

// Upstream is a single-attempt Solana RPC endpoint.
type Upstream interface {
	GetSignaturesForAddress(ctx context.Context, address string, opts solana.SignaturesOpts) ([]domain.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*domain.Transaction, error)
}

// Limiter admits outbound requests.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Client is the retrying fetch client.
type Client struct {
	upstream Upstream
	limiter  Limiter
	cfg      RetryConfig
	sleep    func(ctx context.Context, d time.Duration) error
	log      *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithSleep replaces the function used to wait between retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient wraps upstream with rate limiting and rate-limit retries.
func NewClient(upstream Upstream, limiter Limiter, cfg RetryConfig, opts ...Option) *Client {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	c := &Client{
		upstream: upstream,
		limiter:  limiter,
		cfg:      cfg,
		sleep:    throttle.Sleep,
		log:      slog.Default().With("component", "rpc"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListSignatures returns up to opts.Limit signatures for address, newest first.
func (c *Client) ListSignatures(
	ctx context.Context,
	address string,
	opts solana.SignaturesOpts,
) ([]domain.SignatureInfo, error) {
	var sigs []domain.SignatureInfo
	err := c.do(ctx, "getSignaturesForAddress", func(ctx context.Context) error {
		var err error
		sigs, err = c.upstream.GetSignaturesForAddress(ctx, address, opts)
		return err
	})
	return sigs, err
}

// GetTransaction returns the transaction, or nil if the node has no record of it.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*domain.Transaction, error) {
	var tx *domain.Transaction
	err := c.do(ctx, "getTransaction", func(ctx context.Context) error {
		var err error
		tx, err = c.upstream.GetTransaction(ctx, signature)
		return err
	})
	return tx, err
}

// do runs call through the limiter, retrying rate-limited attempts.
func (c *Client) do(ctx context.Context, method string, call func(ctx context.Context) error) error {
	backoff := newBackoff(c.cfg)

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := call(ctx)
		if err == nil {
			return nil
		}
		if ClassifyError(err) != ActionRetry {
			return fmt.Errorf("%s failed: %w", method, err)
		}

		delay, stop := backoff.Next()
		if stop {
			return fmt.Errorf("%s: %w after %d attempts: %w", method, ErrRetriesExhausted, attempt+1, err)
		}

		c.log.Warn("Rate limited, backing off",
			"method", method,
			"attempt", attempt+1,
			"delay", delay,
		)
		metrics.RPCRetryDelay.WithLabelValues(method).Observe(delay.Seconds())

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}
