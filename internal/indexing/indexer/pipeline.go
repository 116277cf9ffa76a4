package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vietddude/votewatch/internal/core/cursor"
	"github.com/vietddude/votewatch/internal/core/domain"
	"github.com/vietddude/votewatch/internal/indexing/events"
	"github.com/vietddude/votewatch/internal/indexing/metrics"
	"github.com/vietddude/votewatch/internal/infra/rpc/solana"
)

// ErrAlreadyRunning is returned by Start when the loop is already running.
var ErrAlreadyRunning = errors.New("pipeline already running")

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeSkipped
	outcomeMissed
	outcomeFailed
)

// committed reports whether the signature's effects are durable.
func (o outcome) committed() bool {
	return o == outcomeApplied || o == outcomeSkipped
}

// Pipeline implements the Indexer interface
type Pipeline struct {
	cfg      Config
	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wake     chan struct{}
	inflight singleflight.Group
	log      *slog.Logger

	mu       sync.RWMutex
	lastPass *PassResult
	lastErr  error
}

// NewPipeline creates a new indexing pipeline
func NewPipeline(cfg Config) *Pipeline {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 15 * time.Second
	}
	return &Pipeline{
		cfg:  cfg,
		stop: make(chan struct{}),
		wake: make(chan struct{}, 1),
		log:  slog.Default().With("component", "indexer", "program", cfg.ProgramID),
	}
}

// Start runs a pass immediately and then on every tick or wake-up.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	if _, err := p.cfg.Cursor.Load(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.cfg.ScanInterval)
	defer ticker.Stop()

	p.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stop:
			return nil
		case <-ticker.C:
			p.runLogged(ctx)
		case <-p.wake:
			p.runLogged(ctx)
			ticker.Reset(p.cfg.ScanInterval)
		}
	}
}

// Stop stops the pipeline
func (p *Pipeline) Stop() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return nil
}

// Wake requests a pass. Requests made while one is pending are merged.
func (p *Pipeline) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// GetStatus returns the current status
func (p *Pipeline) GetStatus() Status {
	m := p.cfg.Cursor.GetMetrics()

	p.mu.RLock()
	defer p.mu.RUnlock()

	state := p.cfg.Cursor.State()
	st := Status{
		ProgramID:       p.cfg.ProgramID,
		Running:         p.running.Load(),
		State:           string(state),
		StateDetail:     cursor.StateDescription(state),
		Cursor:          p.cfg.Cursor.Current(),
		LastPass:        p.lastPass,
		LastPassAt:      m.LastPassAt,
		AveragePassTime: m.AveragePassTime.String(),
		StateHistory:    m.StateHistory,
	}
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	return st
}

func (p *Pipeline) runLogged(ctx context.Context) {
	res, err := p.RunPass(ctx)
	switch {
	case err != nil && ctx.Err() == nil:
		p.log.Error("Indexing pass failed", "pass_id", res.ID, "error", err)
	case res.Listed > 0:
		p.log.Info("Indexing pass complete",
			"pass_id", res.ID,
			"listed", res.Listed,
			"applied", res.Applied,
			"skipped", res.Skipped,
			"missed", res.Missed,
			"failed", res.Failed,
			"cursor", res.Cursor,
			"duration", res.Duration,
		)
	}
}

// RunPass lists every signature newer than the cursor and applies them oldest
// first. It is safe to call concurrently; each signature is applied at most
// once and the cursor never moves backwards.
func (p *Pipeline) RunPass(ctx context.Context) (PassResult, error) {
	start := time.Now()
	res := PassResult{ID: uuid.NewString()}
	log := p.log.With("pass_id", res.ID)
	pass := p.cfg.Cursor.BeginPass()

	finish := func(result string, err error) (PassResult, error) {
		res.Cursor = p.cfg.Cursor.Current()
		res.Duration = time.Since(start)
		metrics.PassesTotal.WithLabelValues(result).Inc()
		metrics.PassDuration.Observe(res.Duration.Seconds())

		p.mu.Lock()
		p.lastPass = &res
		p.lastErr = err
		p.mu.Unlock()
		return res, err
	}

	if err := pass.SetState(cursor.StateFetching, "pass started"); err != nil {
		return finish("error", err)
	}

	until := p.cfg.Cursor.Current()
	pages, err := p.fetch(ctx, until)
	if err != nil {
		_ = pass.SetState(cursor.StateError, err.Error())
		_ = pass.SetState(cursor.StateIdle, "pass aborted")
		return finish("error", err)
	}
	for _, page := range pages {
		res.Listed += len(page)
	}
	if res.Listed == 0 {
		_ = pass.SetState(cursor.StateIdle, "no new signatures")
		return finish("empty", nil)
	}

	_ = pass.SetState(cursor.StateApplying, fmt.Sprintf("%d signatures", res.Listed))
	log.Debug("Applying signatures", "listed", res.Listed, "pages", len(pages), "until", until)

	frozen := false
	var cursorErr error
	for i := len(pages) - 1; i >= 0 && ctx.Err() == nil; i-- {
		page := pages[i]
		outcomes := p.applyPage(ctx, page)

		var newest *domain.SignatureInfo
		for j := len(page) - 1; j >= 0; j-- {
			switch outcomes[j] {
			case outcomeApplied:
				res.Applied++
			case outcomeSkipped:
				res.Skipped++
			case outcomeMissed:
				res.Missed++
			case outcomeFailed:
				res.Failed++
			}
			if frozen {
				continue
			}
			if outcomes[j].committed() {
				newest = &page[j]
				continue
			}
			frozen = true
			log.Warn("Cursor held at uncommitted signature", "signature", page[j].Signature)
		}

		if newest != nil && cursorErr == nil {
			if err := p.cfg.Cursor.Advance(ctx, newest.Signature, newest.Slot); err != nil {
				cursorErr = err
				frozen = true
				log.Error("Failed to persist cursor", "error", err)
			}
		}
	}

	_ = pass.SetState(cursor.StateIdle, "pass complete")
	if cursorErr != nil {
		return finish("error", cursorErr)
	}
	if !res.Complete() {
		return finish("partial", nil)
	}
	return finish("ok", nil)
}

// fetch lists every signature newer than until in pages, newest page first.
func (p *Pipeline) fetch(ctx context.Context, until string) ([][]domain.SignatureInfo, error) {
	var (
		pages  [][]domain.SignatureInfo
		before string
	)
	for {
		page, err := p.cfg.Fetcher.ListSignatures(ctx, p.cfg.ProgramID, solana.SignaturesOpts{
			Before: before,
			Until:  until,
			Limit:  p.cfg.PageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list signatures (before=%q): %w", before, err)
		}
		if len(page) == 0 {
			return pages, nil
		}
		pages = append(pages, page)
		if len(page) < p.cfg.PageSize {
			return pages, nil
		}
		before = page[len(page)-1].Signature
	}
}

// applyPage processes a newest-first page, starting with its oldest signature.
func (p *Pipeline) applyPage(ctx context.Context, page []domain.SignatureInfo) []outcome {
	outcomes := make([]outcome, len(page))

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i := len(page) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			outcomes[i] = outcomeFailed
			continue
		}
		g.Go(func() error {
			outcomes[i] = p.process(ctx, page[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// process applies one signature. Concurrent calls for the same signature
// share a single execution.
func (p *Pipeline) process(ctx context.Context, info domain.SignatureInfo) outcome {
	v, _, _ := p.inflight.Do(info.Signature, func() (any, error) {
		return p.processSignature(ctx, info), nil
	})
	return v.(outcome)
}

func (p *Pipeline) processSignature(ctx context.Context, info domain.SignatureInfo) outcome {
	log := p.log.With("signature", info.Signature)

	done, err := p.cfg.Ledger.IsProcessed(ctx, info.Signature)
	if err != nil {
		metrics.SignaturesFailed.WithLabelValues("ledger").Inc()
		log.Warn("Ledger lookup failed", "error", err)
		return outcomeFailed
	}
	if done {
		metrics.SignaturesSkipped.WithLabelValues("processed").Inc()
		return outcomeSkipped
	}

	// Failed transactions carry no effects; record them so they are not fetched again.
	if !info.Failed {
		tx, err := p.cfg.Fetcher.GetTransaction(ctx, info.Signature)
		if err != nil {
			metrics.SignaturesFailed.WithLabelValues("fetch").Inc()
			log.Warn("Failed to fetch transaction", "error", err)
			return outcomeFailed
		}
		if tx == nil {
			metrics.SignaturesSkipped.WithLabelValues("not_found").Inc()
			log.Warn("Transaction not found, will retry next pass")
			return outcomeMissed
		}
		if !tx.Failed {
			envs := events.Envelopes(p.cfg.ProgramID, tx)
			if err := p.cfg.Dispatcher.DispatchAll(ctx, envs); err != nil {
				metrics.SignaturesFailed.WithLabelValues("dispatch").Inc()
				log.Warn("Failed to apply events", "error", err)
				return outcomeFailed
			}
		}
	} else {
		metrics.SignaturesSkipped.WithLabelValues("failed_tx").Inc()
	}

	if err := p.cfg.Ledger.MarkProcessed(ctx, info.Signature); err != nil {
		metrics.SignaturesFailed.WithLabelValues("ledger").Inc()
		log.Error("Failed to record signature", "error", err)
		return outcomeFailed
	}
	metrics.SignaturesProcessed.Inc()
	return outcomeApplied
}
