package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vietddude/votewatch/internal/core/domain"
	"github.com/vietddude/votewatch/internal/indexing/metrics"
)

// HTTPProvider makes single-attempt JSON-RPC calls to a Solana endpoint.
// Retrying and rate limiting are the caller's concern.
type HTTPProvider struct {
	endpoint   string
	commitment string
	httpClient *http.Client
	requestID  atomic.Uint64
}

// NewHTTPProvider creates a new HTTP-based Solana RPC provider.
func NewHTTPProvider(endpoint, commitment string, timeout time.Duration) *HTTPProvider {
	if commitment == "" {
		commitment = "confirmed"
	}
	return &HTTPProvider{
		endpoint:   endpoint,
		commitment: commitment,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// GetSignaturesForAddress lists signatures involving address, newest first.
func (p *HTTPProvider) GetSignaturesForAddress(
	ctx context.Context,
	address string,
	opts SignaturesOpts,
) ([]domain.SignatureInfo, error) {
	cfg := map[string]any{"commitment": p.commitment}
	if opts.Before != "" {
		cfg["before"] = opts.Before
	}
	if opts.Until != "" {
		cfg["until"] = opts.Until
	}
	if opts.Limit > 0 {
		cfg["limit"] = opts.Limit
	}

	var result []signatureResult
	if err := p.call(ctx, "getSignaturesForAddress", []any{address, cfg}, &result); err != nil {
		return nil, err
	}

	sigs := make([]domain.SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = domain.SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			Failed:    r.Err != nil,
		}
		if r.BlockTime != nil {
			sigs[i].BlockTime = *r.BlockTime
		}
	}
	return sigs, nil
}

// GetTransaction fetches a confirmed transaction.
// It returns nil, nil when the node has no record or no log payload for it.
func (p *HTTPProvider) GetTransaction(ctx context.Context, signature string) (*domain.Transaction, error) {
	cfg := map[string]any{
		"encoding":                       "json",
		"commitment":                     p.commitment,
		"maxSupportedTransactionVersion": 0,
	}

	var result *transactionResult
	if err := p.call(ctx, "getTransaction", []any{signature, cfg}, &result); err != nil {
		return nil, err
	}
	if result == nil || result.Meta == nil || result.Meta.LogMessages == nil {
		return nil, nil
	}

	tx := &domain.Transaction{
		Signature:   signature,
		Slot:        result.Slot,
		Failed:      result.Meta.Err != nil,
		LogMessages: result.Meta.LogMessages,
	}
	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}
	return tx, nil
}

func (p *HTTPProvider) call(ctx context.Context, method string, params []any, result any) error {
	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(method).Inc()
	defer func() {
		metrics.RPCLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      p.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(method, "network").Inc()
		return fmt.Errorf("rpc call %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(method, "network").Inc()
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errType := "http"
		if resp.StatusCode == http.StatusTooManyRequests {
			errType = "rate_limit"
		}
		metrics.RPCErrorsTotal.WithLabelValues(method, errType).Inc()
		return &HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Body:       truncate(string(respBody), 256),
		}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(method, "parse").Inc()
		return fmt.Errorf("parse response: %w", err)
	}
	if rpcResp.Error != nil {
		metrics.RPCErrorsTotal.WithLabelValues(method, "rpc").Inc()
		return rpcResp.Error
	}

	if len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(method, "parse").Inc()
		return fmt.Errorf("parse %s result: %w", method, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
