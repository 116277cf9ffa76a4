package solana

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrRateLimited is returned when the endpoint rejects a request for rate reasons.
var ErrRateLimited = errors.New("rate limited")

// SignaturesOpts are the pagination bounds of getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // exclusive upper bound, walk backwards from here
	Until  string // exclusive lower bound, stop once reached
	Limit  int
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Is reports rate-limit class RPC errors as ErrRateLimited.
func (e *RPCError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == codeRateLimited
}

// HTTPError is a non-200 HTTP response.
type HTTPError struct {
	StatusCode int
	RetryAfter string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("http %d (retry after %s): %s", e.StatusCode, e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Is reports HTTP 429 as ErrRateLimited.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == 429
}

// codeRateLimited is the JSON-RPC code some providers use for throttling.
const codeRateLimited = -32429

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

type signatureResult struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Err       any    `json:"err"`
}

type transactionResult struct {
	Slot        uint64 `json:"slot"`
	BlockTime   *int64 `json:"blockTime"`
	Transaction struct {
		Signatures []string `json:"signatures"`
	} `json:"transaction"`
	Meta *struct {
		Err         any      `json:"err"`
		LogMessages []string `json:"logMessages"`
	} `json:"meta"`
}
