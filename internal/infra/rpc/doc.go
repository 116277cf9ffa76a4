// Package rpc provides the rate-limited, retrying Solana fetch client used by
// the indexer.
//
// Every call first takes a slot from the shared sliding-window limiter, then
// issues one upstream request. Rate-limit class failures are retried with
// capped exponential backoff; everything else is returned to the caller.
package rpc
