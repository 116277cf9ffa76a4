// Package roster fetches the contestant list from the roster service.
package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/votewatch/internal/core/domain"
)

// Client reads GET <url>?limit=<n> responses shaped {"data":[{...}]}.
type Client struct {
	url        string
	limit      int
	httpClient *http.Client
	backoff    func() retry.Backoff
}

// NewClient creates a roster client.
func NewClient(rawURL string, limit int, timeout time.Duration) *Client {
	return &Client{
		url:        rawURL,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
		},
	}
}

type rosterResponse struct {
	Data []map[string]any `json:"data"`
}

// Contestants fetches the roster. Server errors are retried a few times.
func (c *Client) Contestants(ctx context.Context) ([]domain.Contestant, error) {
	endpoint, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid roster url: %w", err)
	}
	if c.limit > 0 {
		q := endpoint.Query()
		q.Set("limit", strconv.Itoa(c.limit))
		endpoint.RawQuery = q.Encode()
	}

	body, err := retry.DoValue(ctx, c.backoff(), func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, endpoint.String())
	})
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var resp rosterResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	contestants := make([]domain.Contestant, 0, len(resp.Data))
	for _, raw := range resp.Data {
		id := stringField(raw["onChainId"])
		if id == "" {
			continue
		}
		contestants = append(contestants, domain.Contestant{
			ID:         id,
			Name:       stringField(raw["name"]),
			Attributes: raw,
		})
	}
	return contestants, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("roster request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("read roster: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, retry.RetryableError(fmt.Errorf("roster service returned %d", resp.StatusCode))
	default:
		return nil, fmt.Errorf("roster service returned %d", resp.StatusCode)
	}
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
