package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// LogNotification is one logsSubscribe notification.
type LogNotification struct {
	Signature string
	Slot      uint64
	Logs      []string
	Failed    bool
}

// WSConfig configures the log subscriber.
type WSConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration
}

// DefaultWSConfig returns default websocket settings.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
	}
}

// LogSubscriber streams log notifications for transactions mentioning one program.
type LogSubscriber struct {
	endpoint   string
	programID  string
	commitment string
	cfg        WSConfig
	log        *slog.Logger
}

// NewLogSubscriber creates a subscriber. Call Run to connect.
func NewLogSubscriber(endpoint, programID, commitment string, cfg WSConfig) *LogSubscriber {
	if commitment == "" {
		commitment = "confirmed"
	}
	return &LogSubscriber{
		endpoint:   endpoint,
		programID:  programID,
		commitment: commitment,
		cfg:        cfg,
		log:        slog.Default().With("component", "log-subscriber"),
	}
}

type wsMessage struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Params *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string   `json:"signature"`
				Err       any      `json:"err"`
				Logs      []string `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Run subscribes and invokes fn for every notification until ctx is done.
// Dropped connections are re-established with capped exponential delay. The
// delay starts over once a session has confirmed its subscription.
func (s *LogSubscriber) Run(ctx context.Context, fn func(LogNotification)) error {
	delay := s.cfg.ReconnectDelay
	for {
		subscribed, err := s.session(ctx, fn)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			delay = s.cfg.ReconnectDelay
		}
		s.log.Warn("Log subscription dropped, reconnecting", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, s.cfg.MaxReconnectDelay)
	}
}

// session runs one connection until it drops. subscribed reports whether the
// node confirmed the subscription before that.
func (s *LogSubscriber) session(ctx context.Context, fn func(LogNotification)) (subscribed bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []any{
			map[string]any{"mentions": []string{s.programID}},
			map[string]string{"commitment": s.commitment},
		},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return false, fmt.Errorf("write subscribe: %w", err)
	}

	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.pingLoop(conn, pingDone)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return subscribed, fmt.Errorf("read: %w", err)
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug("Ignoring malformed websocket message", "error", err)
			continue
		}

		switch {
		case msg.Error != nil:
			return subscribed, fmt.Errorf("subscribe: %w", msg.Error)
		case msg.ID == 1 && msg.Method == "":
			subscribed = true
			s.log.Info("Subscribed to program logs", "program", s.programID)
		case msg.Method == "logsNotification" && msg.Params != nil:
			v := msg.Params.Result.Value
			fn(LogNotification{
				Signature: v.Signature,
				Slot:      msg.Params.Result.Context.Slot,
				Logs:      v.Logs,
				Failed:    v.Err != nil,
			})
		}
	}
}

func (s *LogSubscriber) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
