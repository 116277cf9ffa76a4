package throttle

import "time"

// Config bounds admissions to Limit per trailing Window.
type Config struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig returns the public Solana RPC budget.
func DefaultConfig() Config {
	return Config{
		Limit:  120,
		Window: time.Second,
	}
}
