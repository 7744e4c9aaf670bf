package engine

import (
	"errors"
	"fmt"
	"time"
)

// Defaults for Config fields left at zero.
const (
	DefaultSearchDepth = 18
	DefaultMinDepth    = 15
	DefaultMultiPV     = 3
)

// Config controls how positions are searched.
type Config struct {
	// SearchDepth is the depth passed to "go depth".
	SearchDepth int `mapstructure:"search_depth"`

	// MinDepth is the shallowest depth whose score is recorded.
	MinDepth int `mapstructure:"min_depth"`

	// MultiPV is the number of principal variations requested. Only the
	// first variation's score is recorded.
	MultiPV int `mapstructure:"multipv"`

	// IdleTimeout fails a session that receives no engine output for this
	// long. Zero waits until the caller's context ends.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// WithDefaults returns c with zero fields set to their defaults.
func (c Config) WithDefaults() Config {
	if c.SearchDepth <= 0 {
		c.SearchDepth = DefaultSearchDepth
	}
	if c.MinDepth <= 0 {
		c.MinDepth = DefaultMinDepth
	}
	if c.MultiPV <= 0 {
		c.MultiPV = DefaultMultiPV
	}
	return c
}

// Sentinel errors for session outcomes other than success.
var (
	// ErrStalled indicates the engine went quiet before the session finished.
	ErrStalled = errors.New("engine: session stalled")

	// ErrSuperseded indicates a newer session replaced this one.
	ErrSuperseded = errors.New("engine: session superseded")

	// ErrEngineExited indicates the engine's output closed.
	ErrEngineExited = errors.New("engine: process exited")

	// ErrClosedConn indicates a send on a closed connection.
	ErrClosedConn = errors.New("engine: connection closed")
)

// OpError records a failed engine operation.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
