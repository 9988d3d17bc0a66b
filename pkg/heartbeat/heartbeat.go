// Package heartbeat classifies inbound Engine messages as heartbeat
// responses, deciding whether the Connection Supervisor should forward
// them to application subscribers or swallow them as keep-alive noise.
// It holds no timers of its own — the Supervisor owns the tick and
// timeout timers, since only it knows the connection's current state —
// it is purely the request/validator configuration plus the
// classification rule from the teacher's ping/pong handling.
package heartbeat

import (
	"time"

	"github.com/lwj1994/okws-client/pkg/engine"
)

const (
	// DefaultInterval is used when Config.Interval is not positive.
	DefaultInterval = 15 * time.Second
	// DefaultTimeout is used when Config.Timeout is not positive.
	DefaultTimeout = 10 * time.Second
)

// Config is an immutable heartbeat configuration. A nil *Config passed
// to the Supervisor disables the heartbeat monitor entirely.
type Config struct {
	// Interval is how often, while Connected, a request is sent.
	Interval time.Duration
	// Timeout bounds how long the Supervisor waits for a response
	// after sending a request before treating the connection as lost.
	// Should be less than Interval: the Supervisor leaves an earlier
	// tick's timeout deadline running rather than push it back on a
	// later tick, so a Timeout >= Interval means the deadline from the
	// first unanswered tick is the one that eventually fires.
	Timeout time.Duration
	// Request is the payload sent on each tick.
	Request engine.Message
	// Validator classifies an inbound message as a heartbeat response.
	// Nil means keep-alive mode: every inbound message counts as a
	// response.
	Validator func(engine.Message) bool
	// DisableIntercept turns off the default behavior of dropping
	// messages classified as heartbeat responses, forwarding them to
	// application subscribers like any other message instead.
	DisableIntercept bool
}

// New returns a Config with defaults applied: Interval=15s, Timeout=10s.
// Request and Validator are taken verbatim from cfg.
func New(cfg Config) Config {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}

// IsResponse reports whether msg classifies as a heartbeat response
// under this configuration: validator(msg) if a validator is set,
// otherwise true for any message (keep-alive mode).
func (c Config) IsResponse(msg engine.Message) bool {
	if c.Validator != nil {
		return c.Validator(msg)
	}
	return true
}

// Forward reports whether msg should be forwarded to application
// subscribers, given whether it classified as a heartbeat response.
// A non-response message is always forwarded; a response message is
// forwarded only when DisableIntercept is set.
func (c Config) Forward(isResponse bool) bool {
	if !isResponse {
		return true
	}
	return c.DisableIntercept
}
