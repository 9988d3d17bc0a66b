// Package backoff provides the pure attempt-to-delay capability the
// Connection Supervisor consults when scheduling a reconnect: given how
// many consecutive failures have occurred, how long should it wait
// before trying again.
package backoff

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// DefaultLinearInterval is the delay used by the zero-value Linear
// strategy and by Supervisor when no strategy is configured.
const DefaultLinearInterval = 3 * time.Second

// Strategy is a small capability with two operations: Next computes the
// delay before the given attempt (attempt is 1 for the first retry
// after the first failure), and Reset clears any internal counter.
//
// Implementations must be safe for concurrent use: the Supervisor calls
// them from its own single event-loop goroutine, but a Strategy value
// may be shared across multiple Supervisor instances.
type Strategy interface {
	// Next returns the delay before the given attempt. attempt is always
	// >= 1. The result is never negative.
	Next(attempt int) time.Duration
	// Reset clears any state accumulated across attempts.
	Reset()
}

// Linear is a constant-delay Strategy: every attempt waits the same
// interval. It is stateless, so Reset is a no-op.
type Linear struct {
	// Interval is the constant delay returned by Next. Zero means
	// DefaultLinearInterval.
	Interval time.Duration
}

// NewLinear returns a Linear strategy with the given interval. A
// non-positive interval falls back to DefaultLinearInterval.
func NewLinear(interval time.Duration) *Linear {
	if interval <= 0 {
		interval = DefaultLinearInterval
	}
	return &Linear{Interval: interval}
}

// Next implements Strategy.
func (l *Linear) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if l.Interval <= 0 {
		return DefaultLinearInterval
	}
	return l.Interval
}

// Reset implements Strategy. Linear carries no state.
func (l *Linear) Reset() {}

// ExponentialConfig configures an Exponential backoff strategy. Zero
// fields fall back to the documented defaults.
type ExponentialConfig struct {
	// Initial is the delay for attempt 1. Default 1s.
	Initial time.Duration
	// Max is the ceiling every computed delay is clamped to. Default 30s.
	Max time.Duration
	// Multiplier is applied per additional attempt. Default 1.5.
	Multiplier float64
	// Jitter is the fraction of the un-jittered delay used as the
	// symmetric jitter range, e.g. 0.2 means +/-20%. Default 0.2.
	Jitter float64
}

func (c ExponentialConfig) normalize() ExponentialConfig {
	if c.Initial <= 0 {
		c.Initial = time.Second
	}
	if c.Max <= 0 {
		c.Max = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 1.5
	}
	if c.Jitter < 0 {
		c.Jitter = 0.2
	}
	return c
}

// Exponential implements attempt -> initial*multiplier^(attempt-1),
// clamped to max, with symmetric multiplicative jitter applied before
// the clamp so a large jitter can never push the result past max.
type Exponential struct {
	cfg ExponentialConfig
	mu  sync.Mutex
	rng *rand.Rand
}

// NewExponential returns an Exponential strategy built from cfg, with
// zero fields replaced by defaults (initial=1s, max=30s, multiplier=1.5,
// jitter=0.2).
func NewExponential(cfg ExponentialConfig) *Exponential {
	return &Exponential{
		cfg: cfg.normalize(),
		//nolint:gosec // jitter does not need a cryptographic RNG
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next implements Strategy.
func (e *Exponential) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := float64(e.cfg.Initial) * math.Pow(e.cfg.Multiplier, float64(attempt-1))

	jitterRange := e.cfg.Jitter * base

	e.mu.Lock()
	offset := (e.rng.Float64()*2 - 1) * jitterRange
	e.mu.Unlock()

	d := base + offset
	if d < 0 {
		d = 0
	}
	if max := float64(e.cfg.Max); d > max {
		d = max
	}

	return time.Duration(d)
}

// Reset implements Strategy. The RNG is not required to be reset and is
// left as-is; Exponential carries no attempt counter of its own since
// the Supervisor is the keeper of record for the attempt number.
func (e *Exponential) Reset() {}
