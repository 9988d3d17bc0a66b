package backoff

import (
	"testing"
	"time"
)

func TestLinearIsConstant(t *testing.T) {
	l := NewLinear(500 * time.Millisecond)
	for attempt := 1; attempt <= 5; attempt++ {
		if got := l.Next(attempt); got != 500*time.Millisecond {
			t.Errorf("attempt %d: got %v, want 500ms", attempt, got)
		}
	}
}

func TestLinearDefaultInterval(t *testing.T) {
	l := NewLinear(0)
	if got := l.Next(1); got != DefaultLinearInterval {
		t.Errorf("got %v, want %v", got, DefaultLinearInterval)
	}
}

func TestExponentialNoJitterMatchesFormula(t *testing.T) {
	e := NewExponential(ExponentialConfig{
		Initial:    10 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2,
		Jitter:     0,
	})

	for attempt := 1; attempt <= 6; attempt++ {
		want := 10 * time.Millisecond
		for i := 1; i < attempt; i++ {
			want *= 2
		}
		if want > 10*time.Second {
			want = 10 * time.Second
		}
		if got := e.Next(attempt); got != want {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, want)
		}
	}
}

func TestExponentialClampsToMax(t *testing.T) {
	e := NewExponential(ExponentialConfig{
		Initial:    time.Second,
		Max:        2 * time.Second,
		Multiplier: 10,
		Jitter:     0,
	})

	for attempt := 1; attempt <= 10; attempt++ {
		if got := e.Next(attempt); got > 2*time.Second {
			t.Errorf("attempt %d: got %v, want <= 2s", attempt, got)
		}
	}
}

func TestExponentialNeverNegativeWithLargeJitter(t *testing.T) {
	e := NewExponential(ExponentialConfig{
		Initial:    10 * time.Millisecond,
		Max:        time.Second,
		Multiplier: 1.5,
		Jitter:     2.0,
	})

	for i := 0; i < 100; i++ {
		if got := e.Next(1); got < 0 {
			t.Fatalf("sample %d: got negative delay %v", i, got)
		}
	}
}

func TestExponentialDefaults(t *testing.T) {
	e := NewExponential(ExponentialConfig{})
	if e.cfg.Initial != time.Second {
		t.Errorf("default Initial = %v, want 1s", e.cfg.Initial)
	}
	if e.cfg.Max != 30*time.Second {
		t.Errorf("default Max = %v, want 30s", e.cfg.Max)
	}
	if e.cfg.Multiplier != 1.5 {
		t.Errorf("default Multiplier = %v, want 1.5", e.cfg.Multiplier)
	}
	if e.cfg.Jitter != 0.2 {
		t.Errorf("default Jitter = %v, want 0.2", e.cfg.Jitter)
	}
}
