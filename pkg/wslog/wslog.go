// Package wslog is the process-wide log sink the Connection Supervisor
// writes through. It never blocks and never panics into a caller's hot
// path: Init can be called any number of times, with the last call
// winning, exactly like the teacher's logger.SetDefault/SetLogger pair.
package wslog

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const prefix = "[OkWs]"

var (
	mu      sync.Mutex
	enabled = true
	adapter func(string)
	// fallback is used when no adapter is configured; it mirrors the
	// teacher's pattern of wrapping slog behind a package-level default.
	fallback = slog.New(slog.NewTextHandler(os.Stdout, nil))
)

// Init configures the log sink. enableLogging gates every subsequent
// call to Logf; adapter, if non-nil, receives the fully formatted
// "[OkWs] <timestamp> <message>" line instead of it going to stdout.
// Safe to call multiple times and concurrently with logging; the last
// call wins.
func Init(enableLogging bool, logAdapter func(string)) {
	mu.Lock()
	defer mu.Unlock()
	enabled = enableLogging
	adapter = logAdapter
}

// Logf formats and emits a log line if logging is enabled. It recovers
// from a panicking adapter so a misbehaving caller-supplied sink can
// never corrupt Supervisor state.
func Logf(format string, args ...any) {
	mu.Lock()
	e, a := enabled, adapter
	mu.Unlock()

	if !e {
		return
	}

	line := fmt.Sprintf("%s %s %s", prefix, time.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))
	emit(a, line)
}

func emit(a func(string), line string) {
	defer func() {
		_ = recover() //nolint:errcheck // logging must never propagate a panic into a hot path
	}()

	if a != nil {
		a(line)
		return
	}

	fallback.Info(line)
}
