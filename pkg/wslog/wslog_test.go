package wslog

import (
	"strings"
	"testing"
)

func TestInitLastCallWins(t *testing.T) {
	defer Init(true, nil)

	var first, second []string
	Init(true, func(line string) { first = append(first, line) })
	Logf("one")

	Init(true, func(line string) { second = append(second, line) })
	Logf("two")

	if len(first) != 1 {
		t.Fatalf("first adapter got %d lines, want 1", len(first))
	}
	if len(second) != 1 {
		t.Fatalf("second adapter got %d lines, want 1", len(second))
	}
	if !strings.Contains(second[0], "two") {
		t.Errorf("second adapter line = %q, want to contain %q", second[0], "two")
	}
}

func TestInitDisabledSuppressesLogging(t *testing.T) {
	defer Init(true, nil)

	var lines []string
	Init(false, func(line string) { lines = append(lines, line) })
	Logf("should not appear")

	if len(lines) != 0 {
		t.Fatalf("got %d lines while disabled, want 0", len(lines))
	}
}

func TestLogfFormat(t *testing.T) {
	defer Init(true, nil)

	var got string
	Init(true, func(line string) { got = line })
	Logf("hello %s", "world")

	if !strings.HasPrefix(got, prefix+" ") {
		t.Errorf("line %q does not start with %q", got, prefix)
	}
	if !strings.HasSuffix(got, "hello world") {
		t.Errorf("line %q does not end with the formatted message", got)
	}
}

func TestLogfSurvivesPanickingAdapter(t *testing.T) {
	defer Init(true, nil)

	Init(true, func(string) { panic("boom") })

	// Must not panic out of Logf.
	Logf("still alive")
}
