package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestKindOfFindsSentinelThroughWraps(t *testing.T) {
	sentinel := New(KindPolicyViolation, "policy violation")
	err := Wrapf(Wrap(sentinel, "run"), "data source %q", "default")

	if !errors.Is(err, sentinel) {
		t.Fatalf("errors.Is() = false for %v", err)
	}
	if got := KindOf(err); got != KindPolicyViolation {
		t.Fatalf("KindOf() = %q, want %q", got, KindPolicyViolation)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %q", got)
	}
}

func TestWrapNilStaysNil(t *testing.T) {
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil || WithStack(nil) != nil {
		t.Fatalf("wrapping nil must return nil")
	}
}

func TestErrorChainStringsWalksJoinedErrors(t *testing.T) {
	a := errors.New("a")
	b := fmt.Errorf("b: %w", errors.New("c"))
	chain := ErrorChainStrings(Wrap(errors.Join(a, b), "outer"))

	want := []string{"outer: a\nb: c", "a\nb: c", "a", "b: c", "c"}
	if len(chain) != len(want) {
		t.Fatalf("chain = %q", chain)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("chain[%d] = %q, want %q", i, chain[i], want[i])
		}
	}
}

func TestLoggableIncludesKindAndStack(t *testing.T) {
	err := WithStack(New(KindHook, "hook failed"))

	value := Loggable(err).LogValue()
	if value.Kind() != slog.KindGroup {
		t.Fatalf("LogValue kind = %v", value.Kind())
	}

	keys := map[string]bool{}
	for _, attr := range value.Group() {
		keys[attr.Key] = true
	}
	for _, key := range []string{"message", "chain", "kind", "stack"} {
		if !keys[key] {
			t.Fatalf("LogValue missing %q: %v", key, value)
		}
	}
}
