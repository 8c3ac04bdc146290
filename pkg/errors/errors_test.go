package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestAsUnwrapsWrappedError(t *testing.T) {
	t.Parallel()

	base := New(CodeValidation, "bad input")
	wrapped := fmt.Errorf("outer: %w", base)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeValidation {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
}

func TestWrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("socket closed")
	err := Wrap(CodeTransport, cause, "request failed")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected cause to survive wrapping")
	}
	if err.Code() != CodeTransport {
		t.Fatalf("unexpected code: %s", err.Code())
	}
}

func TestUserMessagePriority(t *testing.T) {
	t.Parallel()

	if got := UserMessage(New(CodeBackend, "variant out of stock")); got != "variant out of stock" {
		t.Fatalf("expected typed message, got %q", got)
	}
	if got := UserMessage(New(CodeSessionExpired, "")); got != "session expired, please sign in again" {
		t.Fatalf("expected public fallback, got %q", got)
	}
	if got := UserMessage(stdErrors.New("plain")); got != "plain" {
		t.Fatalf("expected raw message, got %q", got)
	}
}

func TestDumpBuildsChain(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeBackend, stdErrors.New("inner"), "outer")
	d := Dump(err)
	if d.Code != CodeBackend {
		t.Fatalf("unexpected code: %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(d.Chain))
	}
}
