package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ParseFailure, "cannot parse src/lib.rs", stderrors.New("unexpected token"))

	msg := err.Error()
	if !strings.Contains(msg, "PARSE_FAILURE") {
		t.Errorf("expected code in message, got %q", msg)
	}
	if !strings.Contains(msg, "unexpected token") {
		t.Errorf("expected cause in message, got %q", msg)
	}
}

func TestErrorWithoutCause(t *testing.T) {
	err := Newf(StaleProposal, "node kind changed at %d..%d", 10, 20)
	if strings.Contains(err.Error(), "%!") {
		t.Errorf("bad formatting: %q", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("expected nil cause")
	}
}

func TestUnwrapChain(t *testing.T) {
	root := stderrors.New("disk full")
	err := New(ApplyIO, "write failed", root)
	wrapped := fmt.Errorf("applying correction: %w", err)

	if !stderrors.Is(wrapped, root) {
		t.Error("expected root cause to be reachable through the chain")
	}
	if CodeOf(wrapped) != ApplyIO {
		t.Errorf("expected ApplyIO, got %s", CodeOf(wrapped))
	}
	if !Is(wrapped, ApplyIO) {
		t.Error("Is should match the code through wrapping")
	}
	if Is(wrapped, RollbackFailure) {
		t.Error("Is should not match a different code")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if CodeOf(stderrors.New("plain")) != InternalError {
		t.Error("plain errors should report InternalError")
	}
}

func TestRecoverable(t *testing.T) {
	recoverable := []ErrorCode{
		MalformedDiagnostic, ParseFailure, StrategyGeneration,
		StaleProposal, VerificationFailed, ApplyIO,
	}
	for _, code := range recoverable {
		if !Recoverable(code) {
			t.Errorf("%s should be recoverable", code)
		}
	}
	if Recoverable(RollbackFailure) {
		t.Error("RollbackFailure must be fatal")
	}
}
