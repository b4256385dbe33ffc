package vm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindCodes(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		name string
		code int
	}{
		{ErrSyntax, "E_SYNTAX", 1},
		{Err3D, "E_3D", 2},
		{ErrStreamRead, "E_STREAM_R", 3},
		{ErrStreamWrite, "E_STREAM_W", 4},
		{ErrRuntime, "E_RUNTIME", 5},
		{ErrUnknown, "E_UNKNOWN", -1},
		{ErrorKind(42), "E_UNKNOWN", -1},
	}
	for _, tc := range tests {
		if tc.kind.Name() != tc.name {
			t.Errorf("Name(%d) = %q, want %q", int(tc.kind), tc.kind.Name(), tc.name)
		}
		if tc.kind.Code() != tc.code {
			t.Errorf("Code(%d) = %d, want %d", int(tc.kind), tc.kind.Code(), tc.code)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := newErrorAt(ErrRuntime, "boom", 2, 3)
	if got := err.Error(); got != "E_RUNTIME[5]: boom at (2,3)" {
		t.Errorf("Error() = %q", got)
	}
	if got := newError(ErrSyntax, "bad").Error(); got != "E_SYNTAX[1]: bad" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("disk on fire")
	err := fmt.Errorf("running: %w", newStreamError(ErrStreamWrite, "writing output", cause))

	if !errors.Is(err, ErrStreamWrite) {
		t.Error("errors.Is should match the kind through wrapping")
	}
	if errors.Is(err, ErrStreamRead) {
		t.Error("errors.Is matched the wrong kind")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	if KindOf(err) != ErrStreamWrite {
		t.Errorf("KindOf = %v, want ErrStreamWrite", KindOf(err))
	}
	if !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("message %q lost the cause", err.Error())
	}
}

func TestKindOfForeignError(t *testing.T) {
	if KindOf(errors.New("x")) != ErrUnknown {
		t.Error("foreign error should be ErrUnknown")
	}
	if KindOf(nil) != ErrUnknown {
		t.Error("nil should be ErrUnknown")
	}
}
