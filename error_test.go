package dsync

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_UnwrapAndCode(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("outer: %w", NewError(StoreCommunicationFailure, cause, "sem"))

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through errors.Is")
	}
	if CodeOf(err) != StoreCommunicationFailure {
		t.Fatalf("expected store communication failure, got %v", CodeOf(err))
	}
	if !strings.Contains(err.Error(), "store communication failure") || !strings.Contains(err.Error(), "sem") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if CodeOf(cause) != Unknown {
		t.Fatalf("plain errors carry no code")
	}
	if NewError(Cancelled, nil, nil) != nil {
		t.Fatalf("nil cause must give nil error")
	}
}

func TestValidatePermits(t *testing.T) {
	for _, p := range []int64{0, -1, -100} {
		err := ValidatePermits(p)
		if CodeOf(err) != InvalidPermits || !errors.Is(err, ErrInvalidPermits) {
			t.Fatalf("permits %d: expected invalid permits, got %v", p, err)
		}
	}
	if err := ValidatePermits(1); err != nil {
		t.Fatalf("1 permit must be valid, got %v", err)
	}
}

func TestErrorCode_String(t *testing.T) {
	if Unsupported.String() != "unsupported" || ErrorCode(42).String() != "unknown" {
		t.Fatalf("unexpected error code strings")
	}
}
