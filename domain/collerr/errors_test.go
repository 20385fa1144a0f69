package collerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap_IsMatchesKind(t *testing.T) {
	err := Wrap(NotFound, "collection.open", "collection missing", errors.New("stat: no such file"))

	if !Is(err, NotFound) {
		t.Error("expected Is(err, NotFound) to be true")
	}
	if Is(err, AlreadyExists) {
		t.Error("expected Is(err, AlreadyExists) to be false")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is(err, ErrNotFound) to be true")
	}
}

func TestWrap_PropagatesThroughFmtErrorf(t *testing.T) {
	inner := New(InvalidOperation, "collection.import", "already populated")
	outer := fmt.Errorf("import failed: %w", inner)

	if !Is(outer, InvalidOperation) {
		t.Error("expected wrapped error to still report InvalidOperation")
	}
}

func TestCoreError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IOError, "rowstore.import", "write failed", cause)

	var ce *CoreError
	if !errors.As(err, &ce) {
		t.Fatal("expected errors.As to find *CoreError")
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the original cause")
	}
}

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		NotFound:          "not_found",
		AlreadyExists:     "already_exists",
		CorruptState:      "corrupt_state",
		InvalidOperation:  "invalid_operation",
		IncompatibleModel: "incompatible_model",
		IOError:           "io_error",
		BackendError:      "backend_error",
		Internal:          "internal",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
