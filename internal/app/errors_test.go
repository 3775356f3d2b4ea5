package app

import (
	"errors"
	"testing"
)

func TestOperationErrorMessage(t *testing.T) {
	err := NewOperationError("save", "/tmp/doc.md", errors.New("disk full"))
	want := "save /tmp/doc.md: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := NewOperationError("open", "", errors.New("denied"))
	if bare.Error() != "open: denied" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestOperationErrorUnwrap(t *testing.T) {
	err := NewOperationError("save", "Untitled", ErrNoFilePath)
	if !errors.Is(err, ErrNoFilePath) {
		t.Error("wrapped sentinel not matched by errors.Is")
	}
	if errors.Is(err, ErrNoActiveTab) {
		t.Error("matched an unrelated sentinel")
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "context") != nil {
		t.Error("WrapError(nil) != nil")
	}
	wrapped := WrapError(ErrInitialization, "loading %s", "config")
	if !errors.Is(wrapped, ErrInitialization) {
		t.Error("wrapped error lost its sentinel")
	}
	if wrapped.Error() != "loading config: initialization failed" {
		t.Errorf("message = %q", wrapped.Error())
	}
}
