package testutil

import (
	"errors"
	"testing"

	apperrors "goalwise/internal/errors"
)

// AssertAppError fails the test unless err carries the expected error code
// somewhere in its chain.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if code := apperrors.CodeOf(err); code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, code, appErr.Message)
	}
}

// AssertSameError fails the test unless a and b are indistinguishable to a
// client: same code and same message. Used to check that foreign and
// missing records cannot be told apart.
func AssertSameError(t *testing.T, a, b error) {
	t.Helper()

	if a == nil || b == nil {
		t.Fatalf("expected two errors, got %v and %v", a, b)
	}
	if apperrors.CodeOf(a) != apperrors.CodeOf(b) || a.Error() != b.Error() {
		t.Errorf("errors differ: %s %q vs %s %q", apperrors.CodeOf(a), a, apperrors.CodeOf(b), b)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
