package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidFile        = errors.New("invalid file")
	ErrVerificationFailed = errors.New("receipt verification failed")
	ErrAlreadyProcessed   = errors.New("already processed")
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	// ErrStorageInconsistency means a record exists but its stored object
	// does not. Callers see it as not found.
	ErrStorageInconsistency = fmt.Errorf("storage inconsistency: %w", ErrNotFound)
	ErrUsernameTaken        = errors.New("username or email already registered")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrMockPurchaseDisabled = errors.New("mock purchases are disabled")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// MissingFilesError lists the requested ids that are not owned by the caller
// or have no stored object.
type MissingFilesError struct {
	IDs []int64
}

func (e *MissingFilesError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = fmt.Sprint(id)
	}
	return "files not found or not accessible: " + strings.Join(parts, ", ")
}

func (e *MissingFilesError) Unwrap() error {
	return ErrNotFound
}
