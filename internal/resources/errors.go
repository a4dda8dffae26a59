package resources

import "errors"

var (
	// ErrNotFound means the record does not exist (or vanished mid-update).
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden means the principal does not own the record.
	ErrForbidden = errors.New("resource forbidden")
	// ErrConflict means a uniqueness rule rejected the change.
	ErrConflict = errors.New("resource conflict")
)
