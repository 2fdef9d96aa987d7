// Package errors defines the sentinel errors shared across the search
// engine. Callers classify failures with errors.Is and wrap with fmt.Errorf
// and %w everywhere else.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrDeserialization is returned when a serialized index snapshot is
	// malformed: bad magic, unsupported version, checksum mismatch, or
	// invalid payload. The usual fallback is a full rebuild from the
	// document store.
	ErrDeserialization = errors.New("index snapshot deserialization failed")

	// ErrDocumentNotFound is returned when an operation references a
	// document id that the index or document store does not hold.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidInput is returned for malformed caller input, such as a
	// config with an empty index field list.
	ErrInvalidInput = errors.New("invalid input")
)

// Deserializationf wraps ErrDeserialization with detail about what part of
// the snapshot was rejected.
func Deserializationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDeserialization, fmt.Sprintf(format, args...))
}
