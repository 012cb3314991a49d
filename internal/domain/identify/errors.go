package identify

import (
	"errors"
	"fmt"
)

// ErrFileTooLarge is the kind behind every ValidationError.
var ErrFileTooLarge = errors.New("file too large")

// ValidationError reports an upload rejected at intake. It never changes
// pipeline state.
type ValidationError struct {
	Size  int64
	Limit int64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: file too large (%d bytes, limit %d)", e.Size, e.Limit)
}

// Unwrap lets errors.Is match ErrFileTooLarge.
func (e *ValidationError) Unwrap() error { return ErrFileTooLarge }
