package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrBreedNotFound = errors.New("breed not found")
	ErrEmptyID       = errors.New("breed id must not be empty")
	ErrDuplicateID   = errors.New("duplicate breed id")
)
