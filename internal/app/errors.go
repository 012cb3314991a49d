package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrSessionNotFound = errors.New("session not found")
	ErrPreviewNotFound = errors.New("preview not found")
	ErrNoResults       = errors.New("no identification results")
)
