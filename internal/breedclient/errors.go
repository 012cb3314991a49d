package breedclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnhealthy is returned when /healthz does not answer 200.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrInvariant is returned when a smoke run violates a result invariant.
	ErrInvariant = errors.New("result invariant violated")
)

// APIError is a non-2xx response decoded from the service error body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}
