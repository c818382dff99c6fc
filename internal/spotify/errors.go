package spotify

import (
	"fmt"
	"time"
)

// FailureKind tags a failed call with the class of failure the retry machine
// branches on.
type FailureKind int

const (
	// FailureRateLimited is the service's transient backpressure signal.
	FailureRateLimited FailureKind = iota
	// FailureAuthExpired means the access token was rejected.
	FailureAuthExpired
	// FailureUnrecoverable covers every other service error, and retry
	// budget exhaustion.
	FailureUnrecoverable
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	case FailureAuthExpired:
		return "auth_expired"
	default:
		return "unrecoverable"
	}
}

// CallError is the tagged failure returned by the call wrapper.
type CallError struct {
	Kind       FailureKind
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *CallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("spotify: %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("spotify: %s: %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
