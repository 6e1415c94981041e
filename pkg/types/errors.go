package types

import (
	"errors"
	"fmt"
)

var (
	ErrEntropySourceUnavailable = errors.New("entropy source unavailable")
	ErrInvalidBaseEndpoint      = errors.New("invalid base endpoint")
	ErrTokenExchangeRejected    = errors.New("token exchange rejected")
	ErrTokenExchangeUnreachable = errors.New("token endpoint unreachable")
	ErrCorrelationNotFound      = errors.New("correlation not found")
	ErrInvalidState             = errors.New("invalid state")
	ErrProviderNotConfigured    = errors.New("provider not configured")
	ErrUnauthorizedCall         = errors.New("unauthorized call")
)

// TokenExchangeError describes a failed exchange. Kind is either
// ErrTokenExchangeRejected or ErrTokenExchangeUnreachable. Payload holds the
// raw provider response body and is meant for server-side diagnostics only.
type TokenExchangeError struct {
	Kind       error
	StatusCode int
	ErrorCode  string
	Payload    []byte
	Err        error
}

func (e *TokenExchangeError) Error() string {
	switch {
	case e.ErrorCode != "":
		return fmt.Sprintf("%v: %s (status %d)", e.Kind, e.ErrorCode, e.StatusCode)
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: status %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *TokenExchangeError) Is(target error) bool {
	return target == e.Kind
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
