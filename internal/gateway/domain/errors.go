package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProviderNotFound    = errors.New("provider_not_found")
	ErrInvalidConfig       = errors.New("invalid_provider_config")
	ErrInvalidRecipient    = errors.New("invalid_recipient")
	ErrProviderUnavailable = errors.New("provider_unavailable")
	ErrInvalidCredential   = errors.New("invalid_credential")
	ErrRateLimited         = errors.New("rate_limited")
	ErrProviderTimeout     = errors.New("provider_timeout")
	ErrRejected            = errors.New("provider_rejected")
)

// SendError is a classified provider failure. Kind is one of the sentinels
// above; Cause is the transport error, if any.
type SendError struct {
	Provider   string
	Kind       error
	StatusCode int
	Cause      error
}

func (e *SendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s send: %s: %v", e.Provider, e.Kind, e.Cause)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s send: %s (status %d)", e.Provider, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s send: %s", e.Provider, e.Kind)
}

func (e *SendError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// FailureReason maps any send error onto a stable snake_case reason.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return ErrRateLimited.Error()
	case errors.Is(err, ErrInvalidCredential):
		return ErrInvalidCredential.Error()
	case errors.Is(err, ErrProviderTimeout):
		return ErrProviderTimeout.Error()
	case errors.Is(err, ErrInvalidRecipient):
		return ErrInvalidRecipient.Error()
	case errors.Is(err, ErrRejected):
		return ErrRejected.Error()
	default:
		return ErrProviderUnavailable.Error()
	}
}
