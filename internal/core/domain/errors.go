package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates operator authentication failed or is missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates an operator token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates an operator token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrConfiguration indicates provider settings (client id, secret,
	// redirect uri, endpoints) are missing or invalid
	ErrConfiguration = errors.New("provider configuration error")

	// ErrInvalidOrExpiredState indicates the authorization state is unknown,
	// expired or already consumed
	ErrInvalidOrExpiredState = errors.New("invalid or expired authorization state")

	// ErrStateNotFound indicates no state record exists (never issued or already consumed)
	ErrStateNotFound = fmt.Errorf("%w: state not found", ErrInvalidOrExpiredState)

	// ErrStateExpired indicates the state record exists but its TTL elapsed
	ErrStateExpired = fmt.Errorf("%w: state expired", ErrInvalidOrExpiredState)

	// ErrExchangeRejected indicates the provider refused the authorization code
	ErrExchangeRejected = errors.New("authorization code exchange rejected")

	// ErrReauthorizationRequired indicates the refresh token is missing,
	// revoked or expired and the user must authorize again
	ErrReauthorizationRequired = errors.New("reauthorization required")

	// ErrTransientProvider indicates a network failure, timeout, 429 or 5xx
	// from the provider. Callers may retry.
	ErrTransientProvider = errors.New("transient provider error")

	// ErrRefreshInProgress indicates another instance holds the refresh lease
	ErrRefreshInProgress = fmt.Errorf("%w: refresh in progress elsewhere", ErrTransientProvider)

	// ErrCredentialChanged indicates the stored credential was rewritten
	// or deactivated while a refresh was in flight, so the refresh result
	// was not saved
	ErrCredentialChanged = fmt.Errorf("%w: credential changed during refresh", ErrTransientProvider)

	// ErrStoreUnavailable indicates the credential store or state ledger
	// could not be reached
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ProviderErrorKind classifies a failed token endpoint call.
type ProviderErrorKind string

const (
	ProviderErrorRejected      ProviderErrorKind = "rejected"
	ProviderErrorReauth        ProviderErrorKind = "reauthorization_required"
	ProviderErrorTransient     ProviderErrorKind = "transient"
	ProviderErrorConfiguration ProviderErrorKind = "configuration"
)

// ProviderError describes a token endpoint failure. Body holds the raw
// provider response for diagnostics; it must not be logged at info level.
type ProviderError struct {
	Kind        ProviderErrorKind
	Marketplace Marketplace
	StatusCode  int
	Code        string
	Description string
	Body        string
	Err         error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Marketplace, e.sentinel())
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match both the kind sentinel and the cause.
func (e *ProviderError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.sentinel(), e.Err}
	}
	return []error{e.sentinel()}
}

func (e *ProviderError) sentinel() error {
	switch e.Kind {
	case ProviderErrorRejected:
		return ErrExchangeRejected
	case ProviderErrorReauth:
		return ErrReauthorizationRequired
	case ProviderErrorConfiguration:
		return ErrConfiguration
	default:
		return ErrTransientProvider
	}
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientProvider)
}
