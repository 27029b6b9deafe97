package main

import (
	"errors"

	"github.com/custodia-labs/marketlink/internal/core/domain"
)

// Exit codes
const (
	exitFailure       = 1
	exitConfiguration = 2
	exitInvalid       = 3 // bad input, unknown or expired state, rejected code
	exitReauthorize   = 4
	exitRetryable     = 5 // transient provider failure or store unavailable
)

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrConfiguration):
		return exitConfiguration
	case errors.Is(err, domain.ErrReauthorizationRequired):
		return exitReauthorize
	case errors.Is(err, domain.ErrTransientProvider),
		errors.Is(err, domain.ErrStoreUnavailable):
		return exitRetryable
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidOrExpiredState),
		errors.Is(err, domain.ErrExchangeRejected):
		return exitInvalid
	default:
		return exitFailure
	}
}
