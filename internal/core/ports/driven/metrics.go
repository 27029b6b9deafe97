package driven

import (
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
)

// Outcome labels recorded by CredentialMetrics
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped" // token still fresh, no provider call
	OutcomeShared  = "shared"  // result taken from a concurrent refresh
	OutcomeReauth  = "reauthorization_required"
	OutcomeFailed  = "failed"
)

// CredentialMetrics records credential lifecycle events.
type CredentialMetrics interface {
	AuthorizationStarted(marketplace domain.Marketplace)
	AuthorizationCompleted(marketplace domain.Marketplace, outcome string)
	RefreshCompleted(marketplace domain.Marketplace, outcome string, duration time.Duration)
	StatesSwept(count int64)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) AuthorizationStarted(domain.Marketplace)                    {}
func (NopMetrics) AuthorizationCompleted(domain.Marketplace, string)          {}
func (NopMetrics) RefreshCompleted(domain.Marketplace, string, time.Duration) {}
func (NopMetrics) StatesSwept(int64)                                          {}
