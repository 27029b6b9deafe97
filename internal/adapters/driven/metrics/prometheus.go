// Package metrics records credential lifecycle events as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CredentialMetrics = (*Prometheus)(nil)

const namespace = "marketlink"

// Prometheus implements driven.CredentialMetrics on its own registry so
// tests and multiple servers in one process don't collide.
type Prometheus struct {
	registry *prometheus.Registry

	authStarted   *prometheus.CounterVec
	authCompleted *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	refreshTime   *prometheus.HistogramVec
	statesSwept   prometheus.Counter
}

// NewPrometheus creates the collectors and registers them together with
// the Go runtime and process collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		authStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorizations_started_total",
			Help:      "Authorization flows started, by marketplace.",
		}, []string{"marketplace"}),
		authCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorizations_completed_total",
			Help:      "Authorization code exchanges, by marketplace and outcome.",
		}, []string{"marketplace", "outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts, by marketplace and outcome.",
		}, []string{"marketplace", "outcome"}),
		refreshTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "token_refresh_duration_seconds",
			Help:      "Time spent refreshing a token, including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"marketplace"}),
		statesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_states_swept_total",
			Help:      "Expired authorization states removed by maintenance.",
		}),
	}

	p.registry.MustRegister(
		p.authStarted,
		p.authCompleted,
		p.refreshes,
		p.refreshTime,
		p.statesSwept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) AuthorizationStarted(marketplace domain.Marketplace) {
	p.authStarted.WithLabelValues(string(marketplace)).Inc()
}

func (p *Prometheus) AuthorizationCompleted(marketplace domain.Marketplace, outcome string) {
	p.authCompleted.WithLabelValues(string(marketplace), outcome).Inc()
}

// RefreshCompleted counts every outcome but only observes the duration of
// calls that reached the provider.
func (p *Prometheus) RefreshCompleted(marketplace domain.Marketplace, outcome string, duration time.Duration) {
	p.refreshes.WithLabelValues(string(marketplace), outcome).Inc()
	if outcome == driven.OutcomeSkipped || outcome == driven.OutcomeShared {
		return
	}
	p.refreshTime.WithLabelValues(string(marketplace)).Observe(duration.Seconds())
}

func (p *Prometheus) StatesSwept(count int64) {
	if count > 0 {
		p.statesSwept.Add(float64(count))
	}
}
