// Package metrics exposes the portal's Prometheus instrumentation.  One
// Metrics value is shared by the flow orchestrator, the route guards, and
// the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// Metrics holds the portal's counters.  Construct with New; a nil *Metrics
// is safe to pass around, every record method tolerates it.
type Metrics struct {
	loginsStarted    prometheus.Counter
	logoutsCompleted prometheus.Counter
	callbackOutcomes *prometheus.CounterVec
	guardDenials     *prometheus.CounterVec
}

// New registers the portal counters on the given registerer.  Pass
// prometheus.DefaultRegisterer outside of tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		loginsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_started_total",
			Help:      "Login flows started (authorization URL issued).",
		}),
		logoutsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_completed_total",
			Help:      "Logout completions observed on the callback route.",
		}),
		callbackOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_outcomes_total",
			Help:      "Callback dispositions by outcome.",
		}, []string{"outcome"}),
		guardDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_denials_total",
			Help:      "Requests redirected away by a route guard.",
		}, []string{"guard"}),
	}
}

// LoginStarted counts an issued authorization redirect.
func (m *Metrics) LoginStarted() {
	if m == nil {
		return
	}
	m.loginsStarted.Inc()
}

// LogoutCompleted counts a finished logout.
func (m *Metrics) LogoutCompleted() {
	if m == nil {
		return
	}
	m.logoutsCompleted.Inc()
}

// CallbackOutcome counts one callback disposition, e.g. "logged_in" or
// "error".
func (m *Metrics) CallbackOutcome(outcome string) {
	if m == nil {
		return
	}
	m.callbackOutcomes.WithLabelValues(outcome).Inc()
}

// GuardDenial counts a guard redirect; guard is "require_auth" or
// "require_anonymous".
func (m *Metrics) GuardDenial(guard string) {
	if m == nil {
		return
	}
	m.guardDenials.WithLabelValues(guard).Inc()
}
