package guard

import (
	"time"

	"github.com/anoano/portal/flow"
	"github.com/anoano/portal/metrics"
)

// Option configures how guards are set up.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default
// options and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

// guardOptions is the set of available options for RequireAuth and
// RequireAnonymous
type guardOptions struct {
	withSettleDelay time.Duration
	withLoginURL    string
	withLandingURL  string
	withMetrics     *metrics.Metrics
}

func guardDefaults() guardOptions {
	return guardOptions{
		withSettleDelay: DefaultSettleDelay,
		withLoginURL:    flow.DefaultLoginURL,
		withLandingURL:  flow.DefaultLandingURL,
	}
}

func getGuardOpts(opt ...Option) guardOptions {
	opts := guardDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithSettleDelay overrides RequireAuth's settling delay.  Zero disables
// the wait.
func WithSettleDelay(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*guardOptions); ok && d >= 0 {
			o.withSettleDelay = d
		}
	}
}

// WithLoginURL overrides the login entry route RequireAuth redirects to.
func WithLoginURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*guardOptions); ok && u != "" {
			o.withLoginURL = u
		}
	}
}

// WithLandingURL overrides the authenticated landing route RequireAnonymous
// redirects to.
func WithLandingURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*guardOptions); ok && u != "" {
			o.withLandingURL = u
		}
	}
}

// WithMetrics provides optional Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o interface{}) {
		if o, ok := o.(*guardOptions); ok {
			o.withMetrics = m
		}
	}
}
