package flow

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/anoano/portal/metrics"
)

// Option configures how flow is set up.
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

// orchestratorOptions is the set of available options for New
type orchestratorOptions struct {
	withLogger     hclog.Logger
	withMetrics    *metrics.Metrics
	withLandingURL string
	withLoginURL   string
	withGraceDelay time.Duration
}

func orchestratorDefaults() orchestratorOptions {
	return orchestratorOptions{
		withLogger:     hclog.NewNullLogger(),
		withLandingURL: DefaultLandingURL,
		withLoginURL:   DefaultLoginURL,
		withGraceDelay: DefaultGraceDelay,
	}
}

func getOrchestratorOpts(opt ...Option) orchestratorOptions {
	opts := orchestratorDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithMetrics provides optional Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withMetrics = m
		}
	}
}

// WithLandingURL overrides the authenticated landing route the callback
// redirects to after a successful login.
func WithLandingURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok && u != "" {
			o.withLandingURL = u
		}
	}
}

// WithLoginURL overrides the login entry route.
func WithLoginURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok && u != "" {
			o.withLoginURL = u
		}
	}
}

// WithGraceDelay overrides the settling delay applied after the post-
// callback session re-probe.  Zero disables the wait.
func WithGraceDelay(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok && d >= 0 {
			o.withGraceDelay = d
		}
	}
}
