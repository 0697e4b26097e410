package session

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		o(opts)
	}
}

// WithLogger provides an optional logger for the token store.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*tokenStoreOptions); ok {
			o.withLogger = l
		}
	}
}

// WithExpiryBuffer provides an optional expiry safety buffer for
// TokenStore.IsExpired.
func WithExpiryBuffer(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*isExpiredOptions); ok {
			o.withExpiryBuffer = d
		}
	}
}
