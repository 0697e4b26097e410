package authapi

import (
	"net/http"

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

// clientOptions is the set of available options for New
type clientOptions struct {
	withLogger     hclog.Logger
	withHTTPClient *http.Client
}

func clientDefaults() clientOptions {
	return clientOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withLogger = l
		}
	}
}

// WithHTTPClient provides an optional http client, replacing the default
// cleanhttp-pooled one.  The client's transport is still wrapped with the
// token-propagating Transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// loginURLOptions is the set of available options for LoginURL
type loginURLOptions struct {
	withRedirectURI string
	withState       string
	withPrompt      string
	withPAR         bool
}

func loginURLDefaults() loginURLOptions {
	return loginURLOptions{}
}

func getLoginURLOpts(opt ...Option) loginURLOptions {
	opts := loginURLDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithRedirectURI overrides the configured redirect URI for one request.
func WithRedirectURI(uri string) Option {
	return func(o interface{}) {
		if o, ok := o.(*loginURLOptions); ok {
			o.withRedirectURI = uri
		}
	}
}

// WithState provides an explicit OAuth state parameter.  When absent the
// backend generates one.
func WithState(state string) Option {
	return func(o interface{}) {
		if o, ok := o.(*loginURLOptions); ok {
			o.withState = state
		}
	}
}

// WithPrompt provides an OIDC prompt value (e.g. "login" to force
// re-authentication at the IdP, bypassing IdP-side single sign-on).
func WithPrompt(prompt string) Option {
	return func(o interface{}) {
		if o, ok := o.(*loginURLOptions); ok {
			o.withPrompt = prompt
		}
	}
}

// WithPAR asks the backend to use a Pushed Authorization Request when
// constructing the authorization URL.
func WithPAR() Option {
	return func(o interface{}) {
		if o, ok := o.(*loginURLOptions); ok {
			o.withPAR = true
		}
	}
}
