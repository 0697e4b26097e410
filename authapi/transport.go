package authapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/anoano/portal/session"
)

// authEndpointPaths are the endpoints that never require a token and may be
// in the middle of establishing one: an expired cached token is not cleared
// on their behalf.
var authEndpointPaths = []string{
	PathLoginURL,
	PathCallback,
	PathCheck,
	PathHealth,
	PathGetLogout,
}

func isAuthEndpoint(path string) bool {
	for _, p := range authEndpointPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

// Transport propagates the cached token on outgoing requests and captures
// refreshed tokens from responses.  It implements the rules the portal
// applies to every backend call:
//
//   - a request to a non-auth endpoint with an expired cached token clears
//     the token first (the 401 the backend would answer with is then
//     handled uniformly);
//   - any cached token is attached as Authorization: Bearer;
//   - a token in a response's Authorization or X-Auth-Token header is
//     persisted opportunistically;
//   - a 401 clears the cached token (the redirect decision belongs to the
//     guards, not the transport).
type Transport struct {
	// Base is the underlying round tripper.  http.DefaultTransport when
	// nil.
	Base http.RoundTripper

	// Tokens is the session token store consulted and updated per request.
	Tokens *session.TokenStore

	// Logger is optional.
	Logger hclog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	logger := t.logger()

	if !isAuthEndpoint(req.URL.Path) && t.Tokens.IsExpired(ctx) {
		if err := t.Tokens.Clear(ctx); err != nil {
			logger.Error("unable to clear expired token", "error", err)
		}
	}

	if tok := t.Tokens.TokenString(ctx); tok != "" {
		req = req.Clone(ctx)
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if tok := responseToken(resp.Header, nil); tok != "" {
		if err := t.Tokens.Save(ctx, tok); err != nil {
			logger.Error("unable to persist response token", "error", err)
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if err := t.clear(ctx); err != nil {
			logger.Error("unable to clear token after 401", "error", err)
		}
	}

	return resp, nil
}

func (t *Transport) clear(ctx context.Context) error {
	return t.Tokens.Clear(ctx)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() hclog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return hclog.NewNullLogger()
}
