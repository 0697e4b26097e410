// Package guard provides the two complementary route guards gating the
// portal's routes on the orchestrator's session check: RequireAuth for
// protected routes and RequireAnonymous for the login entry.  Both are
// standard middleware, composable with chi.
package guard

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/anoano/portal/flow"
)

// DefaultSettleDelay is how long RequireAuth waits before checking, so a
// token written by an immediately preceding callback has landed in the
// session store.
const DefaultSettleDelay = 300 * time.Millisecond

// Checker is the slice of the orchestrator the guards need.
type Checker interface {
	CheckSession(ctx context.Context) *flow.Session
}

// RequireAuth serves its children only for an authenticated session.  The
// check runs after a short settling delay; a negative result redirects to
// the login entry with the originating URL preserved in the from query
// parameter, and the children are never reached, so no protected content
// flashes.
// Supported options: WithSettleDelay, WithLoginURL, WithMetrics
func RequireAuth(checker Checker, opt ...Option) func(http.Handler) http.Handler {
	opts := getGuardOpts(opt...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if !settle(ctx, opts.withSettleDelay) {
				return
			}
			if !checker.CheckSession(ctx).Authenticated() {
				opts.withMetrics.GuardDenial("require_auth")
				http.Redirect(w, req, loginRedirect(opts.withLoginURL, req), http.StatusFound)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// RequireAnonymous serves its children only for a session that is not
// authenticated.  It checks immediately, with no settling delay: an
// already-authenticated user must be moved to the landing route before the
// login page can flash.
// Supported options: WithLandingURL, WithMetrics
func RequireAnonymous(checker Checker, opt ...Option) func(http.Handler) http.Handler {
	opts := getGuardOpts(opt...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if checker.CheckSession(req.Context()).Authenticated() {
				opts.withMetrics.GuardDenial("require_anonymous")
				http.Redirect(w, req, opts.withLandingURL, http.StatusFound)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// settle waits the delay, reporting false when the request was abandoned
// first.
func settle(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// loginRedirect preserves the originating URL so post-login navigation can
// return there.
func loginRedirect(loginURL string, req *http.Request) string {
	from := req.URL.RequestURI()
	if from == "" || from == loginURL {
		return loginURL
	}
	return loginURL + "?from=" + url.QueryEscape(from)
}
