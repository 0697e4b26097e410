package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/anoano/portal/authapi"
	"github.com/anoano/portal/session"
)

// Disposition classifies the outcome of one callback invocation.
type Disposition string

const (
	// DispositionLoggedIn means the code exchange succeeded; redirect to
	// the authenticated landing route.
	DispositionLoggedIn Disposition = "logged_in"

	// DispositionLoggedOut means a parameterless callback completed an
	// in-flight logout; redirect to login after wiping local state.
	DispositionLoggedOut Disposition = "logged_out"

	// DispositionDuplicate means this authorization code was already
	// dispatched; the invocation is a no-op.
	DispositionDuplicate Disposition = "duplicate"

	// DispositionError is terminal; the outcome carries the user-visible
	// message and the page offers return-to-login.
	DispositionError Disposition = "error"
)

// Outcome is what one callback invocation decided.
type Outcome struct {
	Disposition Disposition

	// Message is the user-visible text for DispositionError, or the
	// backend's status message otherwise.
	Message string

	// RedirectTo is the route to navigate to, when the disposition calls
	// for navigation.
	RedirectTo string

	// WipeCookies tells the HTTP layer to expire every request cookie
	// (logout completion only).
	WipeCookies bool

	// User is the authenticated profile on DispositionLoggedIn, when the
	// backend returned one.
	User *authapi.User
}

// HandleCallback interprets one IdP redirect.  The decision tree, in order:
// an OAuth error parameter is terminal; a parameterless callback during an
// in-flight logout is a logout completion; a parameterless callback outside
// a logout is malformed; a code is exchanged at most once.
//
// The query values passed in are a snapshot of the redirect; the HTTP layer
// strips them from the browser's URL before this returns control, so a
// reload re-enters as a parameterless callback rather than replaying the
// code.
func (o *Orchestrator) HandleCallback(ctx context.Context, query url.Values) *Outcome {
	outcome := o.handleCallback(ctx, query)
	o.metrics.CallbackOutcome(string(outcome.Disposition))
	return outcome
}

func (o *Orchestrator) handleCallback(ctx context.Context, query url.Values) *Outcome {
	if errCode := query.Get("error"); errCode != "" {
		o.logger.Warn("provider reported an authorization error", "error", errCode)
		return &Outcome{
			Disposition: DispositionError,
			Message:     oauthErrorMessage(errCode, query.Get("error_description")),
		}
	}

	code := query.Get("code")
	if code == "" {
		if o.phases.Current(ctx) == session.PhaseLoggingOut {
			return o.completeLogout(ctx)
		}
		return &Outcome{
			Disposition: DispositionError,
			Message:     "No authorization code was received from the identity provider.",
		}
	}

	if !o.markProcessed(code) {
		o.logger.Debug("duplicate callback for already-processed code")
		return &Outcome{Disposition: DispositionDuplicate}
	}
	return o.completeLogin(ctx, code, query.Get("state"))
}

func (o *Orchestrator) completeLogin(ctx context.Context, code, state string) *Outcome {
	result, err := o.client.HandleCallback(ctx, code, state)
	if err != nil {
		msg := "Could not complete sign-in."
		if errors.Is(err, authapi.ErrUnauthenticated) || errors.Is(err, authapi.ErrAuthenticationFailed) {
			msg = "Authentication failed. Please try signing in again."
		}
		o.logger.Error("code exchange failed", "error", err)
		return &Outcome{Disposition: DispositionError, Message: msg}
	}

	// Cookie-session backends populate their state asynchronously relative
	// to the callback response; one re-probe plus a short settling delay
	// lets it land before the guards run.
	if !result.TokenPersisted {
		if _, err := o.client.CheckAuth(ctx); err != nil {
			o.logger.Debug("post-callback probe failed", "error", err)
		}
		o.wait(ctx)
	}

	if err := o.phases.Set(ctx, session.PhaseIdle); err != nil {
		o.logger.Error("unable to clear login phase", "error", err)
	}
	o.logger.Info("login completed")
	return &Outcome{
		Disposition: DispositionLoggedIn,
		Message:     result.Message,
		RedirectTo:  o.landingURL,
		User:        result.User,
	}
}

// completeLogout runs the logout completion sequence: clear the phase,
// clear the cached token, clear the whole session store, best-effort tell
// the backend (the user is already logged out at the IdP, so a failure here
// must not block completion), then arm the just-logged-out marker and send
// the browser to login with its cookies wiped.
func (o *Orchestrator) completeLogout(ctx context.Context) *Outcome {
	if err := o.phases.Set(ctx, session.PhaseIdle); err != nil {
		o.logger.Error("unable to clear logout phase", "error", err)
	}
	if err := o.tokens.Clear(ctx); err != nil {
		o.logger.Error("unable to clear token on logout", "error", err)
	}
	if err := o.store.Clear(ctx); err != nil {
		o.logger.Error("unable to clear session store on logout", "error", err)
	}
	if err := o.client.Logout(ctx); err != nil {
		o.logger.Warn("backend logout failed, continuing", "error", err)
	}
	if err := o.phases.Set(ctx, session.PhaseJustLoggedOut); err != nil {
		o.logger.Error("unable to arm just-logged-out marker", "error", err)
	}
	o.metrics.LogoutCompleted()
	o.logger.Info("logout completed")
	return &Outcome{
		Disposition: DispositionLoggedOut,
		RedirectTo:  o.loginURL,
		WipeCookies: true,
	}
}

func (o *Orchestrator) wait(ctx context.Context) {
	if o.graceDelay <= 0 {
		return
	}
	timer := time.NewTimer(o.graceDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// oauthErrorMessage maps the IdP's error codes to user-visible text.  The
// default carries the provider's own description when one was sent.
func oauthErrorMessage(code, description string) string {
	switch code {
	case "CONSENT_ERROR", "consent_required", "consent_error":
		return "There was a problem processing the consent step. This is an identity provider error; please try again in a few seconds."
	case "access_denied":
		return "Access was denied. You cancelled the sign-in."
	case "invalid_request":
		return "The sign-in request was invalid. Please try again."
	case "server_error":
		return "The identity provider reported a server error. Please try again later."
	}
	if description != "" {
		return description
	}
	return fmt.Sprintf("Sign-in did not succeed (%s).", code)
}
