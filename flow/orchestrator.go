package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/anoano/portal/authapi"
	"github.com/anoano/portal/metrics"
	"github.com/anoano/portal/sdk/id"
	"github.com/anoano/portal/session"
)

const (
	// DefaultLandingURL is the authenticated landing route.
	DefaultLandingURL = "/student"

	// DefaultLoginURL is the login entry route.
	DefaultLoginURL = "/login"

	// DefaultGraceDelay is the settling delay after the post-callback
	// session re-probe, giving cookie-session backends time to populate
	// their state.
	DefaultGraceDelay = 300 * time.Millisecond
)

// Orchestrator drives the auth lifecycle of one browser session.  It is
// safe for concurrent use.
type Orchestrator struct {
	client *authapi.Client
	store  session.Store
	tokens *session.TokenStore
	phases *session.PhaseStore

	logger     hclog.Logger
	metrics    *metrics.Metrics
	landingURL string
	loginURL   string
	graceDelay time.Duration

	// processed is the idempotency set of authorization codes already
	// dispatched for exchange.  Consulted synchronously before any network
	// call, so a duplicate callback never re-exchanges a code.
	mu        sync.Mutex
	processed map[string]struct{}
}

// New creates an Orchestrator over one session's store and auth client.
// Supported options: WithLogger, WithMetrics, WithLandingURL, WithLoginURL,
// WithGraceDelay
func New(client *authapi.Client, store session.Store, opt ...Option) (*Orchestrator, error) {
	const op = "flow.New"
	if client == nil {
		return nil, fmt.Errorf("%s: client is nil: %w", op, authapi.ErrNilParameter)
	}
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, authapi.ErrNilParameter)
	}
	phases, err := session.NewPhaseStore(store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getOrchestratorOpts(opt...)
	return &Orchestrator{
		client:     client,
		store:      store,
		tokens:     client.Tokens(),
		phases:     phases,
		logger:     opts.withLogger,
		metrics:    opts.withMetrics,
		landingURL: opts.withLandingURL,
		loginURL:   opts.withLoginURL,
		graceDelay: opts.withGraceDelay,
		processed:  map[string]struct{}{},
	}, nil
}

// LoginURL returns the login entry route the orchestrator redirects to.
func (o *Orchestrator) LoginURL() string {
	return o.loginURL
}

// LandingURL returns the authenticated landing route.
func (o *Orchestrator) LandingURL() string {
	return o.landingURL
}

// Phases exposes the session's phase store to collaborating handlers.
func (o *Orchestrator) Phases() *session.PhaseStore {
	return o.phases
}

// CheckSession is the authentication check both route guards run.  It is
// two-tier: the backend probe is authoritative, but when it fails or errors
// the locally cached token is consulted as a resilience fallback, so a
// transient backend outage does not force a re-login.
//
// Two short-circuits avoid spurious probes mid-flow: a just-logged-out
// marker (consumed once) and an in-flight login redirect both read as
// Anonymous without touching the network.
func (o *Orchestrator) CheckSession(ctx context.Context) *Session {
	consumed, err := o.phases.ConsumeJustLoggedOut(ctx)
	if err != nil {
		o.logger.Error("unable to consume just-logged-out marker", "error", err)
	}
	if consumed {
		return &Session{Status: StatusAnonymous}
	}
	if o.phases.Current(ctx) == session.PhaseLoggingIn {
		return &Session{Status: StatusAnonymous}
	}

	result, err := o.client.CheckAuth(ctx)
	if err == nil && result.Authenticated {
		return &Session{Status: StatusAuthenticated, User: result.User}
	}
	if err != nil {
		o.logger.Warn("auth probe failed, falling back to cached token", "error", err)
	}
	// a reported failure falls back too: the backend's session may have
	// lapsed while the cached token is still good
	if o.tokens.Read(ctx) != nil && !o.tokens.IsExpired(ctx) {
		return &Session{Status: StatusAuthenticated}
	}
	return &Session{Status: StatusAnonymous}
}

// StartLogin begins a login flow: it requests an authorization URL with
// prompt=login (forcing IdP re-authentication instead of silent SSO),
// records the LoggingIn phase, and returns the URL for the browser to
// navigate to.  The phase is recorded before the caller redirects, so the
// anonymous guard cannot race the redirect.
func (o *Orchestrator) StartLogin(ctx context.Context) (string, error) {
	const op = "flow.Orchestrator.StartLogin"
	state, err := id.New("st")
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate state: %w", op, err)
	}
	authURL, err := o.client.LoginURL(ctx,
		authapi.WithPrompt("login"),
		authapi.WithState(state),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := o.phases.Begin(ctx, session.PhaseLoggingIn); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	o.metrics.LoginStarted()
	o.logger.Info("login started", "state", state)
	return authURL, nil
}

// StartLogout begins an IdP-driven logout: it fetches the end-session
// target and records the LoggingOut phase.  The caller renders the
// self-submitting logout form; completion arrives later as a parameterless
// callback.
func (o *Orchestrator) StartLogout(ctx context.Context) (*authapi.LogoutTarget, error) {
	const op = "flow.Orchestrator.StartLogout"
	target, err := o.client.LogoutURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := o.phases.Begin(ctx, session.PhaseLoggingOut); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	o.logger.Info("logout started")
	return target, nil
}

// markProcessed records the code in the idempotency set, reporting whether
// it was already there.
func (o *Orchestrator) markProcessed(code string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.processed[code]; ok {
		return false
	}
	o.processed[code] = struct{}{}
	return true
}
