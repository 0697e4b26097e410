package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/anoano/portal/authapi"
	"github.com/anoano/portal/callback"
	"github.com/anoano/portal/config"
	"github.com/anoano/portal/flow"
	"github.com/anoano/portal/guard"
	"github.com/anoano/portal/metrics"
	"github.com/anoano/portal/session"
	"github.com/anoano/portal/student"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides "+config.EnvListenAddr+")")
	return cmd
}

// depsTTL bounds how long an idle browser session's object graph is kept,
// mirroring the Redis store's session TTL.
const depsTTL = session.DefaultSessionTTL

// app holds the process-wide pieces; everything session-scoped hangs off
// sessionDeps.
type app struct {
	cfg     *config.Config
	logger  hclog.Logger
	manager *session.Manager
	metrics *metrics.Metrics

	// health is a session-less client for the backend health probe, so
	// load balancer checks never mint a sid.
	health *authapi.Client

	// deps caches one sessionDeps per sid, so the orchestrator's
	// idempotency set survives across the requests of one browser session.
	// Entries idle longer than depsTTL are evicted.
	mu   sync.Mutex
	deps map[string]*sessionDeps
}

// sessionDeps is the session-scoped object graph.
type sessionDeps struct {
	orch     *flow.Orchestrator
	auth     *authapi.Client
	students *student.Client
	lastSeen time.Time
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "portal",
		Level: hclog.Info,
	})

	var provider session.Provider = session.NewMemoryProvider()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		p, err := session.NewRedisProvider(rdb, 0)
		if err != nil {
			return err
		}
		provider = p
		logger.Info("using redis session store", "addr", cfg.RedisAddr)
	}
	manager, err := session.NewManager(provider, strings.HasPrefix(cfg.PublicURL, "https://"))
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger, manager, metrics.New(prometheus.DefaultRegisterer))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newApp(cfg *config.Config, logger hclog.Logger, manager *session.Manager, m *metrics.Metrics) (*app, error) {
	healthTokens, err := session.NewTokenStore(session.NewMemoryProvider().Open("healthcheck"))
	if err != nil {
		return nil, err
	}
	health, err := authapi.New(authapi.Config{
		BaseURL:     cfg.APIBaseURL,
		RedirectURI: cfg.RedirectURI,
		ClientID:    cfg.ClientID,
	}, healthTokens, authapi.WithLogger(logger.Named("health")))
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		metrics: m,
		health:  health,
		deps:    map[string]*sessionDeps{},
	}, nil
}

func (a *app) routes() http.Handler {
	checker := ctxChecker{}
	requireAuth := guard.RequireAuth(checker,
		guard.WithMetrics(a.metrics),
	)
	requireAnonymous := guard.RequireAnonymous(checker,
		guard.WithMetrics(a.metrics),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// session-less routes; probes and crawlers must not mint sids
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", a.healthz)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, flow.DefaultLandingURL, http.StatusFound)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.withSession)

		r.With(requireAnonymous).Get("/login", a.loginPage)
		r.Get("/auth/login", a.startLogin)
		r.Get("/auth/callback", a.handleCallback)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/auth/logout", a.startLogout)
			r.Get("/student", a.studentPage)
		})
	})
	return r
}

type ctxKey int

const depsKey ctxKey = iota

// withSession opens the browser's session and hangs its object graph on
// the request context.
func (a *app) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		deps, err := a.depsFor(w, req)
		if err != nil {
			a.logger.Error("unable to open session", "error", err)
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), depsKey, deps)))
	})
}

func (a *app) depsFor(w http.ResponseWriter, req *http.Request) (*sessionDeps, error) {
	store, err := a.manager.Open(w, req)
	if err != nil {
		return nil, err
	}
	c, err := req.Cookie(session.SidCookieName)
	if err != nil {
		return nil, err
	}
	sid := c.Value

	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	if d, ok := a.deps[sid]; ok {
		d.lastSeen = now
		return d, nil
	}
	a.evictStale(now)

	tokens, err := session.NewTokenStore(store, session.WithLogger(a.logger.Named("tokens")))
	if err != nil {
		return nil, err
	}
	auth, err := authapi.New(authapi.Config{
		BaseURL:     a.cfg.APIBaseURL,
		RedirectURI: a.cfg.RedirectURI,
		ClientID:    a.cfg.ClientID,
	}, tokens, authapi.WithLogger(a.logger.Named("authapi")))
	if err != nil {
		return nil, err
	}
	orch, err := flow.New(auth, store,
		flow.WithLogger(a.logger.Named("flow")),
		flow.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	students, err := student.New(auth, a.cfg.APIBaseURL)
	if err != nil {
		return nil, err
	}
	d := &sessionDeps{orch: orch, auth: auth, students: students, lastSeen: now}
	a.deps[sid] = d
	return d, nil
}

// evictStale drops session graphs idle past depsTTL.  Caller holds a.mu.
func (a *app) evictStale(now time.Time) {
	for sid, d := range a.deps {
		if now.Sub(d.lastSeen) > depsTTL {
			delete(a.deps, sid)
		}
	}
}

func depsFrom(ctx context.Context) *sessionDeps {
	d, _ := ctx.Value(depsKey).(*sessionDeps)
	return d
}

// ctxChecker adapts the session-scoped orchestrator to the guards.
type ctxChecker struct{}

func (ctxChecker) CheckSession(ctx context.Context) *flow.Session {
	if d := depsFrom(ctx); d != nil {
		return d.orch.CheckSession(ctx)
	}
	return &flow.Session{Status: flow.StatusAnonymous}
}

func (a *app) startLogin(w http.ResponseWriter, req *http.Request) {
	d := depsFrom(req.Context())
	authURL, err := d.orch.StartLogin(req.Context())
	if err != nil {
		a.logger.Error("unable to start login", "error", err)
		http.Error(w, "could not start sign-in, please try again", http.StatusBadGateway)
		return
	}
	http.Redirect(w, req, authURL, http.StatusFound)
}

func (a *app) startLogout(w http.ResponseWriter, req *http.Request) {
	d := depsFrom(req.Context())
	target, err := d.orch.StartLogout(req.Context())
	if err != nil {
		a.logger.Error("unable to start logout", "error", err)
		http.Error(w, "could not start sign-out, please try again", http.StatusBadGateway)
		return
	}
	form, err := authapi.LogoutForm(target, a.cfg.RedirectURI)
	if err != nil {
		a.logger.Error("unable to render logout form", "error", err)
		http.Error(w, "could not start sign-out", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(form)
}

func (a *app) handleCallback(w http.ResponseWriter, req *http.Request) {
	d := depsFrom(req.Context())
	h, err := callback.Handler(d.orch, nil, callback.ErrorResponse("/login", "/auth/login"), nil)
	if err != nil {
		http.Error(w, "callback unavailable", http.StatusInternalServerError)
		return
	}
	h(w, req)
}

func (a *app) healthz(w http.ResponseWriter, req *http.Request) {
	if _, err := a.health.Health(req.Context()); err != nil {
		http.Error(w, "backend unreachable", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintln(w, "ok")
}
