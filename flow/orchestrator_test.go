package flow

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anoano/portal/authapi"
	"github.com/anoano/portal/session"
)

func testOrchestrator(t *testing.T, b *authapi.TestBackend, opt ...Option) (*Orchestrator, session.Store, *session.TokenStore) {
	t.Helper()
	store := session.NewMemoryProvider().Open("sid_flow")
	tokens, err := session.NewTokenStore(store)
	require.NoError(t, err)
	client, err := authapi.New(authapi.Config{
		BaseURL:     b.Addr(),
		RedirectURI: "https://portal.example.com/auth/callback",
	}, tokens)
	require.NoError(t, err)
	opt = append([]Option{WithGraceDelay(time.Millisecond)}, opt...)
	o, err := New(client, store, opt...)
	require.NoError(t, err)
	return o, store, tokens
}

func TestOrchestrator_CheckSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("authenticated-backend", func(t *testing.T) {
		assert := assert.New(t)
		b := authapi.StartTestBackend(t)
		b.SetAuthenticated(true)
		o, _, _ := testOrchestrator(t, b)

		got := o.CheckSession(ctx)
		assert.Equal(StatusAuthenticated, got.Status)
		assert.NotNil(got.User)
	})

	t.Run("anonymous-backend", func(t *testing.T) {
		assert := assert.New(t)
		b := authapi.StartTestBackend(t)
		o, _, _ := testOrchestrator(t, b)

		got := o.CheckSession(ctx)
		assert.Equal(StatusAnonymous, got.Status)
		assert.Nil(got.User)
	})

	t.Run("just-logged-out-consumed-once", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b := authapi.StartTestBackend(t)
		b.SetAuthenticated(true)
		o, _, _ := testOrchestrator(t, b)
		require.NoError(o.Phases().Set(ctx, session.PhaseJustLoggedOut))

		// the marker suppresses the stale-session false positive once
		assert.Equal(StatusAnonymous, o.CheckSession(ctx).Status)
		assert.Equal(StatusAuthenticated, o.CheckSession(ctx).Status)
	})

	t.Run("in-flight-login-short-circuits", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b := authapi.StartTestBackend(t)
		b.SetAuthenticated(true)
		o, _, _ := testOrchestrator(t, b)
		require.NoError(o.Phases().Begin(ctx, session.PhaseLoggingIn))

		assert.Equal(StatusAnonymous, o.CheckSession(ctx).Status)
	})

	t.Run("reported-failure-with-valid-token-falls-back", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b := authapi.StartTestBackend(t)
		o, _, tokens := testOrchestrator(t, b)
		_, priv := authapi.TestGenerateKeys(t)
		require.NoError(tokens.Save(ctx, authapi.TestDefaultJWT(t, priv, b.Addr(), "u_1", time.Hour)))

		// backend answers 200 {success:false}; the valid cached token
		// still counts
		got := o.CheckSession(ctx)
		assert.Equal(StatusAuthenticated, got.Status)
		assert.Nil(got.User)
	})

	t.Run("outage-with-valid-token-falls-back-authenticated", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b := authapi.StartTestBackend(t)
		b.SetCheckFailStatus(http.StatusInternalServerError)
		o, _, tokens := testOrchestrator(t, b)
		_, priv := authapi.TestGenerateKeys(t)
		require.NoError(tokens.Save(ctx, authapi.TestDefaultJWT(t, priv, b.Addr(), "u_1", time.Hour)))

		got := o.CheckSession(ctx)
		assert.Equal(StatusAuthenticated, got.Status)
		assert.Nil(got.User)
	})

	t.Run("outage-with-expired-token-is-anonymous", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b := authapi.StartTestBackend(t)
		b.SetCheckFailStatus(http.StatusInternalServerError)
		o, _, tokens := testOrchestrator(t, b)
		_, priv := authapi.TestGenerateKeys(t)
		require.NoError(tokens.Save(ctx, authapi.TestDefaultJWT(t, priv, b.Addr(), "u_1", 2*time.Minute)))

		assert.Equal(StatusAnonymous, o.CheckSession(ctx).Status)
	})
}

func TestOrchestrator_StartLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("forces-reauthentication-and-records-phase", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b := authapi.StartTestBackend(t)
		o, _, _ := testOrchestrator(t, b)

		authURL, err := o.StartLogin(ctx)
		require.NoError(err)
		assert.True(strings.HasPrefix(authURL, "http"))

		u, err := url.Parse(authURL)
		require.NoError(err)
		assert.Equal("login", u.Query().Get("prompt"))
		assert.NotEmpty(u.Query().Get("state"))
		assert.Equal(session.PhaseLoggingIn, o.Phases().Current(ctx))
	})

	t.Run("invalid-authorization-url", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b := authapi.StartTestBackend(t)
		b.SetLoginURLReply("Something went wrong")
		o, _, _ := testOrchestrator(t, b)

		_, err := o.StartLogin(ctx)
		require.Error(err)
		assert.ErrorIs(err, authapi.ErrInvalidAuthorizationResponse)
		assert.Equal(session.PhaseIdle, o.Phases().Current(ctx))
	})

	t.Run("one-flow-at-a-time", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b := authapi.StartTestBackend(t)
		b.SetAuthenticated(true)
		o, _, _ := testOrchestrator(t, b)

		_, err := o.StartLogin(ctx)
		require.NoError(err)
		_, err = o.StartLogout(ctx)
		require.Error(err)
		assert.ErrorIs(err, session.ErrFlowInFlight)
	})
}

func TestOrchestrator_StartLogout(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	b := authapi.StartTestBackend(t)
	b.SetAuthenticated(true)
	o, _, _ := testOrchestrator(t, b)

	target, err := o.StartLogout(ctx)
	require.NoError(err)
	assert.NotEmpty(target.EndSessionURL)
	assert.NotContains(target.EndSessionURL, "client_id")
	assert.NotEmpty(target.IDTokenHint)
	assert.Equal(session.PhaseLoggingOut, o.Phases().Current(ctx))
}

func TestOrchestrator_HandleCallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("provider-error-codes", func(t *testing.T) {
		tests := []struct {
			name     string
			query    url.Values
			contains string
		}{
			{
				name:     "access-denied",
				query:    url.Values{"error": {"access_denied"}},
				contains: "Access was denied",
			},
			{
				name:     "consent-error",
				query:    url.Values{"error": {"consent_error"}},
				contains: "consent step",
			},
			{
				name:     "invalid-request",
				query:    url.Values{"error": {"invalid_request"}},
				contains: "request was invalid",
			},
			{
				name:     "server-error",
				query:    url.Values{"error": {"server_error"}},
				contains: "server error",
			},
			{
				name:     "unknown-code-uses-description",
				query:    url.Values{"error": {"temporarily_unavailable"}, "error_description": {"busy"}},
				contains: "busy",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert := assert.New(t)
				b := authapi.StartTestBackend(t)
				o, _, _ := testOrchestrator(t, b)

				got := o.HandleCallback(ctx, tt.query)
				assert.Equal(DispositionError, got.Disposition)
				assert.Contains(got.Message, tt.contains)
				assert.Zero(b.CallbackCount())
			})
		}
	})

	t.Run("successful-exchange", func(t *testing.T) {
		assert := assert.New(t)
		b := authapi.StartTestBackend(t)
		o, _, _ := testOrchestrator(t, b)
		require.NoError(t, o.Phases().Begin(ctx, session.PhaseLoggingIn))

		got := o.HandleCallback(ctx, url.Values{"code": {"test-code"}, "state": {"st_xyz"}})
		assert.Equal(DispositionLoggedIn, got.Disposition)
		assert.Equal(DefaultLandingURL, got.RedirectTo)
		assert.NotNil(got.User)
		assert.Equal(1, b.CallbackCount())
		assert.Equal(session.PhaseIdle, o.Phases().Current(ctx))
	})

	t.Run("duplicate-code-exchanged-once", func(t *testing.T) {
		assert := assert.New(t)
		b := authapi.StartTestBackend(t)
		o, _, _ := testOrchestrator(t, b)

		first := o.HandleCallback(ctx, url.Values{"code": {"test-code"}})
		second := o.HandleCallback(ctx, url.Values{"code": {"test-code"}})
		assert.Equal(DispositionLoggedIn, first.Disposition)
		assert.Equal(DispositionDuplicate, second.Disposition)
		assert.Equal(1, b.CallbackCount())
	})

	t.Run("rejected-code", func(t *testing.T) {
		assert := assert.New(t)
		b := authapi.StartTestBackend(t)
		o, _, _ := testOrchestrator(t, b)

		got := o.HandleCallback(ctx, url.Values{"code": {"wrong-code"}})
		assert.Equal(DispositionError, got.Disposition)
		assert.Contains(got.Message, "try signing in again")
	})

	t.Run("logout-completion", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		b := authapi.StartTestBackend(t)
		b.SetAuthenticated(true)
		o, store, tokens := testOrchestrator(t, b)
		_, priv := authapi.TestGenerateKeys(t)
		require.NoError(tokens.Save(ctx, authapi.TestDefaultJWT(t, priv, b.Addr(), "u_1", time.Hour)))
		require.NoError(o.Phases().Begin(ctx, session.PhaseLoggingOut))

		got := o.HandleCallback(ctx, url.Values{})
		assert.Equal(DispositionLoggedOut, got.Disposition)
		assert.Equal(DefaultLoginURL, got.RedirectTo)
		assert.True(got.WipeCookies)
		assert.Empty(tokens.TokenString(ctx))
		assert.Equal(1, b.LogoutCount())
		assert.Zero(b.CallbackCount())
		assert.Equal(session.PhaseJustLoggedOut, o.Phases().Current(ctx))

		keys, err := store.Keys(ctx)
		require.NoError(err)
		assert.Len(keys, 1) // only the just-logged-out marker survives
	})

	t.Run("no-code-no-error-no-flag-is-malformed", func(t *testing.T) {
		assert := assert.New(t)
		b := authapi.StartTestBackend(t)
		o, _, _ := testOrchestrator(t, b)

		got := o.HandleCallback(ctx, url.Values{})
		assert.Equal(DispositionError, got.Disposition)
		assert.Contains(got.Message, "authorization code")
		assert.Zero(b.CallbackCount())
	})
}
