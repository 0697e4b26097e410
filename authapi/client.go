package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/anoano/portal/session"
)

// Backend auth endpoint paths.
const (
	PathLoginURL  = "/api/auth/login-url"
	PathCallback  = "/api/auth/callback"
	PathUserMe    = "/api/auth/user/me"
	PathCheck     = "/api/auth/check"
	PathGetLogout = "/api/auth/get-logout"
	PathLogout    = "/api/auth/logout"
	PathHealth    = "/api/auth/health"
)

// Config is the client configuration for the backend's auth API.
type Config struct {
	// BaseURL is the backend's base origin, e.g. https://portal.example.com.
	BaseURL string

	// RedirectURI is the callback URL registered with the IdP; it doubles as
	// the post-logout redirect URI.
	RedirectURI string

	// ClientID is the OIDC relying party identifier.  The backend owns the
	// IdP protocol; the portal only reports the id on login-url requests
	// so the backend can select the registration.
	ClientID string
}

// Validate the client configuration.
func (c *Config) Validate() error {
	const op = "authapi.Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("%s: base URL is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%s: base URL %s is invalid: %w", op, c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: base URL %s scheme is not http or https: %w", op, c.BaseURL, ErrInvalidParameter)
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("%s: redirect URI is empty: %w", op, ErrInvalidParameter)
	}
	return nil
}

// Client performs the network calls that constitute the portal's side of
// the OIDC authorization code flow: get the authorization URL, exchange the
// code, probe the session, and drive logout.  One Client is bound to one
// browser session's token store.
type Client struct {
	config Config
	tokens *session.TokenStore
	client *http.Client
	logger hclog.Logger
}

// New creates a Client for the backend auth API.
// Supported options: WithLogger, WithHTTPClient
func New(c Config, tokens *session.TokenStore, opt ...Option) (*Client, error) {
	const op = "authapi.New"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%s: token store is nil: %w", op, ErrNilParameter)
	}
	opts := getClientOpts(opt...)

	httpClient := opts.withHTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: cleanhttp.DefaultPooledTransport()}
	}
	wrapped := *httpClient
	wrapped.Transport = &Transport{
		Base:   httpClient.Transport,
		Tokens: tokens,
		Logger: opts.withLogger,
	}

	return &Client{
		config: c,
		tokens: tokens,
		client: &wrapped,
		logger: opts.withLogger,
	}, nil
}

// Tokens returns the session token store the client persists to.
func (c *Client) Tokens() *session.TokenStore {
	return c.tokens
}

// RedirectURI returns the configured callback URL.
func (c *Client) RedirectURI() string {
	return c.config.RedirectURI
}

// HTTPClient returns the token-propagating http client, for collaborators
// (e.g. the student resource wrapper) that must inherit the bearer and 401
// semantics.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// LoginURL requests a backend-constructed authorization URL.  The result
// must start with an http(s) scheme, otherwise the call fails with
// ErrInvalidAuthorizationResponse.
// Supported options: WithRedirectURI, WithState, WithPrompt, WithPAR
func (c *Client) LoginURL(ctx context.Context, opt ...Option) (string, error) {
	const op = "authapi.Client.LoginURL"
	opts := getLoginURLOpts(opt...)
	redirectURI := opts.withRedirectURI
	if redirectURI == "" {
		redirectURI = c.config.RedirectURI
	}
	q := url.Values{}
	q.Set("redirectUri", redirectURI)
	if opts.withState != "" {
		q.Set("state", opts.withState)
	}
	q.Set("usePAR", strconv.FormatBool(opts.withPAR))
	if opts.withPrompt != "" {
		q.Set("prompt", opts.withPrompt)
	}
	if c.config.ClientID != "" {
		q.Set("clientId", c.config.ClientID)
	}

	env, _, err := c.get(ctx, PathLoginURL, q)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	authURL := urlFrom(env)
	if authURL == "" {
		return "", fmt.Errorf("%s: no usable authorization URL in response: %w", op, ErrInvalidAuthorizationResponse)
	}
	return authURL, nil
}

// HandleCallback exchanges an authorization code for session establishment.
// Any token in the response is persisted; its absence is a valid outcome
// when the backend relies on server-side session cookies.
func (c *Client) HandleCallback(ctx context.Context, code, state string) (*CallbackResult, error) {
	const op = "authapi.Client.HandleCallback"
	if code == "" {
		return nil, fmt.Errorf("%s: code is empty: %w", op, ErrInvalidParameter)
	}
	body := map[string]string{
		"code":        code,
		"state":       state,
		"redirectUri": c.config.RedirectURI,
	}
	env, resp, err := c.post(ctx, PathCallback, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%s: %s: %w", op, env.Message, ErrAuthenticationFailed)
	}
	return &CallbackResult{
		User:           userFrom(env),
		Message:        env.Message,
		TokenPersisted: responseToken(resp.Header, env) != "",
	}, nil
}

// CurrentUser fetches the profile of the currently authenticated principal.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	const op = "authapi.Client.CurrentUser"
	env, _, err := c.get(ctx, PathUserMe, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u := userFrom(env)
	if !env.Success || u == nil {
		return nil, fmt.Errorf("%s: no authenticated user: %w", op, ErrUnauthenticated)
	}
	return u, nil
}

// CheckAuth is the lightweight authentication probe: the authoritative
// source queried before trusting a locally cached token.  A backend that
// answers "not authenticated" (success=false, missing payload, or 401) is a
// negative result, not an error; errors are reserved for transport and
// decoding faults.
func (c *Client) CheckAuth(ctx context.Context) (*CheckResult, error) {
	const op = "authapi.Client.CheckAuth"
	env, _, err := c.get(ctx, PathCheck, nil)
	switch {
	case isUnauthenticated(err):
		return &CheckResult{}, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !env.Success || !hasPayload(env) {
		return &CheckResult{}, nil
	}
	return &CheckResult{Authenticated: true, User: userFrom(env)}, nil
}

// LogoutURL fetches the IdP's end-session endpoint together with the
// id_token_hint the backend embedded.  Every query parameter (notably
// client_id) is stripped from the returned base URL: the end-session
// endpoint expects exactly id_token_hint and post_logout_redirect_uri, and
// extra parameters cause provider-side rejection.
func (c *Client) LogoutURL(ctx context.Context) (*LogoutTarget, error) {
	const op = "authapi.Client.LogoutURL"
	env, _, err := c.get(ctx, PathGetLogout, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	raw := urlFrom(env)
	if raw == "" {
		return nil, fmt.Errorf("%s: no usable logout URL in response: %w", op, ErrInvalidAuthorizationResponse)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: logout URL is invalid: %w", op, ErrInvalidAuthorizationResponse)
	}
	hint := u.Query().Get("id_token_hint")
	if hint == "" {
		return nil, fmt.Errorf("%s: id_token_hint not found in logout URL: %w", op, ErrInvalidAuthorizationResponse)
	}
	return &LogoutTarget{
		EndSessionURL: fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path),
		IDTokenHint:   hint,
	}, nil
}

// Logout tells the backend to invalidate its session.  The local token is
// cleared regardless of the network outcome: clearing local state must
// never depend on remote success.
func (c *Client) Logout(ctx context.Context) error {
	const op = "authapi.Client.Logout"
	var result *multierror.Error
	if _, _, err := c.post(ctx, PathLogout, nil); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
	}
	if err := c.tokens.Clear(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: unable to clear token: %w", op, err))
	}
	return result.ErrorOrNil()
}

// Health probes the backend's auth health endpoint.
func (c *Client) Health(ctx context.Context) (string, error) {
	const op = "authapi.Client.Health"
	env, _, err := c.get(ctx, PathHealth, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return env.Message, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*envelope, *http.Response, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*envelope, *http.Response, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*envelope, *http.Response, error) {
	const op = "authapi.Client.do"
	u := strings.TrimSuffix(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: unable to encode request body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: request to %s failed: %w", op, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("%s: unable to read response from %s: %w", op, path, err)
	}

	env, decodeErr := decodeEnvelope(raw)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return env, resp, fmt.Errorf("%s: %s answered 401: %w", op, path, ErrUnauthenticated)
	case resp.StatusCode >= 500:
		c.logger.Error("backend server error", "path", path, "status", resp.StatusCode)
		return env, resp, fmt.Errorf("%s: %s answered %d: %w", op, path, resp.StatusCode, ErrServer)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return env, resp, fmt.Errorf("%s: %s answered %d: %w", op, path, resp.StatusCode, errorFrom(env, decodeErr))
	case decodeErr != nil:
		return nil, resp, fmt.Errorf("%s: response from %s: %w", op, path, decodeErr)
	}

	// opportunistic body-token capture; header tokens are handled by the
	// Transport
	if tok := responseToken(nil, env); tok != "" {
		if err := c.tokens.Save(ctx, tok); err != nil {
			return env, resp, fmt.Errorf("%s: unable to persist response token: %w", op, err)
		}
	}
	return env, resp, nil
}

func errorFrom(env *envelope, decodeErr error) error {
	if env != nil && env.Message != "" {
		return fmt.Errorf("%s: %w", env.Message, ErrMalformedResponse)
	}
	if decodeErr != nil {
		return decodeErr
	}
	return ErrMalformedResponse
}

// urlFrom returns the http(s) URL the backend put in the envelope's message
// or data field, or "" when neither holds one.
func urlFrom(env *envelope) string {
	if strings.HasPrefix(env.Message, "http://") || strings.HasPrefix(env.Message, "https://") {
		return env.Message
	}
	var s string
	if len(env.Data) > 0 && json.Unmarshal(env.Data, &s) == nil {
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			return s
		}
	}
	return ""
}

func isUnauthenticated(err error) bool {
	return err != nil && errors.Is(err, ErrUnauthenticated)
}
