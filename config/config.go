// Package config resolves the portal's runtime configuration from the
// environment and validates it before anything is wired up.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/anoano/portal/authapi"
)

// Environment variable names.
const (
	EnvAPIBaseURL  = "PORTAL_API_BASE_URL"
	EnvPublicURL   = "PORTAL_PUBLIC_URL"
	EnvRedirectURI = "PORTAL_REDIRECT_URI"
	EnvClientID    = "PORTAL_CLIENT_ID"
	EnvListenAddr  = "PORTAL_LISTEN_ADDR"
	EnvRedisAddr   = "PORTAL_REDIS_ADDR"
)

const (
	// DefaultListenAddr is where serve binds when unconfigured.
	DefaultListenAddr = ":8080"

	// CallbackPath is the route registered with the IdP as the redirect
	// URI; the default redirect URI is the public origin plus this path.
	CallbackPath = "/auth/callback"
)

// Config is the portal's resolved runtime configuration.
type Config struct {
	// APIBaseURL is the backend's base origin.
	APIBaseURL string

	// PublicURL is the portal's own externally visible origin.
	PublicURL string

	// RedirectURI is the callback URL registered with the IdP.  Defaults
	// to PublicURL + CallbackPath.
	RedirectURI string

	// ClientID is the OIDC relying party identifier the deployment reports.
	ClientID string

	// ListenAddr is the address serve binds to.
	ListenAddr string

	// RedisAddr selects the Redis session store when set; empty keeps the
	// in-memory store.
	RedisAddr string
}

// FromEnv resolves the configuration from the environment and validates it.
func FromEnv() (*Config, error) {
	const op = "config.FromEnv"
	c := &Config{
		APIBaseURL:  strings.TrimSuffix(os.Getenv(EnvAPIBaseURL), "/"),
		PublicURL:   strings.TrimSuffix(os.Getenv(EnvPublicURL), "/"),
		RedirectURI: os.Getenv(EnvRedirectURI),
		ClientID:    os.Getenv(EnvClientID),
		ListenAddr:  os.Getenv(EnvListenAddr),
		RedisAddr:   os.Getenv(EnvRedisAddr),
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.RedirectURI == "" && c.PublicURL != "" {
		c.RedirectURI = c.PublicURL + CallbackPath
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	const op = "config.Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, authapi.ErrNilParameter)
	}
	if err := requireHTTPURL(op, EnvAPIBaseURL, c.APIBaseURL); err != nil {
		return err
	}
	if err := requireHTTPURL(op, EnvPublicURL, c.PublicURL); err != nil {
		return err
	}
	if err := requireHTTPURL(op, EnvRedirectURI, c.RedirectURI); err != nil {
		return err
	}
	return nil
}

func requireHTTPURL(op, name, value string) error {
	if value == "" {
		return fmt.Errorf("%s: %s is not set: %w", op, name, authapi.ErrInvalidParameter)
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s: %s %q is not an http(s) URL: %w", op, name, value, authapi.ErrInvalidParameter)
	}
	return nil
}
