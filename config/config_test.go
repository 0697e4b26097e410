package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anoano/portal/authapi"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		t.Setenv(EnvAPIBaseURL, "https://api.example.com/")
		t.Setenv(EnvPublicURL, "https://portal.example.com")
		t.Setenv(EnvRedirectURI, "")
		t.Setenv(EnvListenAddr, "")
		t.Setenv(EnvClientID, "portal")

		got, err := FromEnv()
		require.NoError(err)
		assert.Equal("https://api.example.com", got.APIBaseURL)
		assert.Equal("https://portal.example.com/auth/callback", got.RedirectURI)
		assert.Equal(DefaultListenAddr, got.ListenAddr)
		assert.Empty(got.RedisAddr)
	})

	t.Run("explicit-redirect-wins", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		t.Setenv(EnvAPIBaseURL, "https://api.example.com")
		t.Setenv(EnvPublicURL, "https://portal.example.com")
		t.Setenv(EnvRedirectURI, "https://other.example.com/cb")

		got, err := FromEnv()
		require.NoError(err)
		assert.Equal("https://other.example.com/cb", got.RedirectURI)
	})

	t.Run("missing-api-base", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		t.Setenv(EnvAPIBaseURL, "")
		t.Setenv(EnvPublicURL, "https://portal.example.com")

		_, err := FromEnv()
		require.Error(err)
		assert.ErrorIs(err, authapi.ErrInvalidParameter)
	})

	t.Run("non-http-scheme", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		t.Setenv(EnvAPIBaseURL, "ftp://api.example.com")
		t.Setenv(EnvPublicURL, "https://portal.example.com")

		_, err := FromEnv()
		require.Error(err)
		assert.ErrorIs(err, authapi.ErrInvalidParameter)
	})
}
