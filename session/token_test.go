package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func testTokenStore(t *testing.T) *TokenStore {
	t.Helper()
	ts, err := NewTokenStore(NewMemoryProvider().Open("sid_test"))
	require.NoError(t, err)
	return ts
}

func TestNewTokenStore(t *testing.T) {
	t.Parallel()
	t.Run("nil-store", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := NewTokenStore(nil)
		require.Error(err)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestTokenStore_Save(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("exp-claim-drives-expiry", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := testTokenStore(t)
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		raw := testJWT(t, jwt.MapClaims{"exp": exp.Unix(), "sub": "alice"})
		require.NoError(ts.Save(ctx, raw))

		rec := ts.Read(ctx)
		require.NotNil(rec)
		assert.Equal(raw, rec.RawToken)
		assert.Equal(exp.UnixMilli(), rec.ExpiresAt)
		assert.Equal("alice", rec.DecodedClaims["sub"])
	})
	t.Run("no-exp-claim-defaults-24h", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := testTokenStore(t)
		raw := testJWT(t, jwt.MapClaims{"sub": "alice"})
		require.NoError(ts.Save(ctx, raw))

		rec := ts.Read(ctx)
		require.NotNil(rec)
		want := time.Now().Add(defaultTokenLifetime).UnixMilli()
		assert.InDelta(want, rec.ExpiresAt, float64(5*time.Second.Milliseconds()))
	})
	t.Run("undecodable-token-saved-without-claims", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := testTokenStore(t)
		require.NoError(ts.Save(ctx, "opaque-session-token"))

		rec := ts.Read(ctx)
		require.NotNil(rec)
		assert.Equal("opaque-session-token", rec.RawToken)
		assert.Nil(rec.DecodedClaims)
	})
	t.Run("empty-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := testTokenStore(t)
		err := ts.Save(ctx, "")
		require.Error(err)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("second-save-overwrites", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := testTokenStore(t)
		firstExp := time.Now().Add(time.Hour).Truncate(time.Second)
		secondExp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
		require.NoError(ts.Save(ctx, testJWT(t, jwt.MapClaims{"exp": firstExp.Unix(), "sub": "alice"})))
		second := testJWT(t, jwt.MapClaims{"exp": secondExp.Unix(), "sub": "bob"})
		require.NoError(ts.Save(ctx, second))

		rec := ts.Read(ctx)
		require.NotNil(rec)
		assert.Equal(second, rec.RawToken)
		assert.Equal(secondExp.UnixMilli(), rec.ExpiresAt)
		assert.Equal("bob", rec.DecodedClaims["sub"])
	})
}

func TestTokenStore_Read(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("absent", func(t *testing.T) {
		assert := assert.New(t)
		ts := testTokenStore(t)
		assert.Nil(ts.Read(ctx))
	})
	t.Run("corrupt-record-reads-as-absent", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := NewMemoryProvider().Open("sid_corrupt")
		require.NoError(store.Set(ctx, tokenKey, "{not json"))
		ts, err := NewTokenStore(store)
		require.NoError(err)
		assert.Nil(ts.Read(ctx))
	})
}

func TestTokenStore_IsExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("absent-is-expired", func(t *testing.T) {
		assert := assert.New(t)
		ts := testTokenStore(t)
		assert.True(ts.IsExpired(ctx))
	})
	t.Run("within-buffer-is-expired", func(t *testing.T) {
		// expires in 2 minutes: not technically expired, but inside the
		// 5-minute safety buffer
		assert, require := assert.New(t), require.New(t)
		ts := testTokenStore(t)
		exp := time.Now().Add(2 * time.Minute)
		require.NoError(ts.Save(ctx, testJWT(t, jwt.MapClaims{"exp": exp.Unix()})))
		assert.True(ts.IsExpired(ctx))
	})
	t.Run("outside-buffer-is-not-expired", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := testTokenStore(t)
		exp := time.Now().Add(10 * time.Minute)
		require.NoError(ts.Save(ctx, testJWT(t, jwt.MapClaims{"exp": exp.Unix()})))
		assert.False(ts.IsExpired(ctx))
	})
	t.Run("with-expiry-buffer-option", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := testTokenStore(t)
		exp := time.Now().Add(2 * time.Minute)
		require.NoError(ts.Save(ctx, testJWT(t, jwt.MapClaims{"exp": exp.Unix()})))
		assert.False(ts.IsExpired(ctx, WithExpiryBuffer(time.Minute)))
		assert.True(ts.IsExpired(ctx, WithExpiryBuffer(30*time.Minute)))
	})
}

func TestTokenStore_Clear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("idempotent", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := testTokenStore(t)
		require.NoError(ts.Save(ctx, testJWT(t, jwt.MapClaims{"sub": "alice"})))
		require.NoError(ts.Clear(ctx))
		assert.Nil(ts.Read(ctx))
		require.NoError(ts.Clear(ctx))
	})
}

func TestTokenStore_Projections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("absent", func(t *testing.T) {
		assert := assert.New(t)
		ts := testTokenStore(t)
		assert.Empty(ts.TokenString(ctx))
		assert.Zero(ts.Expiry(ctx))
	})
	t.Run("present", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := testTokenStore(t)
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		raw := testJWT(t, jwt.MapClaims{"exp": exp.Unix()})
		require.NoError(ts.Save(ctx, raw))
		assert.Equal(raw, ts.TokenString(ctx))
		assert.Equal(exp.UnixMilli(), ts.Expiry(ctx))
	})
}
