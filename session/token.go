package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-hclog"
)

const tokenKey = "portal_auth_token"

// DefaultExpiryBuffer is the safety buffer applied when checking a token's
// expiry, so a token that would expire mid-flight on a slow network is
// already treated as expired.
const DefaultExpiryBuffer = 5 * time.Minute

// defaultTokenLifetime is used when a saved token carries no exp claim.
const defaultTokenLifetime = 24 * time.Hour

// TokenRecord is the persisted form of a cached token: the signed token
// itself, the computed expiry, and the best-effort decoded claims.
type TokenRecord struct {
	RawToken      string                 `json:"rawToken"`
	ExpiresAt     int64                  `json:"expiresAtEpochMs"`
	DecodedClaims map[string]interface{} `json:"decodedClaims,omitempty"`
}

// TokenStore is the sole authority for the locally cached token: its
// presence, validity and claims.  It persists one TokenRecord in the
// session Store.
type TokenStore struct {
	store  Store
	logger hclog.Logger
}

// NewTokenStore creates a TokenStore over the session store.
// Supported options: WithLogger
func NewTokenStore(store Store, opt ...Option) (*TokenStore, error) {
	const op = "session.NewTokenStore"
	if store == nil {
		return nil, fmt.Errorf("%s: store is nil: %w", op, ErrInvalidParameter)
	}
	opts := getTokenStoreOpts(opt...)
	return &TokenStore{
		store:  store,
		logger: opts.withLogger,
	}, nil
}

// Save decodes the token's claims (best-effort: a token that won't decode
// is saved with absent claims, not rejected), computes the expiry from the
// exp claim (seconds, converted to epoch ms) or defaults it to 24h from
// now, and persists the record, overwriting any prior one.  Save failures
// are surfaced: a failed save means the caller's belief about the session
// state is wrong.
func (ts *TokenStore) Save(ctx context.Context, rawToken string) error {
	const op = "session.TokenStore.Save"
	if rawToken == "" {
		return fmt.Errorf("%s: token is empty: %w", op, ErrInvalidParameter)
	}
	rec := TokenRecord{
		RawToken:  rawToken,
		ExpiresAt: time.Now().Add(defaultTokenLifetime).UnixMilli(),
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		ts.logger.Debug("token claims did not decode, saving without claims", "error", err)
	} else {
		rec.DecodedClaims = claims
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			rec.ExpiresAt = exp.Time.UnixMilli()
		}
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%s: unable to encode token record: %w", op, err)
	}
	if err := ts.store.Set(ctx, tokenKey, string(buf)); err != nil {
		return fmt.Errorf("%s: unable to persist token record: %w", op, err)
	}
	return nil
}

// Read returns the persisted record, or nil when there is none.  A corrupt
// or unreadable record is treated as absent, not as an error.
func (ts *TokenStore) Read(ctx context.Context) *TokenRecord {
	raw, err := ts.store.Get(ctx, tokenKey)
	switch {
	case errors.Is(err, ErrNoRecord):
		return nil
	case err != nil:
		ts.logger.Error("unable to read token record, treating as absent", "error", err)
		return nil
	}
	var rec TokenRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		ts.logger.Error("corrupt token record, treating as absent", "error", err)
		return nil
	}
	if rec.RawToken == "" {
		return nil
	}
	return &rec
}

// IsExpired reports whether the cached token is absent or within the expiry
// safety buffer of its expiry.
// Supported options: WithExpiryBuffer
func (ts *TokenStore) IsExpired(ctx context.Context, opt ...Option) bool {
	rec := ts.Read(ctx)
	if rec == nil {
		return true
	}
	opts := getIsExpiredOpts(opt...)
	return rec.ExpiresAt <= time.Now().Add(opts.withExpiryBuffer).UnixMilli()
}

// Clear removes the persisted record.  Clearing an absent record is not an
// error.
func (ts *TokenStore) Clear(ctx context.Context) error {
	const op = "session.TokenStore.Clear"
	if err := ts.store.Delete(ctx, tokenKey); err != nil {
		return fmt.Errorf("%s: unable to clear token record: %w", op, err)
	}
	return nil
}

// TokenString returns the raw token string, or "" when absent.
func (ts *TokenStore) TokenString(ctx context.Context) string {
	rec := ts.Read(ctx)
	if rec == nil {
		return ""
	}
	return rec.RawToken
}

// Expiry returns the record's expiry in epoch milliseconds, or 0 when
// absent.
func (ts *TokenStore) Expiry(ctx context.Context) int64 {
	rec := ts.Read(ctx)
	if rec == nil {
		return 0
	}
	return rec.ExpiresAt
}

// tokenStoreOptions is the set of available options for NewTokenStore
type tokenStoreOptions struct {
	withLogger hclog.Logger
}

func tokenStoreDefaults() tokenStoreOptions {
	return tokenStoreOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getTokenStoreOpts(opt ...Option) tokenStoreOptions {
	opts := tokenStoreDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// isExpiredOptions is the set of available options for IsExpired
type isExpiredOptions struct {
	withExpiryBuffer time.Duration
}

func isExpiredDefaults() isExpiredOptions {
	return isExpiredOptions{
		withExpiryBuffer: DefaultExpiryBuffer,
	}
}

func getIsExpiredOpts(opt ...Option) isExpiredOptions {
	opts := isExpiredDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
