package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const phaseKey = "portal_auth_phase"

// Phase is the persisted auth flow phase of one browser session.  At most
// one flow is in flight per session: a login or logout that leaves the tab
// records its phase here so route guards and the callback handler can
// coordinate across the full-page navigation that destroys in-memory state.
type Phase string

const (
	// PhaseIdle means no flow is in flight.
	PhaseIdle Phase = "idle"

	// PhaseLoggingIn is set before redirecting to the IdP for login and
	// cleared when the callback is processed.  It keeps the anonymous-route
	// guard from racing an authorization check against the redirect.
	PhaseLoggingIn Phase = "logging-in"

	// PhaseLoggingOut is set before navigating to the IdP's end-session
	// endpoint.  It disambiguates a parameterless callback between a login
	// error and a logout completion.
	PhaseLoggingOut Phase = "logging-out"

	// PhaseJustLoggedOut is set after logout completes and consumed by the
	// next anonymous-route check, suppressing a stale authenticated-session
	// false positive right after logout.
	PhaseJustLoggedOut Phase = "just-logged-out"
)

type phaseRecord struct {
	Phase Phase `json:"phase"`
}

// PhaseStore is the typed accessor for the persisted flow phase.
type PhaseStore struct {
	store Store
}

// NewPhaseStore creates a PhaseStore over the session store.
func NewPhaseStore(store Store) (*PhaseStore, error) {
	const op = "session.NewPhaseStore"
	if store == nil {
		return nil, fmt.Errorf("%s: store is nil: %w", op, ErrInvalidParameter)
	}
	return &PhaseStore{store: store}, nil
}

// Current returns the persisted phase.  An absent or corrupt record reads
// as PhaseIdle.
func (ps *PhaseStore) Current(ctx context.Context) Phase {
	raw, err := ps.store.Get(ctx, phaseKey)
	if err != nil {
		return PhaseIdle
	}
	var rec phaseRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return PhaseIdle
	}
	switch rec.Phase {
	case PhaseLoggingIn, PhaseLoggingOut, PhaseJustLoggedOut:
		return rec.Phase
	default:
		return PhaseIdle
	}
}

// Set persists the phase.  Setting PhaseIdle removes the record.
func (ps *PhaseStore) Set(ctx context.Context, p Phase) error {
	const op = "session.PhaseStore.Set"
	switch p {
	case PhaseIdle:
		if err := ps.store.Delete(ctx, phaseKey); err != nil {
			return fmt.Errorf("%s: unable to clear phase: %w", op, err)
		}
		return nil
	case PhaseLoggingIn, PhaseLoggingOut, PhaseJustLoggedOut:
	default:
		return fmt.Errorf("%s: unknown phase %q: %w", op, p, ErrInvalidParameter)
	}
	buf, err := json.Marshal(phaseRecord{Phase: p})
	if err != nil {
		return fmt.Errorf("%s: unable to encode phase: %w", op, err)
	}
	if err := ps.store.Set(ctx, phaseKey, string(buf)); err != nil {
		return fmt.Errorf("%s: unable to persist phase: %w", op, err)
	}
	return nil
}

// ConsumeJustLoggedOut reads and clears PhaseJustLoggedOut in one call,
// reporting whether it was set.  The flag is consumed exactly once.
func (ps *PhaseStore) ConsumeJustLoggedOut(ctx context.Context) (bool, error) {
	const op = "session.PhaseStore.ConsumeJustLoggedOut"
	if ps.Current(ctx) != PhaseJustLoggedOut {
		return false, nil
	}
	if err := ps.Set(ctx, PhaseIdle); err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// ErrFlowInFlight is returned when a login or logout is started while
// another flow is already in flight for the session.
var ErrFlowInFlight = errors.New("another auth flow is in flight")

// Begin transitions from an idle-ish phase into an in-flight one,
// enforcing that login and logout are one-at-a-time per session.
func (ps *PhaseStore) Begin(ctx context.Context, p Phase) error {
	const op = "session.PhaseStore.Begin"
	if p != PhaseLoggingIn && p != PhaseLoggingOut {
		return fmt.Errorf("%s: phase %q cannot be begun: %w", op, p, ErrInvalidParameter)
	}
	switch cur := ps.Current(ctx); cur {
	case PhaseLoggingIn, PhaseLoggingOut:
		if cur != p {
			return fmt.Errorf("%s: %s while %s: %w", op, p, cur, ErrFlowInFlight)
		}
	}
	return ps.Set(ctx, p)
}
