package session

import (
	"fmt"
	"net/http"

	"github.com/anoano/portal/sdk/id"
)

// SidCookieName is the cookie carrying the opaque portal session id.
const SidCookieName = "portal_sid"

// Manager binds browsers to their session Store via the sid cookie.
type Manager struct {
	provider Provider
	secure   bool
}

// NewManager creates a Manager over the provider.  When secure is true the
// sid cookie is marked Secure (any https deployment).
func NewManager(provider Provider, secure bool) (*Manager, error) {
	const op = "session.NewManager"
	if provider == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, ErrInvalidParameter)
	}
	return &Manager{provider: provider, secure: secure}, nil
}

// Open returns the Store for the request's browser, issuing a new sid
// cookie when the request carries none.
func (m *Manager) Open(w http.ResponseWriter, req *http.Request) (Store, error) {
	const op = "session.Manager.Open"
	if c, err := req.Cookie(SidCookieName); err == nil && c.Value != "" {
		return m.provider.Open(c.Value), nil
	}
	sid, err := id.New("sid")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate session id: %w", op, err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SidCookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	// let the rest of this request see the new sid
	req.AddCookie(&http.Cookie{Name: SidCookieName, Value: sid})
	return m.provider.Open(sid), nil
}
