package flow

import "github.com/anoano/portal/authapi"

// Status is the orchestrator's view of one browser session.
type Status string

const (
	StatusUnknown            Status = "unknown"
	StatusChecking           Status = "checking"
	StatusAuthenticated      Status = "authenticated"
	StatusAnonymous          Status = "anonymous"
	StatusLoggingIn          Status = "logging-in"
	StatusLoggingOut         Status = "logging-out"
	StatusProcessingCallback Status = "processing-callback"
	StatusError              Status = "error"
)

// Session is the per-check session descriptor.  It is reconstructed on
// every check and never cached beyond it.
type Session struct {
	Status Status

	// User is the authenticated principal's profile when the backend
	// reported one.  A token-fallback Authenticated session has no profile.
	User *authapi.User
}

// Authenticated is a convenience for guard decisions.
func (s *Session) Authenticated() bool {
	return s != nil && s.Status == StatusAuthenticated
}
