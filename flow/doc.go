// Package flow is the auth orchestrator: the state machine that drives
// login, callback handling and logout for one browser session.  It composes
// the session token store, the persisted flow phase and the backend auth
// API client, and is the single component the route guards and the callback
// handler talk to.
//
// A session moves Unknown -> Checking -> Authenticated | Anonymous.  An
// Anonymous session that starts a login becomes LoggingIn, leaves the tab
// for the IdP, and returns through ProcessingCallback into Authenticated or
// Error.  An Authenticated session that starts a logout becomes LoggingOut
// and returns through the parameterless logout callback into Anonymous.
package flow
