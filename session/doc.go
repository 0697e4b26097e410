// Package session holds the per-browser state of the portal: the cached
// token record, the persisted auth flow phase, and the key/value store both
// are written to.  A browser is identified by an opaque sid cookie; the
// Manager opens the Store bound to that sid.
//
// Stores come in two flavors: an in-memory provider suitable for a single
// portal instance, and a Redis provider for deployments where more than one
// instance must see the same browser session.
package session
