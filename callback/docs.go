// Package callback provides the HTTP handler for the portal's registered
// redirect URI: the single route the IdP sends the browser back to, whether
// it carries an authorization result, an OAuth error, or nothing at all
// (logout completion).  The handler delegates the decision tree to the flow
// orchestrator and renders the outcome through pluggable response funcs.
package callback
