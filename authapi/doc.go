// Package authapi is the typed client for the backend's auth endpoints,
// which implement the OIDC authorization code flow against one external
// IdP.  The client decodes the backend's response envelope exactly once at
// this boundary into tagged results (LoginURL, CheckResult, LogoutTarget),
// so nothing above it re-interprets ambiguous fields.
//
// Every response may opportunistically carry a refreshed token (in the
// Authorization or X-Auth-Token header, or the body's token field); the
// client hands any such token to the session token store.
package authapi
