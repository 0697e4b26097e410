// Package portal provides the authentication session lifecycle for a web portal
// that delegates login to an external OpenID Connect provider through a
// backing API: token lifecycle management (session), the typed session API
// client (authapi), the login/logout/callback orchestration (flow), and the
// route guarding built on top of it (guard, callback).
//
// See README.md
package portal
