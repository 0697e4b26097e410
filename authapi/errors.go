package authapi

import (
	"errors"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrInvalidAuthorizationResponse is returned when the backend's reply
	// to a login-url or get-logout request carries no usable URL.
	ErrInvalidAuthorizationResponse = errors.New("invalid authorization response")

	// ErrUnauthenticated is returned when a protected call had no valid
	// session (http 401).
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrMalformedResponse is returned when a 2xx response body does not
	// decode into the expected envelope.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("server error")

	// ErrAuthenticationFailed is returned when the backend rejects a
	// callback code exchange.
	ErrAuthenticationFailed = errors.New("authentication failed")
)
