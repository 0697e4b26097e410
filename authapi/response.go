package authapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// envelope is the backend's response shape for every auth endpoint:
// {success, message, data?, user?, token?}.  It is decoded exactly once,
// here; callers only ever see the typed results derived from it.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	User    *User           `json:"user,omitempty"`
	Token   string          `json:"token,omitempty"`
}

// User is the profile of an authenticated principal.  Fields beyond the
// well-known trio are kept in Extra.
type User struct {
	ID    string
	Email string
	Name  string
	Extra map[string]interface{}
}

func (u *User) UnmarshalJSON(b []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	take := func(key string) string {
		v, ok := m[key].(string)
		if !ok {
			return ""
		}
		delete(m, key)
		return v
	}
	u.ID = take("id")
	u.Email = take("email")
	u.Name = take("name")
	if len(m) > 0 {
		u.Extra = m
	}
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{}
	for k, v := range u.Extra {
		m[k] = v
	}
	if u.ID != "" {
		m["id"] = u.ID
	}
	if u.Email != "" {
		m["email"] = u.Email
	}
	if u.Name != "" {
		m["name"] = u.Name
	}
	return json.Marshal(m)
}

// CheckResult is the outcome of the lightweight authentication probe.
type CheckResult struct {
	Authenticated bool
	User          *User
}

// CallbackResult is the outcome of a successful authorization code
// exchange.  TokenPersisted reports whether the response carried a token;
// its absence is a valid outcome for cookie-session backends.
type CallbackResult struct {
	User           *User
	Message        string
	TokenPersisted bool
}

// LogoutTarget identifies the IdP's end-session endpoint.  EndSessionURL is
// the clean base URL: every query parameter the backend embedded (notably
// client_id) is stripped, because the end-session endpoint expects exactly
// id_token_hint and post_logout_redirect_uri.
type LogoutTarget struct {
	EndSessionURL string
	IDTokenHint   string
}

// decodeEnvelope decodes a response body into the envelope.
func decodeEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrMalformedResponse)
	}
	return &env, nil
}

// responseToken extracts an opportunistic token from a response: the
// Authorization or X-Auth-Token header, the body's token field, or a token
// field nested in data.
func responseToken(header http.Header, env *envelope) string {
	if v := header.Get("Authorization"); v != "" {
		return strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
	}
	if v := header.Get("X-Auth-Token"); v != "" {
		return v
	}
	if env == nil {
		return ""
	}
	if env.Token != "" {
		return env.Token
	}
	if len(env.Data) > 0 {
		var nested struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(env.Data, &nested); err == nil && nested.Token != "" {
			return nested.Token
		}
	}
	return ""
}

// userFrom returns the profile carried by the envelope, preferring the user
// field and falling back to data.
func userFrom(env *envelope) *User {
	if env.User != nil {
		return env.User
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	var u User
	if err := json.Unmarshal(env.Data, &u); err != nil {
		return nil
	}
	if u.ID == "" && u.Email == "" && u.Name == "" && len(u.Extra) == 0 {
		return nil
	}
	return &u
}

// hasPayload reports whether the envelope carries a profile or data
// payload; a success without one does not count as an authenticated
// session.
func hasPayload(env *envelope) bool {
	if env.User != nil {
		return true
	}
	d := string(env.Data)
	return len(env.Data) > 0 && d != "null" && d != `""` && d != "{}" && d != "false"
}
