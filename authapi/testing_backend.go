package authapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// TestBackend is a local server standing in for the backend auth API and
// the IdP it fronts, which makes writing tests for the portal's auth
// lifecycle much easier.  It implements every /api/auth endpoint plus the
// IdP's authorization and end-session endpoints.
type TestBackend struct {
	httpServer *httptest.Server

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	mu               sync.Mutex
	clientID         string
	expectedAuthCode string
	authenticated    bool
	replyUser        map[string]interface{}
	tokenPlacement   TokenPlacement
	checkFailStatus  int
	loginURLReply    string
	haveLoginReply   bool
	lastLoginQuery   url.Values
	callbackCount    int
	logoutCount      int

	t *testing.T
}

// TokenPlacement says where the TestBackend puts the minted token on a
// callback response.  Cookie-session backends return none at all.
type TokenPlacement int

const (
	TokenInBody TokenPlacement = iota
	TokenInHeader
	TokenOmitted
)

// StartTestBackend creates a disposable TestBackend.
func StartTestBackend(t *testing.T) *TestBackend {
	t.Helper()

	b := &TestBackend{
		t:                t,
		clientID:         "portal-test",
		expectedAuthCode: "test-code",
		replyUser: map[string]interface{}{
			"id":    "u_1",
			"email": "alice@example.com",
			"name":  "Alice Example",
		},
	}
	b.ecdsaPublicKey, b.ecdsaPrivateKey = TestGenerateKeys(t)
	b.httpServer = httptest.NewServer(b)
	t.Cleanup(b.httpServer.Close)
	return b
}

// Stop stops the running TestBackend.
func (b *TestBackend) Stop() {
	b.httpServer.Close()
}

// Addr returns the backend's base URL.
func (b *TestBackend) Addr() string {
	return b.httpServer.URL
}

// SetExpectedAuthCode configures the only authorization code /callback will
// accept.
func (b *TestBackend) SetExpectedAuthCode(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expectedAuthCode = code
}

// SetAuthenticated flips whether /check and /user/me see a session.
func (b *TestBackend) SetAuthenticated(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authenticated = v
}

// SetReplyUser configures the profile returned for the authenticated
// principal.
func (b *TestBackend) SetReplyUser(u map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replyUser = u
}

// SetTokenPlacement configures where callback responses carry the token.
func (b *TestBackend) SetTokenPlacement(p TokenPlacement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenPlacement = p
}

// SetCheckFailStatus makes /check answer the given 5xx status, simulating a
// backend outage.  Zero restores normal behavior.
func (b *TestBackend) SetCheckFailStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkFailStatus = status
}

// SetLoginURLReply overrides the message returned by /login-url, for
// exercising invalid-authorization-URL handling.
func (b *TestBackend) SetLoginURLReply(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginURLReply = message
	b.haveLoginReply = true
}

// CallbackCount reports how many code exchanges the backend performed.
func (b *TestBackend) CallbackCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callbackCount
}

// LastLoginQuery returns the query string of the most recent /login-url
// request.
func (b *TestBackend) LastLoginQuery() url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastLoginQuery
}

// LogoutCount reports how many backend logouts were requested.
func (b *TestBackend) LogoutCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logoutCount
}

// SigningKeys returns the test backend's pem-encoded keys.
func (b *TestBackend) SigningKeys() (pub, priv string) {
	return b.ecdsaPublicKey, b.ecdsaPrivateKey
}

// ServeHTTP implements the backend auth API and the fake IdP endpoints.
func (b *TestBackend) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch req.URL.Path {
	case PathLoginURL:
		b.serveLoginURL(w, req)
	case PathCallback:
		b.serveCallback(w, req)
	case PathCheck:
		b.serveCheck(w, req)
	case PathUserMe:
		b.serveUserMe(w, req)
	case PathGetLogout:
		b.serveGetLogout(w, req)
	case PathLogout:
		b.serveLogout(w, req)
	case PathHealth:
		b.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "OK",
		})
	case "/auth", "/session/end":
		// the fake IdP's endpoints exist so returned URLs resolve; tests
		// drive the flow directly instead of navigating a browser here
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *TestBackend) serveLoginURL(w http.ResponseWriter, req *http.Request) {
	b.lastLoginQuery = req.URL.Query()
	if b.haveLoginReply {
		b.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": b.loginURLReply,
		})
		return
	}
	q := req.URL.Query()
	cfg := oauth2.Config{
		ClientID:    b.clientID,
		RedirectURL: q.Get("redirectUri"),
		Endpoint: oauth2.Endpoint{
			AuthURL: b.httpServer.URL + "/auth",
		},
		Scopes: []string{"openid"},
	}
	var authCodeOpts []oauth2.AuthCodeOption
	if p := q.Get("prompt"); p != "" {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("prompt", p))
	}
	b.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": cfg.AuthCodeURL(q.Get("state"), authCodeOpts...),
	})
}

func (b *TestBackend) serveCallback(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Code        string `json:"code"`
		State       string `json:"state"`
		RedirectURI string `json:"redirectUri"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Code == "" {
		b.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Missing authorization code",
		})
		return
	}
	if body.Code != b.expectedAuthCode {
		b.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"message": "Authentication failed",
		})
		return
	}
	b.callbackCount++
	b.authenticated = true

	reply := map[string]interface{}{
		"success": true,
		"message": "Authenticated",
		"user":    b.replyUser,
	}
	switch b.tokenPlacement {
	case TokenInBody:
		reply["token"] = b.mintToken()
	case TokenInHeader:
		w.Header().Set("X-Auth-Token", b.mintToken())
	case TokenOmitted:
	}
	b.writeJSON(w, http.StatusOK, reply)
}

func (b *TestBackend) serveCheck(w http.ResponseWriter, req *http.Request) {
	if b.checkFailStatus != 0 {
		b.writeJSON(w, b.checkFailStatus, map[string]interface{}{
			"success": false,
			"message": "Internal server error",
		})
		return
	}
	if !b.authenticated {
		b.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "Not authenticated",
		})
		return
	}
	b.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    b.replyUser,
	})
}

func (b *TestBackend) serveUserMe(w http.ResponseWriter, req *http.Request) {
	if !b.authenticated {
		b.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"message": "Not authenticated",
		})
		return
	}
	b.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    b.replyUser,
	})
}

func (b *TestBackend) serveGetLogout(w http.ResponseWriter, req *http.Request) {
	hint := TestDefaultJWT(b.t, b.ecdsaPrivateKey, b.httpServer.URL, "u_1", time.Hour)
	// the real backend embeds client_id; the client must strip it
	b.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": b.httpServer.URL + "/session/end?client_id=" + b.clientID + "&id_token_hint=" + hint,
	})
}

func (b *TestBackend) serveLogout(w http.ResponseWriter, req *http.Request) {
	b.logoutCount++
	b.authenticated = false
	b.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out",
	})
}

func (b *TestBackend) mintToken() string {
	return TestDefaultJWT(b.t, b.ecdsaPrivateKey, b.httpServer.URL, "u_1", time.Hour)
}

func (b *TestBackend) writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		b.t.Errorf("testing backend: unable to encode reply: %v", err)
	}
}
