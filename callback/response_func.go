package callback

import (
	"html/template"
	"net/http"

	"github.com/anoano/portal/flow"
)

// SuccessResponseFunc is used to create the http response when a code
// exchange succeeded.  The outcome carries the authenticated user (when the
// backend reported one) and the landing route to navigate to.
type SuccessResponseFunc func(outcome *flow.Outcome, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used to create the http response for a terminal
// callback error.  The message is already user-visible text.
type ErrorResponseFunc func(message string, w http.ResponseWriter, req *http.Request)

// LogoutResponseFunc is used to create the http response when a
// parameterless callback completed an in-flight logout.  The browser's
// cookies have already been expired when it runs.
type LogoutResponseFunc func(outcome *flow.Outcome, w http.ResponseWriter, req *http.Request)

// DefaultSuccessResponse redirects to the outcome's landing route, which
// also strips the code and state from the browser's URL.
func DefaultSuccessResponse(outcome *flow.Outcome, w http.ResponseWriter, req *http.Request) {
	http.Redirect(w, req, outcome.RedirectTo, http.StatusFound)
}

// DefaultLogoutResponse redirects to the outcome's login route.
func DefaultLogoutResponse(outcome *flow.Outcome, w http.ResponseWriter, req *http.Request) {
	http.Redirect(w, req, outcome.RedirectTo, http.StatusFound)
}

var errorPageTemplate = template.Must(template.New("callback-error").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign-in problem</title></head>
<body>
<h1>Sign-in problem</h1>
<p>{{.Message}}</p>
<p><a href="{{.LoginURL}}">Back to sign-in</a></p>
<p><a href="{{.RestartURL}}">Try signing in again</a></p>
</body>
</html>
`))

// ErrorResponse returns an ErrorResponseFunc rendering the terminal error
// page with its two actions: return to the login entry, or restart the
// login flow.
func ErrorResponse(loginURL, restartURL string) ErrorResponseFunc {
	return func(message string, w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_ = errorPageTemplate.Execute(w, map[string]string{
			"Message":    message,
			"LoginURL":   loginURL,
			"RestartURL": restartURL,
		})
	}
}
