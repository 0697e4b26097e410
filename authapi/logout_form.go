package authapi

import (
	"bytes"
	"fmt"
	"html/template"
)

// logoutFormTemplate is the page that performs the browser-level form POST
// to the IdP's end-session endpoint.  Ending the IdP's own browser session
// requires a true top-level navigation, which an XHR cannot provide, so the
// portal answers the logout action with this self-submitting form instead.
var logoutFormTemplate = template.Must(template.New("logout-form").Parse(`<!DOCTYPE html>
<html>
<head><title>Signing out…</title></head>
<body onload="document.forms[0].submit()">
<form id="logout" method="POST" action="{{.Action}}" style="display:none">
<input type="hidden" name="id_token_hint" value="{{.IDTokenHint}}">
<input type="hidden" name="post_logout_redirect_uri" value="{{.PostLogoutRedirectURI}}">
</form>
<noscript><p>Continue signing out by submitting the form.</p><button type="submit" form="logout">Sign out</button></noscript>
</body>
</html>
`))

// LogoutForm renders the self-submitting form that POSTs exactly
// id_token_hint and post_logout_redirect_uri to the end-session endpoint.
func LogoutForm(target *LogoutTarget, postLogoutRedirectURI string) ([]byte, error) {
	const op = "authapi.LogoutForm"
	if target == nil {
		return nil, fmt.Errorf("%s: logout target is nil: %w", op, ErrNilParameter)
	}
	if target.EndSessionURL == "" || target.IDTokenHint == "" {
		return nil, fmt.Errorf("%s: logout target is incomplete: %w", op, ErrInvalidParameter)
	}
	if postLogoutRedirectURI == "" {
		return nil, fmt.Errorf("%s: post logout redirect URI is empty: %w", op, ErrInvalidParameter)
	}
	var buf bytes.Buffer
	err := logoutFormTemplate.Execute(&buf, map[string]string{
		"Action":                target.EndSessionURL,
		"IDTokenHint":           target.IDTokenHint,
		"PostLogoutRedirectURI": postLogoutRedirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: unable to render logout form: %w", op, err)
	}
	return buf.Bytes(), nil
}
