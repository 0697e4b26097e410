// Package cookies provides a best-effort wipe of browser cookies for the
// requesting host.  The wipe is an enumeration-then-expire routine: every
// cookie presented on the request is expired three times, once for the root
// path, once for the host domain, and once for the parent domain, so that
// backend-set cookies are removed regardless of which scope set them.
package cookies

import (
	"net"
	"net/http"
	"strings"
	"time"
)

var epoch = time.Unix(0, 0)

// ExpireAll writes expired Set-Cookie headers for every cookie on req.  Each
// cookie is expired for the root path, the request's host domain, and the
// host's parent domain.
func ExpireAll(w http.ResponseWriter, req *http.Request) {
	host := requestHost(req)
	parent := parentDomain(host)
	for _, c := range req.Cookies() {
		expire(w, c.Name, "")
		if host != "" {
			expire(w, c.Name, host)
		}
		if parent != "" {
			expire(w, c.Name, parent)
		}
	}
}

func expire(w http.ResponseWriter, name, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    "/",
		Domain:  domain,
		Expires: epoch,
		MaxAge:  -1,
	})
}

func requestHost(req *http.Request) string {
	host := req.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host
}

// parentDomain returns the dot-prefixed domain covering the host and its
// subdomains.  Bare hosts and IP addresses have no such scope.
func parentDomain(host string) string {
	if net.ParseIP(host) != nil {
		return ""
	}
	if !strings.Contains(host, ".") {
		return ""
	}
	return "." + host
}
