package rpcserver

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
)

const tokenHeader = "X-TT-Auth"

// loopbackAliases are the only Host header values a request may carry; a
// port suffix is stripped before comparison.
var loopbackAliases = map[string]bool{
	"127.0.0.1": true,
	"localhost": true,
	"::1":       true,
	"[::1]":     true,
}

func validHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return loopbackAliases[host]
}

// validOrigin allows an absent Origin (native, non-browser clients), the
// native app scheme, file:// (WebView loads local files), and any
// additionally trusted origin; an opaque or unrecognized Origin is
// rejected.
func validOrigin(origin string, trusted map[string]bool) bool {
	if origin == "" {
		return true
	}
	if strings.HasPrefix(origin, "tt-app://") || strings.HasPrefix(origin, "file://") {
		return true
	}
	return trusted[origin]
}

func tokenFromRequest(r *http.Request) string {
	if t := r.Header.Get(tokenHeader); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}

// tokensEqual compares in constant time; both inputs are short ephemeral
// hex tokens, but the comparison protects against timing leaks on the 128
// bits that matter for the lifetime of the process.
func tokensEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// withAuth wraps next with the Host/auth checks shared by every route
// except the WS upgrade, which performs its own check before accepting the
// connection so a bad token never reaches a 101 response.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !validHost(r.Host) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if !validOrigin(r.Header.Get("Origin"), s.trustedOrigins) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if !tokensEqual(tokenFromRequest(r), s.token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		next(w, r)
	}
}
