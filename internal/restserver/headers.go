package restserver

import "net/http"

// hopByHopHeaders must never be forwarded from an upstream response to the
// client, per RFC 7230.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// copyNonHopHeaders forwards every header from src to w except the
// hop-by-hop set and anything the caller sets explicitly afterwards.
func copyNonHopHeaders(w http.ResponseWriter, src http.Header) {
	for key, values := range src {
		if _, hop := hopByHopHeaders[http.CanonicalHeaderKey(key)]; hop {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
}
