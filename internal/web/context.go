package web

import (
	"net"
	"net/http"
)

// requestActor names the caller for rule bookkeeping. RemoteAddr has already
// been rewritten by TrustedRealIP when the request came through a trusted proxy.
func requestActor(r *http.Request) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return "api"
	}
	return "api:" + host
}
