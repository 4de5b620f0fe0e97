// Package network exposes the pet over HTTP and WebSocket: the chat request
// boundary, the pet REST API, activity history, and the realtime hub.
package network

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func jsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}

// SourceIdentity returns the key used to space requests from one caller:
// the client-ip header set by the edge, else the first X-Forwarded-For hop,
// else the remote host.
func SourceIdentity(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("client-ip")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
