package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// parseOrigins splits a comma-separated allow-list, trimming whitespace and
// trailing slashes.
func parseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// allowOrigin admits requests without an Origin header, anything when the
// list holds "*", and exact matches otherwise.
func allowOrigin(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	origin = strings.TrimSuffix(origin, "/")
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func newUpgrader(cfg *Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if !allowOrigin(cfg.allowed, origin) {
				logf(cfg, "CORS: BLOCK %q from %s", origin, realIP(r))
				return false
			}
			if origin != "" {
				logf(cfg, "CORS: OK %q", origin)
			}
			return true
		},
	}
}
