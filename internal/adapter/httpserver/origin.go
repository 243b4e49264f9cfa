package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
)

// NewCheckOrigin returns the websocket origin policy. Empty origins (non-browser
// clients) and the configured origins are allowed; in development any
// localhost origin is allowed too.
func NewCheckOrigin(allowed []string, isDevelopment bool) func(r *http.Request) bool {
	origins := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if o := extractOrigin(a); o != "" {
			origins = append(origins, o)
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if origin == "" {
			return true
		}
		if slices.Contains(origins, origin) {
			return true
		}
		if isDevelopment && isLocalhostOrigin(origin) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
