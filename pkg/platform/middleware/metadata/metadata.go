package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"renewals/pkg/requestcontext"
)

// ClientMetadata extracts the client IP address and User-Agent from the request
// and adds them to the context, together with a short "browser on OS" label that
// audit log lines carry. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), requestcontext.ClientMetadata{
			IP:        ClientIPFromRequest(r),
			UserAgent: ua,
			Label:     ParseUserAgent(ua),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseUserAgent renders a User-Agent as "Browser on OS".
func ParseUserAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Unknown Client"
	}
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	platform := ua.OS()
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + platform)
}

// ClientIPFromRequest prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote host.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
