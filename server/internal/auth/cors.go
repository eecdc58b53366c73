package auth

import (
	"net/http"
	"strings"
	"sync"
)

// CORS answers cross-origin requests from an allow-list of origins.
// Credentials are allowed, so origins are echoed rather than wildcarded.
type CORS struct {
	mu      sync.RWMutex
	origins map[string]struct{}
}

// NewCORS returns a CORS middleware allowing origins.
func NewCORS(origins []string) *CORS {
	c := &CORS{}
	c.SetOrigins(origins)
	return c
}

// SetOrigins replaces the allow-list. Trailing slashes are ignored.
func (c *CORS) SetOrigins(origins []string) {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	c.mu.Lock()
	c.origins = set
	c.mu.Unlock()
}

// Allowed reports whether origin is on the allow-list.
func (c *CORS) Allowed(origin string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.origins[origin]
	return ok
}

// Wrap returns next with CORS headers applied. Preflight requests from
// allowed origins are answered with 204 and never reach next.
func (c *CORS) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !c.Allowed(origin) {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
