package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
)

// KeyChecker enforces API key authentication on wrapped handlers.
//
// Behaviour:
//   - If mode != "apikey" or key == "", all requests are allowed (pass-through).
//   - Otherwise the value of header must equal key.
//   - A missing, empty, or incorrect key returns 401 with a JSON error body.
//
// The settings can be swapped at runtime with Set.
type KeyChecker struct {
	mu     sync.RWMutex
	mode   string
	header string
	key    string
}

// NewKeyChecker returns a KeyChecker with the given settings.
func NewKeyChecker(mode, header, key string) *KeyChecker {
	k := &KeyChecker{}
	k.Set(mode, header, key)
	return k
}

// Set replaces the mode, header name and expected key.
func (k *KeyChecker) Set(mode, header, key string) {
	k.mu.Lock()
	k.mode, k.header, k.key = mode, header, key
	k.mu.Unlock()
}

// Wrap returns next guarded by the key check.
func (k *KeyChecker) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k.mu.RLock()
		mode, header, key := k.mode, k.header, k.key
		k.mu.RUnlock()

		if mode != "apikey" || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(header)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
			return
		}

		next.ServeHTTP(w, r)
	})
}
