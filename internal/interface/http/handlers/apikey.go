package handlers

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyAuth guards the admin routes. A configured key is either the key
// itself or its bcrypt hash, so deployments can keep only hashes in their
// environment.
type APIKeyAuth struct {
	header     string
	writeError ErrorWriter

	mu   sync.RWMutex
	keys []string
}

// NewAPIKeyAuth reads the key from header. Empty keys are ignored.
func NewAPIKeyAuth(header string, keys []string, writeError ErrorWriter) *APIKeyAuth {
	if writeError == nil {
		writeError = plainError
	}
	a := &APIKeyAuth{header: header, writeError: writeError}
	for _, k := range keys {
		a.AddKey(k)
	}
	return a
}

// AddKey accepts a plain key or a bcrypt hash.
func (a *APIKeyAuth) AddKey(key string) {
	if key == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !slices.Contains(a.keys, key) {
		a.keys = append(a.keys, key)
	}
}

// RemoveKey revokes a key previously passed to AddKey.
func (a *APIKeyAuth) RemoveKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = slices.DeleteFunc(a.keys, func(k string) bool { return k == key })
}

// IsValid compares plain keys in constant time and checks hashes with bcrypt.
// A bcrypt hash presented as the key never matches itself.
func (a *APIKeyAuth) IsValid(key string) bool {
	if key == "" {
		return false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, k := range a.keys {
		if isBcryptHash(k) {
			if bcrypt.CompareHashAndPassword([]byte(k), []byte(key)) == nil {
				return true
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// Middleware answers 401 unless the request carries a valid key.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch key := r.Header.Get(a.header); {
		case key == "":
			a.writeError(w, r, http.StatusUnauthorized, "missing_api_key", "API key is required")
		case !a.IsValid(key):
			a.writeError(w, r, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// HashAPIKey returns the value to configure instead of key.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(hash), err
}

func isBcryptHash(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
