package httpapi

import "net/http"

// AuthConfig is a static API-key allow-list. Read-only requests (GET, HEAD,
// OPTIONS) always pass; every other method requires a valid X-API-KEY.
type AuthConfig struct {
	keys    map[string]struct{}
	enabled bool
}

// NewAuthConfig builds an AuthConfig from an allow-list of keys. An empty
// list disables authentication entirely.
func NewAuthConfig(keys []string) AuthConfig {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return AuthConfig{keys: set, enabled: len(set) > 0}
}

// Enabled reports whether any keys are configured.
func (c AuthConfig) Enabled() bool { return c.enabled }

func (c AuthConfig) valid(key string) bool {
	_, ok := c.keys[key]
	return ok
}

// WriteProtect returns middleware requiring a valid X-API-KEY header on
// mutating methods; GET/HEAD/OPTIONS always pass through.
func WriteProtect(config AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.enabled {
				next.ServeHTTP(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-KEY")
			if key == "" || !config.valid(key) {
				writeError(w, http.StatusUnauthorized, "invalid or missing X-API-KEY")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
