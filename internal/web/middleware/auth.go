package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/ingest/internal/config"
	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/logging"
)

// APIKeyAuth returns middleware that resolves the request owner from the
// X-API-Key header.
//
// With RequireAPIKey off every request runs as core.AnonymousOwner, and a
// valid key still selects its owner. With it on, requests without a valid
// key are rejected with 401.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	owners := cfg.KeyOwners()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, ok := lookupOwner(r.Header.Get("X-API-Key"), owners)
			if !ok && cfg.RequireAPIKey {
				logging.FromContext(r.Context()).Warn("auth: rejected request",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"key_present", r.Header.Get("X-API-Key") != "",
				)
				unauthorized(w)
				return
			}
			if !ok {
				owner = core.AnonymousOwner
			}

			next.ServeHTTP(w, r.WithContext(core.ContextWithOwner(r.Context(), owner)))
		})
	}
}

// lookupOwner finds the owner of key. Every configured key is compared in
// constant time, whichever matches.
func lookupOwner(key string, owners map[string]string) (string, bool) {
	if key == "" {
		return "", false
	}
	var owner string
	found := 0
	for valid, o := range owners {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			owner = o
			found = 1
		}
	}
	return owner, found == 1
}

func unauthorized(w http.ResponseWriter) {
	msg := core.MapError(core.ErrUnauthorized)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `APIKey header="X-API-Key"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   msg.Message,
		"message": msg.Message,
		"action":  msg.Action,
		"code":    msg.Code,
	})
}
