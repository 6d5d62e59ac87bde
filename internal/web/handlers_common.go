package web

// handlers_common.go contains response helpers and the service-level
// handlers shared by the API and the page.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/ingest/internal/config"
	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/web/templates"
)

// healthTimeout bounds the store ping of /healthz.
const healthTimeout = 2 * time.Second

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// writeError writes a JSON error response for failures detected by the web
// layer itself.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "error", err)
	}
}

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := templates.UploadPage(templates.UploadPageParams{
		MaxFileSize:   sizeLabel(s.cfg.Ingest.MaxFileSize),
		Quota:         sizeLabel(s.cfg.Ingest.QuotaBytes),
		MaxZipEntries: s.cfg.Ingest.MaxZipEntries,
		Fixity:        s.cfg.Ingest.FixityAlgorithm,
		RequireAPIKey: s.cfg.Security.RequireAPIKey,
	}).Render(r.Context(), w)
	if err != nil {
		slog.Warn("render upload page", "error", err)
	}
}

func sizeLabel(b config.ByteSize) string {
	if b <= 0 {
		return "unlimited"
	}
	return b.String()
}

// handleHealth reports whether the service and its store are reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"upload_queue": s.service.UploadLimiterStatus(),
	})
}

// handleUploadQueueStatus returns the current state of the upload limiter.
// Used for monitoring and to check if the system can accept more uploads.
func (s *Server) handleUploadQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.UploadLimiterStatus())
}

// handleQuota reports the caller's storage usage.
func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.QuotaStatus(r.Context(), core.GetOwnerFromContext(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
