package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Error is mapped via core.MapError to a user-friendly message and code
//  4. The code selects the HTTP status
//  5. Technical error + context is logged with the request id
//  6. User message is rendered as JSON, or as an HTML fragment for pages

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/logging"
	"github.com/JonMunkholm/ingest/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// codeStatus maps error codes to HTTP statuses. Unlisted codes are 500.
var codeStatus = map[string]int{
	"FILE001":  http.StatusRequestEntityTooLarge,
	"FILE002":  http.StatusBadRequest,
	"FILE003":  http.StatusUnprocessableEntity,
	"FILE004":  http.StatusUnprocessableEntity,
	"FILE005":  http.StatusBadRequest,
	"UPL002":   http.StatusServiceUnavailable,
	"UPL003":   http.StatusNotFound,
	"UPL004":   http.StatusBadRequest,
	"UPL005":   http.StatusGatewayTimeout,
	"QUOTA001": http.StatusServiceUnavailable,
	"DB001":    http.StatusServiceUnavailable,
	"DB002":    http.StatusServiceUnavailable,
	"AUTH001":  http.StatusUnauthorized,
	"RATE001":  http.StatusTooManyRequests,
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	if status, ok := codeStatus[core.MapError(err).Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error server-side and returns the user
// message in the format the client expects.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := core.MapError(err)
	status := StatusFor(err)

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= 500 {
		log.Error("request error", args...)
	} else {
		log.Warn("request error", args...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, status)
		return
	}
	respondErrorHTML(r, w, userMsg, status)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondErrorHTML renders the error alert fragment.
func respondErrorHTML(r *http.Request, w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
