package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference. Users quote the code; support staff look it up here.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: the upload or a produced file exceeds the size limit
//	          Source: ingest.KindFileTooLarge
//	FILE002 - Invalid request: the request is malformed
//	          Source: ingest.KindInvalidRequest, "unsupported checksum type"
//	FILE003 - Package rejected: a BagIt package failed verification
//	          Source: ingest.KindPackage
//	FILE004 - Shapefile unreadable: a shapefile set could not be repackaged
//	          Source: ingest.KindShapefile
//	FILE005 - No file: the multipart request carries no file
//	          Source: "no file provided"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Storage failure: the upload could not be staged or stored
//	         Source: ingest.KindStaging, ingest.KindScratchUnconfigured
//	UPL002 - System busy: all upload slots are taken
//	         Source: ErrTooManyUploads
//	UPL003 - Not found: the ingestion id is unknown
//	         Source: store.ErrNotFound
//	UPL004 - Request cancelled
//	         Source: context.Canceled
//	UPL005 - Request timeout
//	         Source: context.DeadlineExceeded
//
// # Quota Errors (QUOTA001-QUOTA099)
//
//	QUOTA001 - Quota unavailable: the owner's usage could not be read
//	           Source: ErrQuotaUnavailable
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused       Patterns: "connection refused"
//	DB002 - Connection reset         Patterns: "connection reset"
//	DB003 - Record not saved         Source: ErrPersist
//
// # Access Errors (AUTH001, RATE001)
//
//	AUTH001 - Missing or invalid API key   Source: ErrUnauthorized
//	RATE001 - Too many requests            Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original
// technical error when users report ERR000.
//
// Typed matches (error kinds and sentinels, via errors.As and errors.Is) are
// tried first. Only then are the string patterns matched, case-insensitively,
// first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/ingest/internal/ingest"
	"github.com/JonMunkholm/ingest/internal/store"
)

// ErrUnauthorized is returned when a request lacks a valid API key.
var ErrUnauthorized = errors.New("missing or invalid api key")

// ErrQuotaUnavailable wraps failures to read an owner's quota usage.
var ErrQuotaUnavailable = errors.New("quota unavailable")

// ErrPersist wraps failures to save an ingestion record.
var ErrPersist = errors.New("save ingestion")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Upload a smaller file or split the archive",
		Code:    "FILE001",
	}
	msgInvalidRequest = UserMessage{
		Message: "The upload request is invalid",
		Action:  "Check the file name, content type and checksum fields",
		Code:    "FILE002",
	}
	msgPackage = UserMessage{
		Message: "The package failed verification",
		Action:  "Check that every payload file is listed in the manifest with a matching checksum",
		Code:    "FILE003",
	}
	msgShapefile = UserMessage{
		Message: "The shapefile set could not be processed",
		Action:  "Re-create the zip archive and upload it again",
		Code:    "FILE004",
	}
	msgStorage = UserMessage{
		Message: "The upload could not be stored",
		Action:  "Please try again in a few moments",
		Code:    "UPL001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgNotFound = UserMessage{
		Message: "Ingestion not found",
		Action:  "Check the ingestion id",
		Code:    "UPL003",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller file or check your connection",
		Code:    "UPL005",
	}
	msgQuota = UserMessage{
		Message: "Storage quota could not be determined",
		Action:  "Please try again in a few moments",
		Code:    "QUOTA001",
	}
	msgPersist = UserMessage{
		Message: "The ingestion record could not be saved",
		Action:  "Please try again",
		Code:    "DB003",
	}
	msgUnauthorized = UserMessage{
		Message: "Missing or invalid API key",
		Action:  "Send a valid key in the X-API-Key header",
		Code:    "AUTH001",
	}
)

// kindMessages maps pipeline error kinds to user messages.
var kindMessages = map[ingest.ErrorKind]UserMessage{
	ingest.KindFileTooLarge:        msgFileTooLarge,
	ingest.KindInvalidRequest:      msgInvalidRequest,
	ingest.KindPackage:             msgPackage,
	ingest.KindShapefile:           msgShapefile,
	ingest.KindStaging:             msgStorage,
	ingest.KindScratchUnconfigured: msgStorage,
}

// sentinelMessages is checked in order with errors.Is. Service sentinels
// come before context errors, which they may wrap.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrTooManyUploads, msgBusy},
	{ErrUnauthorized, msgUnauthorized},
	{ErrQuotaUnavailable, msgQuota},
	{ErrPersist, msgPersist},
	{store.ErrNotFound, msgNotFound},
	{context.DeadlineExceeded, msgTimeout},
	{context.Canceled, msgCancelled},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages for errors that carry no type.
var errorPatterns = []errorPattern{
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE005",
		},
	},
	{pattern: "unsupported checksum type", msg: msgInvalidRequest},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(ErrTooManyUploads)
//	// msg.Code == "UPL002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ee *ingest.ExecutionError
	if errors.As(err, &ee) {
		if msg, ok := kindMessages[ee.Kind]; ok {
			return msg
		}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
