package service

// # Error Codes Reference
//
// errors.go turns technical errors into user-facing messages with a code that
// can be quoted to support. Known sentinel errors are matched first with
// errors.Is, then the error text is matched against the pattern table.
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid pattern: a Matches rule carries a regular expression that does not compile
//	VAL002 - Batch too large: more rows than Validation.MaxRows
//	VAL003 - Invalid request: the request body could not be decoded
//
// # Rule Errors (RULE001-RULE099)
//
//	RULE001 - Rule not found
//	RULE002 - Invalid rule definition
//	RULE003 - Rule storage not configured
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE003 - Invalid header
//	FILE004 - No file provided
//	FILE005 - Empty file
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused
//	DB002 - Connection reset
//	DB003 - Duplicate key
//
// # System Errors (SYS001-SYS099)
//
//	SYS001 - Busy: all validation slots taken
//	SYS002 - Request cancelled
//	SYS003 - Request timed out
//	SYS004 - Rate limited
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/dataquality/internal/ingest"
	"github.com/JonMunkholm/dataquality/internal/quality"
	"github.com/JonMunkholm/dataquality/internal/rules"
)

var (
	// ErrBatchTooLarge is returned when a batch exceeds the configured row limit.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrInvalidRequest marks request bodies that could not be decoded.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoRuleStore is returned by rule CRUD when no database is configured.
	ErrNoRuleStore = errors.New("rule storage not configured")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
	Status  int    // HTTP status for the transport layer
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages are checked in order with errors.Is.
var sentinelMessages = []sentinelMessage{
	{quality.ErrInvalidPattern, UserMessage{
		Message: "A validation rule has an invalid pattern",
		Action:  "Fix the regular expression of the Matches rule",
		Code:    "VAL001",
		Status:  http.StatusBadRequest,
	}},
	{ErrBatchTooLarge, UserMessage{
		Message: "Too many rows in one request",
		Action:  "Split the data into smaller batches",
		Code:    "VAL002",
		Status:  http.StatusRequestEntityTooLarge,
	}},
	{ErrInvalidRequest, UserMessage{
		Message: "The request could not be read",
		Action:  "Check that the body is valid JSON in the documented shape",
		Code:    "VAL003",
		Status:  http.StatusBadRequest,
	}},
	{rules.ErrRuleNotFound, UserMessage{
		Message: "Validation rule not found",
		Action:  "Check the rule ID",
		Code:    "RULE001",
		Status:  http.StatusNotFound,
	}},
	{rules.ErrInvalidRule, UserMessage{
		Message: "The rule definition is invalid",
		Action:  "Check the rule name, field, operator and value",
		Code:    "RULE002",
		Status:  http.StatusBadRequest,
	}},
	{ErrNoRuleStore, UserMessage{
		Message: "Rule storage is not configured",
		Action:  "Set DATABASE_URL to manage rules",
		Code:    "RULE003",
		Status:  http.StatusNotImplemented,
	}},
	{ingest.ErrInvalidHeader, UserMessage{
		Message: "The CSV header is invalid",
		Action:  "Give every column a unique, non-empty name",
		Code:    "FILE003",
		Status:  http.StatusBadRequest,
	}},
	{ingest.ErrEmptyFile, UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a CSV file with a header row",
		Code:    "FILE005",
		Status:  http.StatusBadRequest,
	}},
	{ingest.ErrTooManyRows, UserMessage{
		Message: "Too many rows in one request",
		Action:  "Split the data into smaller batches",
		Code:    "VAL002",
		Status:  http.StatusRequestEntityTooLarge,
	}},
	{ErrTooManyValidations, UserMessage{
		Message: "System is busy validating other batches",
		Action:  "Please wait a moment and try again",
		Code:    "SYS001",
		Status:  http.StatusServiceUnavailable,
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "SYS002",
		Status:  499,
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller batch or try again later",
		Code:    "SYS003",
		Status:  http.StatusGatewayTimeout,
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively with strings.Contains after
// no sentinel matched. The first match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
			Status:  http.StatusRequestEntityTooLarge,
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "FILE002",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A rule with this ID already exists",
			Action:  "Retry the request to get a new ID",
			Code:    "DB003",
			Status:  http.StatusConflict,
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "SYS004",
			Status:  http.StatusTooManyRequests,
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts a technical error to a user-friendly message.
// Returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
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

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
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
