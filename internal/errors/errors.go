package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigNotFound indicates no settings file was found at the project root
	ConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	// ConfigInvalid indicates the settings file failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// StoreOpenFailed indicates the graph database could not be opened
	StoreOpenFailed ErrorCode = "STORE_OPEN_FAILED"
	// MigrationFailed indicates a schema migration did not complete
	MigrationFailed ErrorCode = "MIGRATION_FAILED"
	// LedgerCorrupt indicates the locus ledger is unreadable or inconsistent
	LedgerCorrupt ErrorCode = "LEDGER_CORRUPT"
	// EmbedderUnavailable indicates no embedding provider answered
	EmbedderUnavailable ErrorCode = "EMBEDDER_UNAVAILABLE"
	// SourceUnreadable indicates a configured source path cannot be read
	SourceUnreadable ErrorCode = "SOURCE_UNREADABLE"
	// ParseFailed indicates a document could not be segmented
	ParseFailed ErrorCode = "PARSE_FAILED"
	// ValidationFailed indicates post-ingest checks found hard errors
	ValidationFailed ErrorCode = "VALIDATION_FAILED"
	// DaemonNotRunning indicates no embedding daemon answered on the loopback port
	DaemonNotRunning ErrorCode = "DAEMON_NOT_RUNNING"
	// AuthFailed indicates a daemon request carried a missing or bad token
	AuthFailed ErrorCode = "AUTH_FAILED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Command     string `json:"command,omitempty"`
	Description string `json:"description,omitempty"`
	Safe        bool   `json:"safe,omitempty"`
}

// PolyvisError represents a polyvis error with code, message, and suggestions
type PolyvisError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a PolyvisError without an underlying cause.
func New(code ErrorCode, message string) *PolyvisError {
	return &PolyvisError{
		Code:           code,
		Message:        message,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Wrap creates a PolyvisError around an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *PolyvisError {
	return &PolyvisError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *PolyvisError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *PolyvisError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *PolyvisError) WithDetails(details interface{}) *PolyvisError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ConfigNotFound: {
		{
			Command:     "polyvis init",
			Safe:        true,
			Description: "Write a default polyvis.settings.json in the current directory",
		},
	},
	EmbedderUnavailable: {
		{
			Command:     "polyvis daemon start",
			Safe:        true,
			Description: "Start the local embedding daemon",
		},
		{
			Command:     "polyvis status",
			Safe:        true,
			Description: "Check which embedding providers are reachable",
		},
	},
	DaemonNotRunning: {
		{
			Command:     "polyvis daemon start",
			Safe:        true,
			Description: "Start the embedding daemon",
		},
	},
	ValidationFailed: {
		{
			Command:     "polyvis validate --format json",
			Safe:        true,
			Description: "Show the full validation report",
		},
	},
	StoreOpenFailed: {
		{
			Command:     "polyvis status",
			Safe:        true,
			Description: "Check database path and permissions",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
