// Package core provides the business logic for the kids and gifts records service.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Record Errors (REC001-REC099)
//
// Errors raised by the mutation service. These are matched with errors.Is
// before any text pattern is tried:
//
//	REC001 - Not found: The kid or gift does not exist
//	         Action: Check the id and reload the list
//	         Matches: ErrNotFound
//
//	REC002 - Locked: The kid is being changed by another request
//	         Action: Please try again in a moment
//	         Matches: ErrLockTimeout
//
//	REC003 - Too many gifts: A kid can own at most 3 gifts
//	         Action: Remove a gift before adding another
//	         Matches: ErrTooManyGifts
//
//	REC004 - Conflict: The record was changed since it was read
//	         Action: Reload the record and apply your change again
//	         Matches: ErrOptimisticConflict
//
//	VAL000 - Validation: One or more fields are invalid
//	         Action: Correct the listed fields and resubmit
//	         Matches: ValidationErrors
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import busy: Too many uploads in progress
//	         Action: Please wait a moment and try again
//	         Matches: ErrExecutorSaturated
//
//	IMP002 - Import unavailable: The service is shutting down
//	         Action: Please try again later
//	         Matches: ErrExecutorClosed
//
//	IMP003 - Import failed: The file could not be stored or loaded
//	         Action: Check the file format and upload it again
//	         Matches: ErrImportFailed
//
// # Database Errors (DB001-DB099)
//
// Errors related to database operations and constraints:
//
//	DB001 - Duplicate key: A record with this ID already exists
//	        Patterns: "duplicate key"
//
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//
//	DB003 - Foreign key: Referenced record does not exist
//	        Patterns: "foreign key constraint", "violates foreign key"
//
//	DB004 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//
//	DB005 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//
//	DB006 - Timeout: Operation timed out
//	        Patterns: "timeout"
//
//	DB007 - Deadlock: Database was busy with conflicting operations
//	        Patterns: "deadlock", "database is locked"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - Invalid CSV: A line does not have the expected fields
//	          Patterns: "invalid csv"
//
//	FILE004 - No file: No file was selected
//	          Patterns: "no file provided"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled: Request was cancelled
//	         Patterns: "context canceled"
//
//	REQ002 - Request timeout: Request timed out
//	         Patterns: "context deadline exceeded"
//
//	REQ003 - Invalid body: The request body is not valid JSON
//	         Patterns: "invalid request body"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorKind maps a sentinel error to its user message.
type errorKind struct {
	target error
	msg    UserMessage
}

// errorKinds are checked with errors.Is before any text pattern.
var errorKinds = []errorKind{
	{ErrNotFound, UserMessage{
		Message: "The requested record does not exist",
		Action:  "Check the id and reload the list",
		Code:    "REC001",
	}},
	{ErrLockTimeout, UserMessage{
		Message: "The kid is being changed by another request",
		Action:  "Please try again in a moment",
		Code:    "REC002",
	}},
	{ErrTooManyGifts, UserMessage{
		Message: fmt.Sprintf("A kid can own at most %d gifts", MaxGiftsPerKid),
		Action:  "Remove a gift before adding another",
		Code:    "REC003",
	}},
	{ErrOptimisticConflict, UserMessage{
		Message: "The record was changed since it was read",
		Action:  "Reload the record and apply your change again",
		Code:    "REC004",
	}},
	{ErrExecutorSaturated, UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}},
	{ErrExecutorClosed, UserMessage{
		Message: "Imports are not accepted while the service shuts down",
		Action:  "Please try again later",
		Code:    "IMP002",
	}},
}

// validationMessage is returned for ValidationErrors.
var validationMessage = UserMessage{
	Message: "One or more fields are invalid",
	Action:  "Correct the listed fields and resubmit",
	Code:    "VAL000",
}

// importFailedMessage is returned for an *ImportError no pattern explains.
var importFailedMessage = UserMessage{
	Message: "The file could not be imported",
	Action:  "Check the file format and upload it again",
	Code:    "IMP003",
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Patterns are matched using strings.Contains, so partial matches work.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Reload the list and try again",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate key values",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure the kid exists before adding gifts",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure the kid exists before adding gifts",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB007)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE004)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "A line of the file does not have the expected fields",
			Action:  "Use first_name,last_name,birth_date with yyyy-MM-dd dates",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},

	// =========================================================================
	// Request Errors (REQ001-REQ003)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "REQ002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request body is not valid JSON",
			Action:  "Check the request payload",
			Code:    "REQ003",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Sentinel errors of this package are matched first with errors.Is, then
// known text patterns (case-insensitive). If nothing matches, a generic
// fallback message with code ERR000 is returned.
//
// Example:
//
//	err := fmt.Errorf("create gift: %w", ErrTooManyGifts)
//	msg := MapError(err)
//	// msg.Code == "REC003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return validationMessage
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if errors.Is(err, ErrImportFailed) {
		return importFailedMessage
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "A kid can own at most 3 gifts (Code: REC003). Remove a gift before adding another"
//
// This is the primary function for displaying errors to end users.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
// Use this to decide whether to show the raw error or the mapped user message.
//
// Example:
//
//	if IsUserFacing(err) {
//	    showToUser(FormatUserError(err))
//	} else {
//	    log.Error(err) // Log technical error
//	    showToUser("An error occurred. Please try again.")
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// WrapWithUserMessage wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
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

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// The returned UserError preserves the original technical error for logging via Unwrap(),
// while providing a clean user message via Error().
//
// Returns nil if err is nil.
//
// Example:
//
//	ue := NewUserError(err)
//	log.Error(ue.Technical)          // Log original error
//	fmt.Println(ue.Error())           // Show "The record was changed since it was read"
//	fmt.Println(ue.User.Code)         // Show "REC004"
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
