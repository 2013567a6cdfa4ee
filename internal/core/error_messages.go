// Package core error catalog.
//
// # Error Codes Reference
//
// Users quote these codes to support. Codes are grouped by category:
//
// # Recipient Errors (REC001-REC099)
//
//	REC001 - Invalid email: address is not local@domain.tld
//	         Patterns: "invalid email format"
//	REC002 - Missing email: a row has no email address
//	         Patterns: "email address is missing"
//	REC003 - Stale list: removal index no longer exists
//	         Patterns: "recipient index out of range"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large           Patterns: "file too large", "request body too large"
//	FILE002 - Invalid CSV              Patterns: "invalid csv"
//	FILE003 - Encoding error           Patterns: "encoding error"
//	FILE004 - No file                  Patterns: "no file provided"
//	FILE005 - Empty file               Patterns: "empty file"
//	FILE006 - Wrong file type          Patterns: "only .csv files"
//
// # Campaign Errors (CMP001-CMP099)
//
//	CMP001 - No recipients             Patterns: "please add at least one recipient"
//	CMP002 - Subject/message blank     Patterns: "please fill out the subject and message"
//	CMP003 - Send already running      Patterns: "already in progress"
//	CMP004 - System busy               Patterns: "too many sends"
//	CMP005 - Unknown template          Patterns: "template not found"
//	CMP006 - Incomplete API request    Patterns: "missing required campaign data"
//	CMP007 - Bad Liquid placeholder    Patterns: "broken placeholder"
//
// # Mail Transport Errors (MAIL001-MAIL099)
//
//	MAIL001 - Provider rejected credentials  Patterns: "authentication", "unauthorized", "535"
//	MAIL002 - Provider unreachable           Patterns: "connection refused", "no such host"
//	MAIL003 - Provider timed out             Patterns: "timeout", "deadline exceeded"
//	MAIL004 - Provider refused the messages  Patterns: "rejected"
//	MAIL005 - Any other transport failure    Patterns: "mail transport"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests        Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches; check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgInvalidEmail = UserMessage{"Invalid email format", "Use the form name@example.com", "REC001"}
	msgMissingEmail = UserMessage{"Email address is missing", "Fill in the email column for every row", "REC002"}
	msgStaleIndex   = UserMessage{"That recipient no longer exists", "Refresh the list and try again", "REC003"}

	msgFileTooLarge = UserMessage{"File exceeds the maximum upload size", "Split the file into smaller chunks", "FILE001"}
	msgInvalidCSV   = UserMessage{"File is not a valid CSV", "Check quoting and save the file as comma-separated values", "FILE002"}
	msgEncoding     = UserMessage{"File contains invalid characters", "Save the file as UTF-8", "FILE003"}
	msgNoFile       = UserMessage{"No file was selected", "Please select a CSV file to upload", "FILE004"}
	msgEmptyFile    = UserMessage{"The uploaded file is empty", "Upload a CSV with an email header and data rows", "FILE005"}
	msgNotCSV       = UserMessage{"Only .csv files are accepted", "Export your list as CSV and try again", "FILE006"}

	msgNoRecipients   = UserMessage{"Please add at least one recipient.", "Upload a CSV or add a recipient manually", "CMP001"}
	msgBlankFields    = UserMessage{"Please fill out the subject and message fields.", "Enter a subject and a message, or pick a template", "CMP002"}
	msgSendRunning    = UserMessage{"A campaign is already being sent", "Wait for the current send to finish", "CMP003"}
	msgTooManySends   = UserMessage{"System is busy sending other campaigns", "Please wait a moment and try again", "CMP004"}
	msgNoTemplate     = UserMessage{"Template not found", "Pick one of the listed templates", "CMP005"}
	msgMissingPayload = UserMessage{"Missing required campaign data.", "Send subject, message and a non-empty recipients list", "CMP006"}
	msgBadPlaceholder = UserMessage{"Subject or message contains a broken placeholder.", "Use {{ first_name }}, {{ last_name }}, {{ name }} or {{ email }}", "CMP007"}

	msgMailAuth        = UserMessage{"The mail provider rejected our credentials", "Check the mail account settings", "MAIL001"}
	msgMailUnreachable = UserMessage{"Unable to reach the mail provider", "Please try again in a few moments", "MAIL002"}
	msgMailTimeout     = UserMessage{"The mail provider timed out", "Try again; nothing was retried automatically", "MAIL003"}
	msgMailRejected    = UserMessage{"The mail provider refused the messages", "Check the sender address and recipient list", "MAIL004"}
	msgMailFailed      = UserMessage{"Sending failed", "Please try again or contact support", "MAIL005"}
)

// errorPatterns is searched in order; the first match wins.
var errorPatterns = []errorPattern{
	// Recipients
	{"invalid email format", msgInvalidEmail},
	{"email address is missing", msgMissingEmail},
	{"recipient index out of range", msgStaleIndex},

	// Files
	{"file too large", msgFileTooLarge},
	{"request body too large", msgFileTooLarge},
	{"empty file", msgEmptyFile},
	{"invalid csv", msgInvalidCSV},
	{"encoding error", msgEncoding},
	{"no file provided", msgNoFile},
	{"only .csv files", msgNotCSV},

	// Campaign
	{"please add at least one recipient", msgNoRecipients},
	{"please fill out the subject and message", msgBlankFields},
	{"already in progress", msgSendRunning},
	{"too many sends", msgTooManySends},
	{"template not found", msgNoTemplate},
	{"missing required campaign data", msgMissingPayload},
	{"broken placeholder", msgBadPlaceholder},

	// Mail transport, specific before general
	{"authentication", msgMailAuth},
	{"unauthorized", msgMailAuth},
	{"535", msgMailAuth},
	{"connection refused", msgMailUnreachable},
	{"no such host", msgMailUnreachable},
	{"timeout", msgMailTimeout},
	{"deadline exceeded", msgMailTimeout},
	{"rejected", msgMailRejected},
	{"mail transport", msgMailFailed},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
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
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	msg := MapError(ErrNoRecipients)
//	// msg.Code == "CMP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
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
//
// Example output: "Invalid email format (Code: REC001). Use the form name@example.com"
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

// UserError pairs a technical error with the message shown for it.
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
//	logger.Error("send failed", "error", ue.Technical)
//	fmt.Println(ue.User.Code)
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
