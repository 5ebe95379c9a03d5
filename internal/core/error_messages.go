package core

// # Error Codes Reference
//
// Failures that abort a run are mapped to a user-facing message with a code
// support staff can look up. Row-level data problems never reach this table.
//
//	FILE002 - Invalid file: the source could not be opened or is not tabular
//	          Action: check the path and that the file is XLSX or CSV
//	FILE005 - Empty file: the sheet has no data rows (not an error for runs)
//	VAL007  - Invalid period: year or month out of range
//	LOAD003 - Busy: every load slot of the HTTP trigger is taken
//	DB004   - Connection failed: database unreachable or credentials rejected
//	DB006   - Timeout: the load did not finish within LOAD_TIMEOUT
//	DB008   - Conflict key: no unique constraint matches the conflict key
//	ERR000  - Unknown error
//
// Sentinel errors are checked first with errors.Is; anything else falls
// back to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrRead reports a source file that is missing, unreadable or not tabular.
	ErrRead = errors.New("read source file")

	// ErrNoRows reports a source sheet without data rows.
	ErrNoRows = errors.New("no rows")

	// ErrCommunication reports an unreachable backend, rejected credentials
	// or an expired load timeout.
	ErrCommunication = errors.New("database communication failed")

	// ErrConstraint reports a conflict key with no matching unique
	// constraint on the target table.
	ErrConstraint = errors.New("conflict key does not match a unique constraint")

	// ErrInvalidPeriod reports a reporting year or month out of range.
	ErrInvalidPeriod = errors.New("invalid reporting period")

	// ErrBusy reports that no load slot became free in time.
	ErrBusy = errors.New("too many concurrent loads")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked in order; timeouts come before the generic
// communication failure because they wrap both.
var sentinelMessages = []sentinelMessage{
	{
		err: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "The load timed out",
			Action:  "Try again later or raise LOAD_TIMEOUT",
			Code:    "DB006",
		},
	},
	{
		err: ErrConstraint,
		msg: UserMessage{
			Message: "The target table has no unique constraint for the conflict key",
			Action:  "Run the migrate command to create the despesa_unica index",
			Code:    "DB008",
		},
	},
	{
		err: ErrCommunication,
		msg: UserMessage{
			Message: "Unable to communicate with the database",
			Action:  "Check DATABASE_URL and the credentials, then try again",
			Code:    "DB004",
		},
	},
	{
		err: ErrRead,
		msg: UserMessage{
			Message: "The source file could not be read",
			Action:  "Check the path and that the file is a valid XLSX or CSV",
			Code:    "FILE002",
		},
	},
	{
		err: ErrNoRows,
		msg: UserMessage{
			Message: "The source file has no data rows",
			Action:  "Export the sheet again with at least one row under the header",
			Code:    "FILE005",
		},
	},
	{
		err: ErrInvalidPeriod,
		msg: UserMessage{
			Message: "The reporting period is invalid",
			Action:  "Use a month between 1 and 12 and a four-digit year",
			Code:    "VAL007",
		},
	},
	{
		err: ErrBusy,
		msg: UserMessage{
			Message: "Another load is already running",
			Action:  "Wait for it to finish and try again",
			Code:    "LOAD003",
		},
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "password authentication failed",
		msg: UserMessage{
			Message: "The database rejected the credentials",
			Action:  "Check the user and password in DATABASE_URL",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "The source file could not be read",
			Action:  "Check the path of the source file",
			Code:    "FILE002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for details",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the default message for nil or unrecognized errors.
func MapError(err error) UserMessage {
	if err == nil {
		return defaultMessage
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errLower := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errLower, p.pattern) {
			return p.msg
		}
	}

	return defaultMessage
}

// FormatUserError returns "Message (Code)" for terminal output.
func FormatUserError(err error) string {
	msg := MapError(err)
	return msg.Message + " (" + msg.Code + ")"
}
