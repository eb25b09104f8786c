package apierr

import (
	"fmt"

	"github.com/google/uuid"
)

// Code is a stable, upper-snake-case identifier for a class of failure.
// Codes are part of the wire contract exposed to the admin API and must
// never be renamed once shipped.
type Code string

const (
	CodeConfigError             Code = "CONFIG_ERROR"
	CodePreconditionFailed      Code = "PRECONDITION_FAILED"
	CodeMissingFile             Code = "MISSING_FILE"
	CodeCannotCreateSink        Code = "CANNOT_CREATE_SINK"
	CodeUnreadable              Code = "UNREADABLE"
	CodeCannotArchive           Code = "CANNOT_ARCHIVE"
	CodeCannotCompress          Code = "CANNOT_COMPRESS"
	CodeCannotEncrypt           Code = "CANNOT_ENCRYPT"
	CodeCannotSign              Code = "CANNOT_SIGN"
	CodeCannotHash              Code = "CANNOT_HASH"
	CodeArchiveFailed           Code = "ARCHIVE_FAILED"
	CodeCompressFailed          Code = "COMPRESS_FAILED"
	CodeEncryptFailed           Code = "ENCRYPT_FAILED"
	CodeSignFailed              Code = "SIGN_FAILED"
	CodeHashFailed              Code = "HASH_FAILED"
	CodeCannotDecrypt           Code = "CANNOT_DECRYPT"
	CodeIntegrityCheckMissing   Code = "INTEGRITY_CHECK_MISSING"
	CodeIntegrityCheckMalformed Code = "INTEGRITY_CHECK_MALFORMED"
	CodeIntegrityCheckFailed    Code = "INTEGRITY_CHECK_FAILED"
	CodeIntegrityDivergent      Code = "INTEGRITY_DIVERGENT"
	CodeNotFound                Code = "NOT_FOUND"
	CodeConflict                Code = "CONFLICT"
	CodeUnauthorized            Code = "UNAUTHORIZED"
	CodeForbidden               Code = "FORBIDDEN"
	CodeInternalError           Code = "INTERNAL_ERROR"

	// Lifecycle state-kind codes (spec.md §7's state/HTTP mapping table).
	CodeServerStarting          Code = "SERVER_STARTING"
	CodeRestartFailed           Code = "RESTART_FAILED"
	CodeServerStopped           Code = "SERVER_STOPPED"
	CodeFactoryResetInProgress  Code = "FACTORY_RESET_IN_PROGRESS"

	// Admin shell proxy codes (spec.md §4.7).
	CodeCommandTooLong   Code = "COMMAND_TOO_LONG"
	CodeCommandEmpty     Code = "COMMAND_EMPTY"
	CodeCommandTimeout   Code = "COMMAND_TIMEOUT"
	CodeShellError       Code = "SHELL_ERROR"
	CodeShellUnexpected  Code = "SHELL_UNEXPECTED_OUTPUT"
)

// Error is the taxonomy member every sentryd operation returns. Message is
// short and operator-facing; Description may carry more detail but must
// never include secret material (see pkg/log's audit-logging discipline).
type Error struct {
	Code          Code
	Message       string
	Description   string
	CorrelationID string
	cause         error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an Error that carries err as its cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Internal constructs an INTERNAL_ERROR with a fresh correlation ID, the
// only code that is expected to surface a correlation ID to the caller
// while logging full detail server-side (spec.md §7).
func Internal(err error) *Error {
	return &Error{
		Code:          CodeInternalError,
		Message:       "internal error",
		Description:   "an unexpected error occurred; see server logs for the correlation ID",
		CorrelationID: uuid.NewString(),
		cause:         err,
	}
}

// Is reports whether err is an *Error with the given code, unwrapping
// through any wrapper chain.
func Is(err error, code Code) bool {
	var apiErr *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			apiErr = e
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return apiErr != nil && apiErr.Code == code
}
