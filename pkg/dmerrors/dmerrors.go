// Package dmerrors defines the structured error taxonomy shared by every
// driftmirror component (spec §7). Every error produced by Store, PathGuard,
// Indexer, VFS, SyncEngine, CacheEvictor, and the RPC layer carries one of
// these codes plus a small amount of structured context, so that callers
// across process boundaries can make retry/surface decisions without
// inspecting error strings.
package dmerrors

import (
	"fmt"
)

// Code identifies the category of a driftmirror error, per the taxonomy in
// spec §7.
type Code string

const (
	// Caller errors: surfaced immediately, never retried.
	CodeInvalidPath   Code = "invalidPath"
	CodeInvalidConfig Code = "invalidConfig"
	CodeNotFound      Code = "notFound"

	// Operational errors: surfaced per-run, may retry on the next schedule.
	CodeDiskNotConnected  Code = "diskNotConnected"
	CodeInsufficientSpace Code = "insufficientSpace"
	CodePermissionDenied  Code = "permissionDenied"

	// Data-integrity errors: per-file fatal, the run continues.
	CodeChecksumMismatch   Code = "checksumMismatch"
	CodeVerificationFailed Code = "verificationFailed"

	// Transient errors. LockBusy is retried once within a run, then
	// surfaced; Cancelled is terminal for the run but is not treated as a
	// failure externally.
	CodeLockBusy  Code = "lockBusy"
	CodeTimeout   Code = "timeout"
	CodeCancelled Code = "cancelled"

	// Infrastructure errors: the run fails, the daemon continues.
	CodeStoreError Code = "storeError"
	CodeInternal   Code = "internal"
)

// Retryable reports whether an error of this code may be retried on the
// daemon's next scheduled sync attempt.
func (c Code) Retryable() bool {
	switch c {
	case CodeDiskNotConnected, CodeInsufficientSpace, CodePermissionDenied, CodeLockBusy, CodeTimeout:
		return true
	default:
		return false
	}
}

// Fatal reports whether an error of this code is fatal to the file it
// concerns but not to the overall run.
func (c Code) Fatal() bool {
	return c == CodeChecksumMismatch || c == CodeVerificationFailed
}

// Error is a structured driftmirror error: a code, a human-readable message,
// structured context (e.g. the path or pair involved), and an optional
// wrapped cause.
type Error struct {
	Code    Code
	Message string
	Context map[string]string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error with the given code and message, wrapping cause.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// With attaches a piece of structured context to the error and returns it,
// for chaining: dmerrors.New(...).With("path", p).With("pair", id).
func (e *Error) With(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the Code from err if it is (or wraps) a *Error, and
// CodeInternal otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if de, ok := err.(*Error); ok {
		return de.Code
	}
	return CodeInternal
}
