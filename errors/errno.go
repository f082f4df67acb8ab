// This is the S-OS error vocabulary shared by every layer of the engine.
// Unlike POSIX errno, S-OS error numbers are a short, closed set (§6 of the
// specification) and must cross the boundary to callers verbatim, so each
// sentinel below carries its own numeric Code in addition to a message.
package errors

import (
	"fmt"
)

// Code is the boundary-facing S-OS error number.
type Code int

const (
	SUCCESS  Code = 0x0
	IO       Code = 0x1
	OFFLINE  Code = 0x2
	BADF     Code = 0x3
	RDONLY   Code = 0x4
	BADR     Code = 0x5
	FMODE    Code = 0x6
	BADFAT   Code = 0x7
	NOENT    Code = 0x8
	NOSPC    Code = 0x9
	EXIST    Code = 0xa
	RESERVED Code = 0xb
	NOTOPEN  Code = 0xc
	SYNTAX   Code = 0xd
	INVAL    Code = 0xe
)

// SwordError is a sentinel error tying an S-OS numeric code to a default
// message. It plays the role of disko's DiskoError, but since the S-OS
// vocabulary needs a numeric code alongside the message it's a small struct
// rather than a bare string constant.
type SwordError struct {
	code    Code
	message string
}

func (e SwordError) Error() string {
	return e.message
}

// ErrCode returns the numeric S-OS error code that should cross the boundary.
func (e SwordError) ErrCode() Code {
	return e.code
}

func sentinel(code Code, message string) SwordError {
	return SwordError{code: code, message: message}
}

var (
	ErrIO       = sentinel(IO, "device I/O error")
	ErrOffline  = sentinel(OFFLINE, "device offline")
	ErrBadF     = sentinel(BADF, "bad file descriptor")
	ErrRDOnly   = sentinel(RDONLY, "write protected")
	ErrBadR     = sentinel(BADR, "bad record")
	ErrFMode    = sentinel(FMODE, "bad file mode")
	ErrBadFAT   = sentinel(BADFAT, "bad allocation table")
	ErrNoEnt    = sentinel(NOENT, "file not found")
	ErrNoSpc    = sentinel(NOSPC, "device full")
	ErrExist    = sentinel(EXIST, "file already exists")
	ErrReserved = sentinel(RESERVED, "reserved feature")
	ErrNotOpen  = sentinel(NOTOPEN, "file not open")
	ErrSyntax   = sentinel(SYNTAX, "syntax error")
	ErrInval    = sentinel(INVAL, "bad data")
)

// WithMessage returns a DriverError with the same code as e but a message
// specific to the call site, e.g. ErrNoEnt.WithMessage("HELLO.TXT").
func (e SwordError) WithMessage(message string) DriverError {
	return customDriverError{
		code:          e.code,
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

// WrapError returns a DriverError with the same code as e that chains to
// another error for errors.Is/errors.Unwrap purposes.
func (e SwordError) WrapError(err error) DriverError {
	return customDriverError{
		code:          e.code,
		message:       fmt.Sprintf("%s: %s", e.message, err.Error()),
		originalError: err,
	}
}
