package errors

import "fmt"

// DriverError is the error type every engine operation returns. It carries
// an S-OS numeric code (ErrCode) in addition to the usual error message, and
// chains to its cause via Unwrap: errors.Is(err, ErrNoEnt) works after any
// number of WithMessage calls, while WrapError chains to the wrapped error
// instead and keeps the sentinel only as its ErrCode.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	WrapError(err error) DriverError
	ErrCode() Code
}

// -----------------------------------------------------------------------------

type customDriverError struct {
	code          Code
	message       string
	originalError error
}

func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) ErrCode() Code {
	return e.code
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		code:          e.code,
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customDriverError) WrapError(err error) DriverError {
	return customDriverError{
		code:          e.code,
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: err,
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}

// New builds a DriverError carrying an arbitrary code and message, for call
// sites that don't start from one of the package's sentinels.
func New(code Code, message string) DriverError {
	return customDriverError{code: code, message: message}
}
