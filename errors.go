package gostruct

import (
	"database/sql"
	"errors"
	"fmt"
)

/*
Error codes. You probably shouldn't use this directly; instead, use the `Err`
variables with `errors.Is`.
*/
type ErrCode string

const (
	ErrCodeUnknown              ErrCode = ""
	ErrCodeConversion           ErrCode = "ErrConversion"
	ErrCodeUnknownDiscriminator ErrCode = "ErrUnknownDiscriminator"
	ErrCodeStructuralMismatch   ErrCode = "ErrStructuralMismatch"
	ErrCodeInvalidMapping       ErrCode = "ErrInvalidMapping"
	ErrCodeInvalidDest          ErrCode = "ErrInvalidDest"
	ErrCodeInvalidInput         ErrCode = "ErrInvalidInput"
	ErrCodeNoRows               ErrCode = "ErrNoRows"
	ErrCodeMultipleRows         ErrCode = "ErrMultipleRows"
	ErrCodeScan                 ErrCode = "ErrScan"
)

/*
Use blank error variables to detect error types:

	if errors.Is(err, gostruct.ErrConversion) {
		// Handle specific error.
	}

Note that errors returned by Gostruct can't be compared via `==` because they
may include additional details about the circumstances. When compared by
`errors.Is`, they compare `.Cause` and fall back on `.Code`.
*/
var (
	ErrConversion           Err = Err{Code: ErrCodeConversion, Cause: errors.New(`value conversion failed`)}
	ErrUnknownDiscriminator Err = Err{Code: ErrCodeUnknownDiscriminator, Cause: errors.New(`no instantiator for discriminator`)}
	ErrStructuralMismatch   Err = Err{Code: ErrCodeStructuralMismatch, Cause: errors.New(`native values don't match mapping`)}
	ErrInvalidMapping       Err = Err{Code: ErrCodeInvalidMapping, Cause: errors.New(`invalid mapping`)}
	ErrInvalidDest          Err = Err{Code: ErrCodeInvalidDest, Cause: errors.New(`invalid destination`)}
	ErrInvalidInput         Err = Err{Code: ErrCodeInvalidInput, Cause: errors.New(`invalid input`)}
	ErrNoRows               Err = Err{Code: ErrCodeNoRows, Cause: sql.ErrNoRows}
	ErrMultipleRows         Err = Err{Code: ErrCodeMultipleRows, Cause: errors.New(`expected one row, got multiple`)}
	ErrScan                 Err = Err{Code: ErrCodeScan, Cause: errors.New(`error while scanning row`)}
)

// Describes a Gostruct error.
type Err struct {
	Code  ErrCode
	While string
	Cause error
}

// Implement `error`.
func (self Err) Error() string {
	if self == (Err{}) {
		return ""
	}
	msg := `struct mapping error`
	if self.Code != ErrCodeUnknown {
		msg += fmt.Sprintf(` %s`, self.Code)
	}
	if self.While != "" {
		msg += fmt.Sprintf(` while %v`, self.While)
	}
	if self.Cause != nil {
		msg += `: ` + self.Cause.Error()
	}
	return msg
}

// Implement a hidden interface in "errors".
func (self Err) Is(other error) bool {
	if self.Cause != nil && errors.Is(self.Cause, other) {
		return true
	}
	err, ok := other.(Err)
	return ok && err.Code == self.Code
}

// Implement a hidden interface in "errors".
func (self Err) Unwrap() error {
	return self.Cause
}

func (self Err) while(while string) Err {
	self.While = while
	return self
}

func (self Err) because(cause error) Err {
	self.Cause = cause
	return self
}

/*
Wraps a collaborator failure as `ErrConversion`. Errors that already carry a
Gostruct code, for example a discriminator lookup failure reported by a nested
instantiator, pass through unchanged.
*/
func conversionErr(while string, cause error) error {
	var err Err
	if errors.As(cause, &err) && err.Code != ErrCodeUnknown {
		return cause
	}
	return Err{Code: ErrCodeConversion, While: while, Cause: cause}
}

func mismatchErr(while string, format string, args ...interface{}) error {
	return Err{Code: ErrCodeStructuralMismatch, While: while, Cause: fmt.Errorf(format, args...)}
}
