package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of an error
type ErrorType uint

const (
	// ErrorTypeUnknown represents an unknown error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidArgument represents a malformed request at an outer boundary
	ErrorTypeInvalidArgument
	// ErrorTypeInvalidParameter represents a pricing parameter outside its domain
	// (S<=0, K<=0, T<=0, sigma<0, num_simulations<=0)
	ErrorTypeInvalidParameter
	// ErrorTypeInvalidOptionType represents an option type other than Call or Put
	ErrorTypeInvalidOptionType
	// ErrorTypeShapeMismatch represents a random draw matrix of the wrong dimensions
	ErrorTypeShapeMismatch
	// ErrorTypeResourceExhausted represents a rejected request due to rate limiting
	ErrorTypeResourceExhausted
	// ErrorTypeInternal represents an internal error
	ErrorTypeInternal
)

var typeNames = map[ErrorType]string{
	ErrorTypeUnknown:           "unknown",
	ErrorTypeInvalidArgument:   "invalid_argument",
	ErrorTypeInvalidParameter:  "invalid_parameter",
	ErrorTypeInvalidOptionType: "invalid_option_type",
	ErrorTypeShapeMismatch:     "shape_mismatch",
	ErrorTypeResourceExhausted: "resource_exhausted",
	ErrorTypeInternal:          "internal",
}

// String returns the snake_case name of the error type
func (t ErrorType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("error_type(%d)", uint(t))
}

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError of the same type with no message, which lets the
// exported sentinels below be used with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Type == e.Type
}

// Sentinels for errors.Is
var (
	ErrInvalidParameter  = &AppError{Type: ErrorTypeInvalidParameter}
	ErrInvalidOptionType = &AppError{Type: ErrorTypeInvalidOptionType}
	ErrShapeMismatch     = &AppError{Type: ErrorTypeShapeMismatch}
)

// New creates a new error with the given message
func New(message string) error {
	return &AppError{
		Type:    ErrorTypeUnknown,
		Message: message,
	}
}

// Wrap wraps an error with a message, keeping the type of the innermost AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    TypeOf(err),
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// TypeOf returns the type of the first AppError in err's chain
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain carries an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// Is reports whether err or any of the errors in its chain is target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// InvalidArgument creates a new InvalidArgument error
func InvalidArgument(message string) error {
	return &AppError{
		Type:    ErrorTypeInvalidArgument,
		Message: message,
	}
}

// InvalidParameter creates a new InvalidParameter error
func InvalidParameter(message string) error {
	return &AppError{
		Type:    ErrorTypeInvalidParameter,
		Message: message,
	}
}

// InvalidParameterf creates a new InvalidParameter error with a formatted message
func InvalidParameterf(format string, args ...interface{}) error {
	return InvalidParameter(fmt.Sprintf(format, args...))
}

// InvalidOptionType creates a new InvalidOptionType error
func InvalidOptionType(optionType string) error {
	return &AppError{
		Type:    ErrorTypeInvalidOptionType,
		Message: fmt.Sprintf("invalid option type %q: use 'Call' or 'Put'", optionType),
	}
}

// ShapeMismatch creates a new ShapeMismatch error
func ShapeMismatch(wantRows, wantCols, gotRows, gotCols int) error {
	return &AppError{
		Type: ErrorTypeShapeMismatch,
		Message: fmt.Sprintf("random draws must have shape (%d, %d), got (%d, %d)",
			wantRows, wantCols, gotRows, gotCols),
	}
}

// ResourceExhausted creates a new ResourceExhausted error
func ResourceExhausted(message string) error {
	return &AppError{
		Type:    ErrorTypeResourceExhausted,
		Message: message,
	}
}

// Internal creates a new Internal error
func Internal(message string) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
	}
}
