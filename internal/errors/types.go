// Package errors defines the structured error types shared by the tessera
// engine packages.
//
// Rendering favors whole-document availability: most problems are
// recoverable and only logged, while a broken inheritance chain is fatal for
// the document being rendered. The Recoverable flag on Error carries that
// distinction so callers can decide whether to abort.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeStructure  ErrorType = "structure"
	ErrorTypeResolution ErrorType = "resolution"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeEvaluation ErrorType = "evaluation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeUnsafePath       = "ERR_UNSAFE_PATH"
	ErrCodeIncludeCycle     = "ERR_INCLUDE_CYCLE"
	ErrCodeIncludeRead      = "ERR_INCLUDE_READ"
	ErrCodeBaseNotFound     = "ERR_BASE_NOT_FOUND"
	ErrCodeBaseUnreadable   = "ERR_BASE_UNREADABLE"
	ErrCodeExtendsCycle     = "ERR_EXTENDS_CYCLE"
	ErrCodeStructure        = "ERR_STRUCTURE"
	ErrCodeUnsafeName       = "ERR_UNSAFE_NAME"
	ErrCodeEvalFailed       = "ERR_EVAL_FAILED"
	ErrCodeEvalTimeout      = "ERR_EVAL_TIMEOUT"
	ErrCodeForbiddenRef     = "ERR_FORBIDDEN_REFERENCE"
	ErrCodeFunctionNotFound = "ERR_FUNCTION_NOT_FOUND"
	ErrCodeFunctionFailed   = "ERR_FUNCTION_FAILED"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeWriteFailed      = "ERR_WRITE_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// Error is a structured error type with context.
type Error struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Line        int
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *Error) WithLocation(filePath string, line int) *Error {
	e.FilePath = filePath
	e.Line = line

	return e
}

// WithComponent adds component context.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component

	return e
}

// NewResolutionError creates a fatal error for a broken inheritance chain.
func NewResolutionError(code, message string) *Error {
	return &Error{
		Type:        ErrorTypeResolution,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewSecurityError creates a security error. Security problems inside a
// template only drop the offending fragment, so they are recoverable.
func NewSecurityError(code, message string) *Error {
	return &Error{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewEvaluationError creates an expression or function evaluation error.
func NewEvaluationError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeEvaluation,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *Error {
	return &Error{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Type == ErrorTypeSecurity
	}

	return false
}

// IsResolutionError checks if an error comes from a broken inheritance chain.
func IsResolutionError(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Type == ErrorTypeResolution
	}

	return false
}

// ErrBaseNotFound creates the fatal error for a missing [extends] target.
func ErrBaseNotFound(target, child string) *Error {
	return NewResolutionError(ErrCodeBaseNotFound, "base template not found: "+target).
		WithContext("child", child)
}

// ErrBaseUnreadable creates the fatal error for an [extends] target that
// exists but cannot be read.
func ErrBaseUnreadable(target, child string) *Error {
	return NewResolutionError(ErrCodeBaseUnreadable, "cannot read base template: "+target).
		WithContext("child", child)
}

// ErrUnsafePath creates the error for a path escaping the template root.
func ErrUnsafePath(path string) *Error {
	return NewSecurityError(ErrCodeUnsafePath, "path escapes template root: "+path)
}

// ErrUnsafeName creates the error for an identifier on the unsafe-key list.
func ErrUnsafeName(name string) *Error {
	return NewSecurityError(ErrCodeUnsafeName, "unsafe identifier: "+name)
}

// ErrFunctionNotFound creates the error for an unknown user function.
func ErrFunctionNotFound(name string) *Error {
	return NewEvaluationError(ErrCodeFunctionNotFound, "user function not found: "+name, nil)
}
