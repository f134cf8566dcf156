package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context, creating an Error if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *Error {
	if err == nil {
		return nil
	}

	// If it's already an Error, preserve its properties but update the message
	var te *Error
	if errors.As(err, &te) {
		return &Error{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       te,
			Context:     te.Context,
			Component:   te.Component,
			FilePath:    te.FilePath,
			Line:        te.Line,
			Recoverable: te.Recoverable,
		}
	}

	return &Error{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType != ErrorTypeResolution && errType != ErrorTypeConfig && errType != ErrorTypeInternal,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *Error {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapEvaluation wraps an error raised while evaluating an expression or calling a user function
func WrapEvaluation(err error, code, message string) *Error {
	return Wrap(err, ErrorTypeEvaluation, code, message)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *Error {
	wrapped := Wrap(err, ErrorTypeConfig, code, message)
	if wrapped != nil {
		wrapped.Recoverable = false
	}
	return wrapped
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var te *Error
	if errors.As(err, &te) {
		return te.Error()
	}

	return err.Error()
}

// GetErrorContext extracts context information from an Error
func GetErrorContext(err error) map[string]interface{} {
	var te *Error
	if errors.As(err, &te) {
		context := make(map[string]interface{})
		for k, v := range te.Context {
			context[k] = v
		}
		if te.Component != "" {
			context["component"] = te.Component
		}
		if te.FilePath != "" {
			context["file"] = te.FilePath
			if te.Line > 0 {
				context["line"] = te.Line
			}
		}
		context["type"] = string(te.Type)
		context["code"] = te.Code
		context["recoverable"] = te.Recoverable
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}

// ExtractCause extracts the root cause from a wrapped error
func ExtractCause(err error) error {
	for err != nil {
		var te *Error
		if errors.As(err, &te) {
			if te.Cause == nil {
				return te
			}
			err = te.Cause
		} else {
			return err
		}
	}
	return nil
}

// CombineErrors combines multiple errors into a single error with context
func CombineErrors(errs ...error) error {
	var nonNilErrs []error
	for _, err := range errs {
		if err != nil {
			nonNilErrs = append(nonNilErrs, err)
		}
	}
	if len(nonNilErrs) == 0 {
		return nil
	}
	if len(nonNilErrs) == 1 {
		return nonNilErrs[0]
	}

	var messages []string
	for _, err := range nonNilErrs {
		messages = append(messages, err.Error())
	}

	return &Error{
		Type:    ErrorTypeInternal,
		Code:    "ERR_MULTIPLE_ERRORS",
		Message: fmt.Sprintf("multiple errors occurred: %d errors", len(nonNilErrs)),
		Context: map[string]interface{}{
			"error_count": len(nonNilErrs),
			"errors":      messages,
		},
		Recoverable: false,
	}
}
