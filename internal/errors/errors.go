package errors

import (
	"fmt"
	"strings"
)

// StructureError reports an unbalanced or malformed block tag.
type StructureError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Error implements the error interface
func (se StructureError) Error() string {
	return fmt.Sprintf("line %d: %s", se.Line, se.Message)
}

// StructureErrors aggregates the findings of one validation pass.
type StructureErrors struct {
	FilePath string
	Errors   []StructureError
}

// Error implements the error interface
func (s *StructureErrors) Error() string {
	if len(s.Errors) == 0 {
		return "no structure errors"
	}

	var b strings.Builder
	if s.FilePath != "" {
		b.WriteString(s.FilePath)
		b.WriteString(": ")
	}
	if len(s.Errors) == 1 {
		b.WriteString(s.Errors[0].Error())
		return b.String()
	}

	fmt.Fprintf(&b, "%d structure errors", len(s.Errors))
	for _, err := range s.Errors {
		b.WriteString("\n  ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// HasErrors returns true if there are any errors
func (s *StructureErrors) HasErrors() bool {
	return s != nil && len(s.Errors) > 0
}

// ToError converts the collection into a structure-typed Error.
func (s *StructureErrors) ToError() *Error {
	if !s.HasErrors() {
		return nil
	}

	return &Error{
		Type:        ErrorTypeStructure,
		Code:        ErrCodeStructure,
		Message:     s.Error(),
		FilePath:    s.FilePath,
		Line:        s.Errors[0].Line,
		Context:     map[string]interface{}{"error_count": len(s.Errors)},
		Recoverable: true,
	}
}
