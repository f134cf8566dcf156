package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructureErrorError(t *testing.T) {
	err := StructureError{Line: 12, Message: "unclosed tag [!content]"}

	assert.Equal(t, "line 12: unclosed tag [!content]", err.Error())
}

func TestStructureErrorsError(t *testing.T) {
	testCases := []struct {
		name     string
		errs     *StructureErrors
		contains []string
	}{
		{
			name:     "empty",
			errs:     &StructureErrors{},
			contains: []string{"no structure errors"},
		},
		{
			name: "single with file",
			errs: &StructureErrors{
				FilePath: "pages/index.html",
				Errors:   []StructureError{{Line: 3, Message: "unmatched closing tag [~nav]"}},
			},
			contains: []string{"pages/index.html", "line 3", "unmatched closing tag"},
		},
		{
			name: "multiple",
			errs: &StructureErrors{
				Errors: []StructureError{
					{Line: 1, Message: "first"},
					{Line: 9, Message: "second"},
				},
			},
			contains: []string{"2 structure errors", "line 1: first", "line 9: second"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := tc.errs.Error()
			for _, want := range tc.contains {
				assert.Contains(t, msg, want)
			}
		})
	}
}

func TestStructureErrorsToError(t *testing.T) {
	var empty *StructureErrors
	assert.False(t, empty.HasErrors())
	assert.Nil(t, (&StructureErrors{}).ToError())

	errs := &StructureErrors{
		FilePath: "layout.html",
		Errors:   []StructureError{{Line: 4, Message: "malformed tag [!]"}},
	}
	converted := errs.ToError()
	require.NotNil(t, converted)
	assert.Equal(t, ErrorTypeStructure, converted.Type)
	assert.Equal(t, ErrCodeStructure, converted.Code)
	assert.Equal(t, 4, converted.Line)
	assert.Equal(t, "layout.html", converted.FilePath)
	assert.True(t, converted.Recoverable)
}

func TestErrorFormatting(t *testing.T) {
	err := NewEvaluationError(ErrCodeEvalFailed, "expression failed", fmt.Errorf("division by zero")).
		WithComponent("sandbox").
		WithLocation("pages/a.html", 7)

	msg := err.Error()
	assert.Contains(t, msg, "[ERR_EVAL_FAILED]")
	assert.Contains(t, msg, "component:sandbox")
	assert.Contains(t, msg, "pages/a.html:7")
	assert.Contains(t, msg, "expression failed: division by zero")
}

func TestErrorIsAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("file does not exist")
	err := NewIOError(ErrCodeIncludeRead, "cannot read include", cause)

	assert.True(t, errors.Is(err, &Error{Type: ErrorTypeIO, Code: ErrCodeIncludeRead}))
	assert.False(t, errors.Is(err, &Error{Type: ErrorTypeIO, Code: ErrCodeFileNotFound}))
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, cause, ExtractCause(err))
}

func TestRecoverability(t *testing.T) {
	testCases := []struct {
		name        string
		err         error
		recoverable bool
	}{
		{"missing base", ErrBaseNotFound("base.html", "page.html"), false},
		{"unsafe path", ErrUnsafePath("../../etc/passwd"), true},
		{"unsafe name", ErrUnsafeName("__proto__"), true},
		{"function not found", ErrFunctionNotFound("greet"), true},
		{"config", NewConfigError(ErrCodeConfigInvalid, "bad"), false},
		{"plain error", fmt.Errorf("plain"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.recoverable, IsRecoverable(tc.err))
		})
	}

	assert.True(t, IsResolutionError(ErrBaseNotFound("x", "y")))
	assert.True(t, IsSecurityError(ErrUnsafePath("/x")))
	assert.False(t, IsSecurityError(fmt.Errorf("plain")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "X", "y"))

	base := fmt.Errorf("permission denied")
	wrapped := WrapIO(base, ErrCodeWriteFailed, "cannot write output")
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeIO, wrapped.Type)
	assert.True(t, wrapped.Recoverable)

	inner := NewSecurityError(ErrCodeUnsafePath, "escape").WithLocation("a.html", 2)
	rewrapped := WrapEvaluation(inner, ErrCodeEvalFailed, "outer")
	assert.Equal(t, "a.html", rewrapped.FilePath)
	assert.Equal(t, 2, rewrapped.Line)

	cfg := WrapConfig(base, ErrCodeConfigInvalid, "bad config")
	assert.False(t, cfg.Recoverable)
}

func TestGetErrorContext(t *testing.T) {
	err := ErrBaseNotFound("base.html", "child.html").WithLocation("child.html", 1)
	ctx := GetErrorContext(err)

	assert.Equal(t, "child.html", ctx["child"])
	assert.Equal(t, "child.html", ctx["file"])
	assert.Equal(t, 1, ctx["line"])
	assert.Equal(t, string(ErrorTypeResolution), ctx["type"])
	assert.Equal(t, false, ctx["recoverable"])

	plain := GetErrorContext(fmt.Errorf("boom"))
	assert.Equal(t, "unknown", plain["type"])
}

func TestCombineErrors(t *testing.T) {
	assert.Nil(t, CombineErrors(nil, nil))

	single := fmt.Errorf("one")
	assert.Equal(t, single, CombineErrors(nil, single))

	combined := CombineErrors(fmt.Errorf("a"), fmt.Errorf("b"))
	var te *Error
	require.True(t, errors.As(combined, &te))
	assert.Equal(t, 2, te.Context["error_count"])
	assert.Equal(t, "", FormatError(nil))
}
