package sandbox

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tserrors "github.com/conneroisu/tessera/internal/errors"
)

func testVars() map[string]any {
	return map[string]any{
		"user": map[string]any{
			"name":    "Ada",
			"age":     36,
			"tags":    []any{"a", "b"},
			"address": map[string]any{"city": "Paris"},
		},
		"items": []any{1, 2, 3},
		"n":     5,
		"s":     "hello",
	}
}

func TestEval(t *testing.T) {
	testCases := []struct {
		expr     string
		expected any
	}{
		{"1 + 2", 3.0},
		{"'a' + 1", "a1"},
		{"n * 2 - 1", 9.0},
		{"10 % 4", 2.0},
		{"(1 + 2) * 3", 9.0},
		{"-n", -5.0},
		{"user.name", "Ada"},
		{"user.address.city", "Paris"},
		{"user['name']", "Ada"},
		{"user?.address?.city", "Paris"},
		{"items[1]", 2.0},
		{"items.length", 3.0},
		{"s.length", 5.0},
		{"s[0]", "h"},
		{"missing", nil},
		{"missing.deep.path", nil},
		{"user.age > 30 && user.name == 'Ada'", true},
		{"n > 10 ? 'big' : 'small'", "small"},
		{"missing ?? 'fallback'", "fallback"},
		{"missing || 'x'", "x"},
		{"0 && 'x'", 0.0},
		{"!items", false},
		{"1 == '1'", true},
		{"1 === '1'", false},
		{"null == undefined", true},
		{"'a' < 'b'", true},
		{`"a\"b"`, `a"b`},
		{"[1, 2][0]", 1.0},
		{"{a: 1}.a", 1.0},
		{"upper(user.name)", "ADA"},
		{"s.toUpperCase()", "HELLO"},
		{"user.tags.join('-')", "a-b"},
		{"s.slice(1, 3)", "el"},
		{"'x'.repeat(3)", "xxx"},
		{"Math.max(1, 5, 3)", 5.0},
		{"Math.PI > 3", true},
		{"title('hello world')", "Hello World"},
		{"capitalize('hello')", "Hello"},
		{"toFixed(3.14159, 2)", "3.14"},
		{"keys(user)", []any{"address", "age", "name", "tags"}},
		{"JSON.stringify({b: 2, a: [1]})", `{"a":[1],"b":2}`},
		{"includes(items, 2)", true},
		{"length(user)", 4.0},
		{"default(missing, 'none')", "none"},
		{"slugify('Hello, World!')", "hello-world"},
	}

	e := New()
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := e.Eval(context.Background(), tc.expr, testVars())
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestEvalRejectsAmbientReferences(t *testing.T) {
	e := New()
	for _, expr := range []string{
		"process.env",
		"require('fs')",
		"globalThis",
		"1 + process.exit(1)",
		"true ? 'ok' : eval('1')",
		"Function('return 1')()",
		"console.log('x')",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := e.Eval(context.Background(), expr, testVars())
			require.Error(t, err)
			assert.True(t, tserrors.IsSecurityError(err))

			assert.Nil(t, e.Evaluate(context.Background(), expr, testVars()))
		})
	}
}

func TestEvalNeverResolvesUnsafeKeys(t *testing.T) {
	e := New()
	vars := testVars()
	vars["__proto__"] = map[string]any{"polluted": true}
	vars["constructor"] = "ctor"

	for _, expr := range []string{
		"constructor",
		"__proto__",
		"__proto__.polluted",
		"user.__proto__",
		"user['constructor']",
		"user.constructor.name",
		"s.prototype",
		"{__proto__: 1}.__proto__",
	} {
		t.Run(expr, func(t *testing.T) {
			got, err := e.Eval(context.Background(), expr, vars)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestEvalFailures(t *testing.T) {
	e := New()
	for _, expr := range []string{
		"alert(1)",
		"user.toString()",
		"s.constructor('x')",
		"(1)(2)",
		"1 +",
		"'unterminated",
		"a b",
		"#",
		"upper()",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := e.Eval(context.Background(), expr, testVars())
			require.Error(t, err)
			assert.Nil(t, e.Evaluate(context.Background(), expr, testVars()))
		})
	}
}

func TestEvalTimeout(t *testing.T) {
	e := New()
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := e.Eval(ctx, "1 + 2", nil)
	require.Error(t, err)

	var tsErr *tserrors.Error
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, tserrors.ErrCodeEvalTimeout, tsErr.Code)
}

func TestEvalWatchdogStopsSlowExpression(t *testing.T) {
	big := make([]any, 400_000)
	for i := range big {
		big[i] = "item-" + strconv.Itoa(len(big)-i)
	}
	vars := map[string]any{"big": big, "small": []any{"b", "a"}}
	e := New(WithTimeout(time.Millisecond))

	start := time.Now()
	_, err := e.Eval(context.Background(), "length(sort(reverse(sort(big))))", vars)
	elapsed := time.Since(start)
	require.Error(t, err)

	var tsErr *tserrors.Error
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, tserrors.ErrCodeEvalTimeout, tsErr.Code)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Nil(t, e.Evaluate(context.Background(), "length(sort(reverse(sort(big))))", vars))

	got, err := New(WithTimeout(time.Second)).Eval(context.Background(), "join(sort(small), '')", vars)
	require.NoError(t, err)
	assert.Equal(t, "ab", got)
}

func TestOptions(t *testing.T) {
	assert.Equal(t, DefaultTimeout, New().Timeout())
	assert.Equal(t, time.Second, New(WithTimeout(time.Second)).Timeout())
	assert.Equal(t, DefaultTimeout, New(WithTimeout(0)).Timeout())
}

func TestCheckAndCache(t *testing.T) {
	e := New()
	assert.NoError(t, e.Check("a + b"))
	assert.Error(t, e.Check("a +"))
	assert.Error(t, e.Check("require"))

	e.mu.RLock()
	_, cached := e.cache["a + b"]
	e.mu.RUnlock()
	assert.True(t, cached)

	e.ClearCache()
	e.mu.RLock()
	assert.Empty(t, e.cache)
	e.mu.RUnlock()
}

func TestEvalDeepNesting(t *testing.T) {
	e := New()
	expr := ""
	for i := 0; i < 200; i++ {
		expr += "("
	}
	expr += "1"
	for i := 0; i < 200; i++ {
		expr += ")"
	}
	_, err := e.Eval(context.Background(), expr, nil)
	assert.Error(t, err)
}

func FuzzParse(f *testing.F) {
	f.Add("1 + 2 * 3")
	f.Add("user.name ?? 'x'")
	f.Add("a ? b : c ? d : e")
	f.Add("[1, {a: [2]}][1].a[0]")
	f.Add("'\\u0041'.padStart(4, '-')")

	f.Fuzz(func(t *testing.T, expr string) {
		n, err := parse(expr)
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = n.eval(&scope{ctx: ctx, vars: testVars()})
	})
}
