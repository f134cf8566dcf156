package sandbox

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxGeneratedLength caps strings built by repeat and padding helpers.
const maxGeneratedLength = 1 << 16

// builtin is a whitelisted function with an argument range. maxArgs of -1
// means variadic.
type builtin struct {
	minArgs int
	maxArgs int
	call    func(args []any) (any, error)
}

type callable func(args []any) (any, error)

// functions holds every callable name, flat or namespaced ("Math.max").
var functions = map[string]callable{}

// namespaces are identifiers that only make sense as a prefix.
var namespaces = map[string]struct{}{
	"Math":   {},
	"JSON":   {},
	"Object": {},
	"Array":  {},
	"Date":   {},
	"Number": {},
	"String": {},
}

var constants = map[string]any{
	"Math.PI":                 math.Pi,
	"Math.E":                  math.E,
	"Number.MAX_SAFE_INTEGER": float64(1<<53 - 1),
	"Number.MIN_SAFE_INTEGER": -float64(1<<53 - 1),
}

var titleCaser = cases.Title(language.English)

func init() {
	builtins := map[string]builtin{
		// text
		"upper":      {1, 1, func(a []any) (any, error) { return strings.ToUpper(Stringify(a[0])), nil }},
		"lower":      {1, 1, func(a []any) (any, error) { return strings.ToLower(Stringify(a[0])), nil }},
		"trim":       {1, 1, func(a []any) (any, error) { return strings.TrimSpace(Stringify(a[0])), nil }},
		"capitalize": {1, 1, func(a []any) (any, error) { return capitalize(Stringify(a[0])), nil }},
		"title":      {1, 1, func(a []any) (any, error) { return titleCaser.String(Stringify(a[0])), nil }},
		"replace": {3, 3, func(a []any) (any, error) {
			return strings.ReplaceAll(Stringify(a[0]), Stringify(a[1]), Stringify(a[2])), nil
		}},
		"split": {2, 2, func(a []any) (any, error) {
			return stringsToList(strings.Split(Stringify(a[0]), Stringify(a[1]))), nil
		}},
		"join":       {1, 2, builtinJoin},
		"includes":   {2, 2, func(a []any) (any, error) { return includes(a[0], a[1]), nil }},
		"startsWith": {2, 2, func(a []any) (any, error) { return strings.HasPrefix(Stringify(a[0]), Stringify(a[1])), nil }},
		"endsWith":   {2, 2, func(a []any) (any, error) { return strings.HasSuffix(Stringify(a[0]), Stringify(a[1])), nil }},
		"substring":  {2, 3, func(a []any) (any, error) { return substring(Stringify(a[0]), a[1:]), nil }},
		"truncate":   {2, 3, builtinTruncate},
		"repeat":     {2, 2, func(a []any) (any, error) { return repeat(Stringify(a[0]), toInt(a[1])) }},
		"padStart":   {2, 3, func(a []any) (any, error) { return pad(Stringify(a[0]), a[1:], true) }},
		"padEnd":     {2, 3, func(a []any) (any, error) { return pad(Stringify(a[0]), a[1:], false) }},
		"slugify":    {1, 1, func(a []any) (any, error) { return slugify(Stringify(a[0])), nil }},

		// numbers
		"number":  {1, 1, func(a []any) (any, error) { return toNumber(a[0]), nil }},
		"string":  {1, 1, func(a []any) (any, error) { return Stringify(a[0]), nil }},
		"toFixed": {1, 2, builtinToFixed},
		"round":   {1, 2, builtinRound},
		"floor":   {1, 1, func(a []any) (any, error) { return math.Floor(toNumber(a[0])), nil }},
		"ceil":    {1, 1, func(a []any) (any, error) { return math.Ceil(toNumber(a[0])), nil }},
		"abs":     {1, 1, func(a []any) (any, error) { return math.Abs(toNumber(a[0])), nil }},
		"min":     {1, -1, func(a []any) (any, error) { return extreme(a, -1), nil }},
		"max":     {1, -1, func(a []any) (any, error) { return extreme(a, 1), nil }},
		"pow":     {2, 2, func(a []any) (any, error) { return math.Pow(toNumber(a[0]), toNumber(a[1])), nil }},
		"sqrt":    {1, 1, func(a []any) (any, error) { return math.Sqrt(toNumber(a[0])), nil }},

		// dates
		"now":        {0, 0, func([]any) (any, error) { return time.Now().UTC().Format(time.RFC3339), nil }},
		"year":       {0, 0, func([]any) (any, error) { return float64(time.Now().Year()), nil }},
		"formatDate": {1, 2, builtinFormatDate},

		// data
		"json":      {1, 1, func(a []any) (any, error) { return Stringify(a[0]), nil }},
		"parseJson": {1, 1, builtinParseJSON},
		"length":    {1, 1, builtinLength},
		"keys":      {1, 1, builtinKeys},
		"values":    {1, 1, builtinValues},
		"first":     {1, 1, func(a []any) (any, error) { return edge(a[0], true), nil }},
		"last":      {1, 1, func(a []any) (any, error) { return edge(a[0], false), nil }},
		"reverse":   {1, 1, builtinReverse},
		"sort":      {1, 1, builtinSort},
		"default": {2, 2, func(a []any) (any, error) {
			if a[0] == nil || a[0] == "" {
				return a[1], nil
			}
			return a[0], nil
		}},

		// logic
		"not": {1, 1, func(a []any) (any, error) { return !Truthy(a[0]), nil }},
		"and": {1, -1, func(a []any) (any, error) { return allTruthy(a), nil }},
		"or":  {1, -1, func(a []any) (any, error) { return anyTruthy(a), nil }},
		"eq":  {2, 2, func(a []any) (any, error) { return strictEqual(a[0], a[1]), nil }},
		"neq": {2, 2, func(a []any) (any, error) { return !strictEqual(a[0], a[1]), nil }},
		"gt":  {2, 2, ordered(func(c int) bool { return c > 0 })},
		"gte": {2, 2, ordered(func(c int) bool { return c >= 0 })},
		"lt":  {2, 2, ordered(func(c int) bool { return c < 0 })},
		"lte": {2, 2, ordered(func(c int) bool { return c <= 0 })},

		// namespaced
		"Math.max":       {1, -1, func(a []any) (any, error) { return extreme(a, 1), nil }},
		"Math.min":       {1, -1, func(a []any) (any, error) { return extreme(a, -1), nil }},
		"Math.round":     {1, 1, func(a []any) (any, error) { return math.Floor(toNumber(a[0]) + 0.5), nil }},
		"Math.floor":     {1, 1, func(a []any) (any, error) { return math.Floor(toNumber(a[0])), nil }},
		"Math.ceil":      {1, 1, func(a []any) (any, error) { return math.Ceil(toNumber(a[0])), nil }},
		"Math.abs":       {1, 1, func(a []any) (any, error) { return math.Abs(toNumber(a[0])), nil }},
		"Math.pow":       {2, 2, func(a []any) (any, error) { return math.Pow(toNumber(a[0]), toNumber(a[1])), nil }},
		"Math.sqrt":      {1, 1, func(a []any) (any, error) { return math.Sqrt(toNumber(a[0])), nil }},
		"Math.trunc":     {1, 1, func(a []any) (any, error) { return math.Trunc(toNumber(a[0])), nil }},
		"JSON.stringify": {1, 1, func(a []any) (any, error) { return Stringify(a[0]), nil }},
		"JSON.parse":     {1, 1, builtinParseJSON},
		"Object.keys":    {1, 1, builtinKeys},
		"Object.values":  {1, 1, builtinValues},
		"Array.isArray": {1, 1, func(a []any) (any, error) {
			_, ok := Normalize(a[0]).([]any)
			return ok, nil
		}},
		"Date.now":        {0, 0, func([]any) (any, error) { return float64(time.Now().UnixMilli()), nil }},
		"Number.isFinite": {1, 1, func(a []any) (any, error) { return isFiniteNumber(a[0]), nil }},
		"String.fromCharCode": {1, -1, func(a []any) (any, error) {
			var b strings.Builder
			for _, v := range a {
				b.WriteRune(rune(toInt(v)))
			}
			return b.String(), nil
		}},
	}

	for name, fn := range builtins {
		functions[name] = fn.bind(name)
	}
}

func (b builtin) bind(name string) callable {
	return func(args []any) (any, error) {
		if len(args) < b.minArgs || (b.maxArgs >= 0 && len(args) > b.maxArgs) {
			return nil, fmt.Errorf("%s: wrong number of arguments (%d)", name, len(args))
		}
		normalized := make([]any, len(args))
		for i, arg := range args {
			normalized[i] = Normalize(arg)
		}
		return b.call(normalized)
	}
}

// Functions lists the names available to expressions.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return strings.ToUpper(string(r)) + s[size:]
}

func stringsToList(parts []string) []any {
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

func builtinJoin(a []any) (any, error) {
	list, ok := a[0].([]any)
	if !ok {
		return Stringify(a[0]), nil
	}
	sep := ","
	if len(a) > 1 {
		sep = Stringify(a[1])
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = Stringify(v)
	}
	return strings.Join(parts, sep), nil
}

func includes(haystack, needle any) bool {
	switch h := Normalize(haystack).(type) {
	case string:
		return strings.Contains(h, Stringify(needle))
	case []any:
		for _, v := range h {
			if strictEqual(v, needle) {
				return true
			}
		}
	case map[string]any:
		key := Stringify(needle)
		if IsUnsafeKey(key) {
			return false
		}
		_, ok := h[key]
		return ok
	}
	return false
}

// clampIndex resolves a possibly negative offset against length n.
func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func substring(s string, bounds []any) string {
	runes := []rune(s)
	start := clampIndex(toInt(bounds[0]), len(runes))
	end := len(runes)
	if len(bounds) > 1 && bounds[1] != nil {
		end = clampIndex(toInt(bounds[1]), len(runes))
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

func builtinTruncate(a []any) (any, error) {
	s := Stringify(a[0])
	limit := toInt(a[1])
	suffix := "..."
	if len(a) > 2 {
		suffix = Stringify(a[2])
	}
	runes := []rune(s)
	if limit < 0 || len(runes) <= limit {
		return s, nil
	}
	return string(runes[:limit]) + suffix, nil
}

func repeat(s string, count int) (any, error) {
	if count <= 0 || s == "" {
		return "", nil
	}
	if len(s)*count > maxGeneratedLength {
		return nil, fmt.Errorf("repeat: result longer than %d bytes", maxGeneratedLength)
	}
	return strings.Repeat(s, count), nil
}

func pad(s string, args []any, start bool) (any, error) {
	width := toInt(args[0])
	if width > maxGeneratedLength {
		return nil, fmt.Errorf("pad: width larger than %d", maxGeneratedLength)
	}
	fill := " "
	if len(args) > 1 {
		fill = Stringify(args[1])
	}
	missing := width - utf8.RuneCountInString(s)
	if missing <= 0 || fill == "" {
		return s, nil
	}

	filler := []rune(strings.Repeat(fill, missing/utf8.RuneCountInString(fill)+1))[:missing]
	if start {
		return string(filler) + s, nil
	}
	return s + string(filler), nil
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func builtinToFixed(a []any) (any, error) {
	digits := 0
	if len(a) > 1 {
		digits = toInt(a[1])
	}
	if digits < 0 || digits > 100 {
		return nil, fmt.Errorf("toFixed: digits out of range")
	}
	return fmt.Sprintf("%.*f", digits, toNumber(a[0])), nil
}

func builtinRound(a []any) (any, error) {
	n := toNumber(a[0])
	digits := 0
	if len(a) > 1 {
		digits = toInt(a[1])
	}
	scale := math.Pow(10, float64(digits))
	return math.Round(n*scale) / scale, nil
}

// extreme returns the smallest (sign -1) or largest (sign 1) argument. A
// single list argument is expanded.
func extreme(a []any, sign int) any {
	if len(a) == 1 {
		if list, ok := a[0].([]any); ok {
			a = list
		}
	}
	if len(a) == 0 {
		return nil
	}
	best := toNumber(a[0])
	for _, v := range a[1:] {
		n := toNumber(v)
		if math.IsNaN(n) {
			return math.NaN()
		}
		if (sign > 0 && n > best) || (sign < 0 && n < best) {
			best = n
		}
	}
	return best
}

var dateTokens = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MMMM", "January",
	"MMM", "Jan",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

func builtinFormatDate(a []any) (any, error) {
	var t time.Time
	switch v := a[0].(type) {
	case float64:
		t = time.UnixMilli(int64(v)).UTC()
	case string:
		parsed, err := parseDate(v)
		if err != nil {
			return nil, err
		}
		t = parsed
	default:
		return nil, fmt.Errorf("formatDate: unsupported value")
	}

	layout := "YYYY-MM-DD"
	if len(a) > 1 {
		layout = Stringify(a[1])
	}
	return t.Format(dateTokens.Replace(layout)), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("formatDate: cannot parse %q", s)
}

func builtinParseJSON(a []any) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(Stringify(a[0])), &out); err != nil {
		return nil, fmt.Errorf("parseJson: %w", err)
	}
	return out, nil
}

func builtinLength(a []any) (any, error) {
	switch v := a[0].(type) {
	case string:
		return float64(utf8.RuneCountInString(v)), nil
	case []any:
		return float64(len(v)), nil
	case map[string]any:
		return float64(len(SortedKeys(v))), nil
	}
	return float64(0), nil
}

func builtinKeys(a []any) (any, error) {
	m, ok := a[0].(map[string]any)
	if !ok {
		return []any{}, nil
	}
	return stringsToList(SortedKeys(m)), nil
}

func builtinValues(a []any) (any, error) {
	m, ok := a[0].(map[string]any)
	if !ok {
		return []any{}, nil
	}
	keys := SortedKeys(m)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out, nil
}

func edge(v any, first bool) any {
	switch val := v.(type) {
	case []any:
		if len(val) == 0 {
			return nil
		}
		if first {
			return val[0]
		}
		return val[len(val)-1]
	case string:
		runes := []rune(val)
		if len(runes) == 0 {
			return nil
		}
		if first {
			return string(runes[0])
		}
		return string(runes[len(runes)-1])
	}
	return nil
}

func builtinReverse(a []any) (any, error) {
	switch v := a[0].(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[len(v)-1-i] = item
		}
		return out, nil
	case string:
		runes := []rune(v)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	}
	return a[0], nil
}

func builtinSort(a []any) (any, error) {
	list, ok := a[0].([]any)
	if !ok {
		return a[0], nil
	}
	out := append([]any(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		c, ok := compare(out[i], out[j])
		return ok && c < 0
	})
	return out, nil
}

func allTruthy(a []any) bool {
	for _, v := range a {
		if !Truthy(v) {
			return false
		}
	}
	return true
}

func anyTruthy(a []any) bool {
	for _, v := range a {
		if Truthy(v) {
			return true
		}
	}
	return false
}

func ordered(test func(int) bool) func([]any) (any, error) {
	return func(a []any) (any, error) {
		c, ok := compare(a[0], a[1])
		return ok && test(c), nil
	}
}

func isFiniteNumber(v any) bool {
	f, ok := v.(float64)
	return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// callMethod invokes one of the whitelisted methods on a string, list or
// number receiver.
func callMethod(recv any, name string, args []any) (any, error) {
	recv = Normalize(recv)
	for i, arg := range args {
		args[i] = Normalize(arg)
	}

	arg := func(i int) any {
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	switch v := recv.(type) {
	case string:
		switch name {
		case "toUpperCase":
			return strings.ToUpper(v), nil
		case "toLowerCase":
			return strings.ToLower(v), nil
		case "trim":
			return strings.TrimSpace(v), nil
		case "trimStart":
			return strings.TrimLeft(v, " \t\r\n"), nil
		case "trimEnd":
			return strings.TrimRight(v, " \t\r\n"), nil
		case "includes":
			return strings.Contains(v, Stringify(arg(0))), nil
		case "startsWith":
			return strings.HasPrefix(v, Stringify(arg(0))), nil
		case "endsWith":
			return strings.HasSuffix(v, Stringify(arg(0))), nil
		case "indexOf":
			idx := strings.Index(v, Stringify(arg(0)))
			if idx < 0 {
				return float64(-1), nil
			}
			return float64(utf8.RuneCountInString(v[:idx])), nil
		case "split":
			if arg(0) == nil {
				return []any{v}, nil
			}
			return stringsToList(strings.Split(v, Stringify(arg(0)))), nil
		case "slice", "substring":
			if len(args) == 0 {
				return v, nil
			}
			return substring(v, args), nil
		case "replace":
			return strings.Replace(v, Stringify(arg(0)), Stringify(arg(1)), 1), nil
		case "replaceAll":
			return strings.ReplaceAll(v, Stringify(arg(0)), Stringify(arg(1))), nil
		case "repeat":
			return repeat(v, toInt(arg(0)))
		case "padStart", "padEnd":
			if len(args) == 0 {
				return v, nil
			}
			return pad(v, args, name == "padStart")
		case "charAt":
			c := charAt(v, toInt(arg(0)))
			if c == nil {
				return "", nil
			}
			return c, nil
		case "concat":
			var b strings.Builder
			b.WriteString(v)
			for _, a := range args {
				b.WriteString(Stringify(a))
			}
			return b.String(), nil
		case "toString":
			return v, nil
		}

	case []any:
		switch name {
		case "join":
			if len(args) == 0 {
				return builtinJoin([]any{v})
			}
			return builtinJoin([]any{v, args[0]})
		case "includes":
			return includes(v, arg(0)), nil
		case "indexOf":
			for i, item := range v {
				if strictEqual(item, arg(0)) {
					return float64(i), nil
				}
			}
			return float64(-1), nil
		case "slice":
			start, end := 0, len(v)
			if len(args) > 0 {
				start = clampIndex(toInt(args[0]), len(v))
			}
			if len(args) > 1 && args[1] != nil {
				end = clampIndex(toInt(args[1]), len(v))
			}
			if start >= end {
				return []any{}, nil
			}
			return append([]any(nil), v[start:end]...), nil
		case "concat":
			out := append([]any(nil), v...)
			for _, a := range args {
				if list, ok := a.([]any); ok {
					out = append(out, list...)
				} else {
					out = append(out, a)
				}
			}
			return out, nil
		case "reverse":
			return builtinReverse([]any{v})
		case "toString":
			return builtinJoin([]any{v})
		}

	case float64:
		switch name {
		case "toFixed":
			return builtinToFixed(append([]any{v}, args...))
		case "toString":
			return formatNumber(v), nil
		}
	}

	return nil, fmt.Errorf("method %s is not available", name)
}
