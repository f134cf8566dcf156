package sandbox

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// unsafeKeys are never resolved from a context, a map or a path segment.
var unsafeKeys = map[string]struct{}{
	"__proto__":        {},
	"constructor":      {},
	"prototype":        {},
	"__defineGetter__": {},
	"__defineSetter__": {},
	"__lookupGetter__": {},
	"__lookupSetter__": {},
}

// blockedIdentifiers name ambient host capabilities. An expression that
// mentions any of them is rejected as a whole.
var blockedIdentifiers = map[string]struct{}{
	"process":        {},
	"global":         {},
	"globalThis":     {},
	"window":         {},
	"self":           {},
	"this":           {},
	"console":        {},
	"require":        {},
	"module":         {},
	"exports":        {},
	"import":         {},
	"Buffer":         {},
	"setTimeout":     {},
	"setInterval":    {},
	"setImmediate":   {},
	"clearTimeout":   {},
	"clearInterval":  {},
	"clearImmediate": {},
	"queueMicrotask": {},
	"eval":           {},
	"Function":       {},
	"Reflect":        {},
	"Proxy":          {},
	"__dirname":      {},
	"__filename":     {},
}

// IsUnsafeKey reports whether name is on the unsafe-key list.
func IsUnsafeKey(name string) bool {
	_, ok := unsafeKeys[name]
	return ok
}

// IsBlockedIdentifier reports whether name refers to an ambient capability.
func IsBlockedIdentifier(name string) bool {
	_, ok := blockedIdentifiers[name]
	return ok
}

// Normalize converts host values into the evaluator's value model: nil,
// bool, float64, string, []any and map[string]any. Conversion is shallow;
// nested elements are normalized when they are reached.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, float64, string, []any, map[string]any:
		return val
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fromJSON(v)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Struct:
		return fromJSON(v)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil
	}
	return fromJSON(v)
}

// fromJSON round-trips structs and odd maps through encoding/json so their
// exported fields become an ordinary map.
func fromJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// ownProperty looks key up directly on v. Only own data is visible: map
// entries, list indices and the length of lists and strings.
func ownProperty(v any, key string) (any, bool) {
	if IsUnsafeKey(key) {
		return nil, false
	}

	switch val := Normalize(v).(type) {
	case map[string]any:
		out, ok := val[key]
		if !ok {
			return nil, false
		}
		return Normalize(out), true
	case []any:
		if key == "length" {
			return float64(len(val)), true
		}
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(val) {
			return nil, false
		}
		return Normalize(val[idx]), true
	case string:
		if key == "length" {
			return float64(utf8.RuneCountInString(val)), true
		}
	}
	return nil, false
}

// GetByPath walks a dotted path such as "user.address.city" one segment at a
// time. It stops and reports false on a nil value, an unsafe segment, or a
// segment the current value does not own.
func GetByPath(obj any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	current := obj
	for _, segment := range strings.Split(path, ".") {
		if current == nil {
			return nil, false
		}
		next, ok := ownProperty(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Stringify renders a value for inclusion in output: nil becomes "", maps and
// lists become JSON ("" if encoding fails), numbers use their shortest form.
func Stringify(v any) string {
	switch val := Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatNumber(val)
	case []any, map[string]any:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return ""
		}
		return strings.TrimSuffix(buf.String(), "\n")
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Truthy applies the usual template truthiness: nil, false, 0, NaN and ""
// are false; everything else, including empty lists and maps, is true.
func Truthy(v any) bool {
	switch val := Normalize(v).(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0 && !math.IsNaN(val)
	case string:
		return val != ""
	default:
		return true
	}
}

// IsEmpty reports whether v is nil, an empty list or an empty map.
func IsEmpty(v any) bool {
	switch val := Normalize(v).(type) {
	case nil:
		return true
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// SortedKeys returns the keys of m in lexical order, skipping unsafe keys.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if IsUnsafeKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toNumber(v any) float64 {
	switch val := Normalize(v).(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case float64:
		return val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func toInt(v any) int {
	f := toNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

func strictEqual(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

func looseEqual(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	_, aStr := a.(string)
	_, bStr := b.(string)
	_, aNum := a.(float64)
	_, bNum := b.(float64)
	_, aBool := a.(bool)
	_, bBool := b.(bool)
	if (aNum && bStr) || (aStr && bNum) || aBool || bBool {
		if aBool && bBool {
			return a == b
		}
		return toNumber(a) == toNumber(b)
	}
	return strictEqual(a, b)
}

// compare returns -1, 0 or 1; ok is false when the values are not ordered
// (a NaN was involved).
func compare(a, b any) (int, bool) {
	a, b = Normalize(a), Normalize(b)
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs), true
	}
	x, y := toNumber(a), toNumber(b)
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}
