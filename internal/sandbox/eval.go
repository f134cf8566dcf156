package sandbox

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"
)

// scope is the state visible to one evaluation.
type scope struct {
	ctx  context.Context
	vars map[string]any
}

func (s *scope) check() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return nil
}

// lookup resolves a top-level name against the caller's variables.
func (s *scope) lookup(name string) (any, bool) {
	if IsUnsafeKey(name) {
		return nil, false
	}
	v, ok := s.vars[name]
	if !ok {
		return nil, false
	}
	return Normalize(v), true
}

// namespace reports whether name should be treated as a built-in namespace
// such as Math. A caller variable of the same name takes precedence.
func (s *scope) namespace(name string) bool {
	if _, ok := namespaces[name]; !ok {
		return false
	}
	_, shadowed := s.vars[name]
	return !shadowed
}

func (n *literalNode) eval(s *scope) (any, error) {
	return n.value, s.check()
}

func (n *identNode) eval(s *scope) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	v, _ := s.lookup(n.name)
	return v, nil
}

func (n *listNode) eval(s *scope) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]any, 0, len(n.items))
	for _, item := range n.items {
		v, err := item.eval(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (n *objectNode) eval(s *scope) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(n.entries))
	for _, entry := range n.entries {
		v, err := entry.value.eval(s)
		if err != nil {
			return nil, err
		}
		if IsUnsafeKey(entry.key) {
			continue
		}
		out[entry.key] = v
	}
	return out, nil
}

func (n *memberNode) eval(s *scope) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	if ident, ok := n.object.(*identNode); ok && s.namespace(ident.name) {
		return constants[ident.name+"."+n.name], nil
	}

	obj, err := n.object.eval(s)
	if err != nil {
		return nil, err
	}
	v, _ := ownProperty(obj, n.name)
	return v, nil
}

func (n *indexNode) eval(s *scope) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	obj, err := n.object.eval(s)
	if err != nil {
		return nil, err
	}
	index, err := n.index.eval(s)
	if err != nil {
		return nil, err
	}

	if str, ok := obj.(string); ok {
		if f, ok := index.(float64); ok {
			return charAt(str, int(f)), nil
		}
	}

	v, _ := ownProperty(obj, propertyKey(index))
	return v, nil
}

func propertyKey(index any) string {
	if f, ok := index.(float64); ok && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return fmt.Sprintf("%d", int64(f))
	}
	return Stringify(index)
}

// charAt returns the character at rune offset i, or nil when out of range.
func charAt(s string, i int) any {
	if i < 0 || i >= utf8.RuneCountInString(s) {
		return nil
	}
	return string([]rune(s)[i])
}

func (n *callNode) eval(s *scope) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	switch callee := n.callee.(type) {
	case *identNode:
		fn, ok := functions[callee.name]
		if !ok {
			return nil, fmt.Errorf("%s is not an available function", callee.name)
		}
		args, err := evalArgs(s, n.args)
		if err != nil {
			return nil, err
		}
		return fn(args)

	case *memberNode:
		if ident, ok := callee.object.(*identNode); ok && s.namespace(ident.name) {
			name := ident.name + "." + callee.name
			fn, ok := functions[name]
			if !ok {
				return nil, fmt.Errorf("%s is not an available function", name)
			}
			args, err := evalArgs(s, n.args)
			if err != nil {
				return nil, err
			}
			return fn(args)
		}

		if IsUnsafeKey(callee.name) {
			return nil, fmt.Errorf("method %s is not available", callee.name)
		}
		recv, err := callee.object.eval(s)
		if err != nil {
			return nil, err
		}
		args, err := evalArgs(s, n.args)
		if err != nil {
			return nil, err
		}
		return callMethod(recv, callee.name, args)
	}

	return nil, fmt.Errorf("%s is not callable", n.callee.String())
}

func evalArgs(s *scope, nodes []node) ([]any, error) {
	args := make([]any, len(nodes))
	for i, arg := range nodes {
		v, err := arg.eval(s)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (n *unaryNode) eval(s *scope) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	v, err := n.operand.eval(s)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "!":
		return !Truthy(v), nil
	case "-":
		return -toNumber(v), nil
	case "+":
		return toNumber(v), nil
	}
	return nil, fmt.Errorf("unknown unary operator %s", n.op)
}

func (n *ternaryNode) eval(s *scope) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	cond, err := n.cond.eval(s)
	if err != nil {
		return nil, err
	}
	if Truthy(cond) {
		return n.then.eval(s)
	}
	return n.otherwise.eval(s)
}

func (n *binaryNode) eval(s *scope) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	left, err := n.left.eval(s)
	if err != nil {
		return nil, err
	}

	// Short-circuit operators return one of their operands.
	switch n.op {
	case "&&":
		if !Truthy(left) {
			return left, nil
		}
		return n.right.eval(s)
	case "||":
		if Truthy(left) {
			return left, nil
		}
		return n.right.eval(s)
	case "??":
		if left != nil {
			return left, nil
		}
		return n.right.eval(s)
	}

	right, err := n.right.eval(s)
	if err != nil {
		return nil, err
	}
	return binaryOperation(n.op, left, right)
}

func binaryOperation(op string, left, right any) (any, error) {
	switch op {
	case "+":
		return add(left, right), nil
	case "-":
		return toNumber(left) - toNumber(right), nil
	case "*":
		return toNumber(left) * toNumber(right), nil
	case "/":
		return toNumber(left) / toNumber(right), nil
	case "%":
		return math.Mod(toNumber(left), toNumber(right)), nil
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "===":
		return strictEqual(left, right), nil
	case "!==":
		return !strictEqual(left, right), nil
	case "<", "<=", ">", ">=":
		c, ok := compare(left, right)
		if !ok {
			return false, nil
		}
		switch op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

// add concatenates when either side is text or a composite, otherwise sums.
func add(left, right any) any {
	left, right = Normalize(left), Normalize(right)
	switch left.(type) {
	case string, []any, map[string]any:
		return Stringify(left) + Stringify(right)
	}
	switch right.(type) {
	case string, []any, map[string]any:
		return Stringify(left) + Stringify(right)
	}
	return toNumber(left) + toNumber(right)
}
