package sandbox

import (
	"fmt"
	"strconv"
)

// node is one element of a parsed expression.
type node interface {
	String() string
	eval(s *scope) (any, error)
}

type literalNode struct{ value any }

type identNode struct{ name string }

type listNode struct{ items []node }

type objectEntry struct {
	key   string
	value node
}

type objectNode struct{ entries []objectEntry }

type memberNode struct {
	object node
	name   string
}

type indexNode struct {
	object node
	index  node
}

type callNode struct {
	callee node
	args   []node
}

type unaryNode struct {
	op      string
	operand node
}

type binaryNode struct {
	op          string
	left, right node
}

type ternaryNode struct {
	cond, then, otherwise node
}

func (n *literalNode) String() string {
	if s, ok := n.value.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprintf("%v", n.value)
}

func (n *identNode) String() string  { return n.name }
func (n *listNode) String() string   { return fmt.Sprintf("List(%d)", len(n.items)) }
func (n *objectNode) String() string { return fmt.Sprintf("Object(%d)", len(n.entries)) }
func (n *memberNode) String() string { return n.object.String() + "." + n.name }
func (n *indexNode) String() string  { return n.object.String() + "[" + n.index.String() + "]" }
func (n *callNode) String() string   { return n.callee.String() + "(...)" }
func (n *unaryNode) String() string  { return "(" + n.op + n.operand.String() + ")" }
func (n *binaryNode) String() string {
	return "(" + n.left.String() + " " + n.op + " " + n.right.String() + ")"
}
func (n *ternaryNode) String() string {
	return "(" + n.cond.String() + " ? " + n.then.String() + " : " + n.otherwise.String() + ")"
}

// forbiddenRefError rejects an expression that names a blocked identifier.
type forbiddenRefError struct{ name string }

func (e *forbiddenRefError) Error() string {
	return fmt.Sprintf("reference to %q is not allowed", e.name)
}

func (e *forbiddenRefError) forbidden() bool { return true }

// maxParseDepth bounds nesting so hostile input cannot exhaust the stack.
const maxParseDepth = 64

type parser struct {
	tokens []token
	pos    int
	depth  int
}

// parse turns an expression into a tree. Any reference to a blocked
// identifier fails the whole parse.
func parse(expr string) (node, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	n, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if tok := p.current(); tok.Type != tokenEOF {
		return nil, fmt.Errorf("unexpected %s %q at position %d", tok.Type, tok.Value, tok.Pos)
	}
	return n, nil
}

func (p *parser) current() token {
	if p.pos >= len(p.tokens) {
		return token{Type: tokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *parser) isOperator(values ...string) bool {
	tok := p.current()
	if tok.Type != tokenOperator {
		return false
	}
	for _, v := range values {
		if tok.Value == v {
			return true
		}
	}
	return false
}

func (p *parser) expect(op string) error {
	if !p.isOperator(op) {
		tok := p.current()
		return fmt.Errorf("expected %q at position %d, found %q", op, tok.Pos, tok.Value)
	}
	p.advance()
	return nil
}

func (p *parser) parseExpression() (node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxParseDepth {
		return nil, fmt.Errorf("expression nested too deeply")
	}
	return p.parseTernary()
}

func (p *parser) parseTernary() (node, error) {
	cond, err := p.parseNullish()
	if err != nil {
		return nil, err
	}
	if !p.isOperator("?") {
		return cond, nil
	}
	p.advance()

	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	otherwise, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ternaryNode{cond: cond, then: then, otherwise: otherwise}, nil
}

// parseBinary handles one left-associative precedence level.
func (p *parser) parseBinary(next func() (node, error), ops ...string) (node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.isOperator(ops...) {
		op := p.current().Value
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNullish() (node, error) {
	return p.parseBinary(p.parseOr, "??")
}

func (p *parser) parseOr() (node, error) {
	return p.parseBinary(p.parseAnd, "||")
}

func (p *parser) parseAnd() (node, error) {
	return p.parseBinary(p.parseEquality, "&&")
}

func (p *parser) parseEquality() (node, error) {
	return p.parseBinary(p.parseComparison, "===", "!==", "==", "!=")
}

func (p *parser) parseComparison() (node, error) {
	return p.parseBinary(p.parseAdditive, "<", "<=", ">", ">=")
}

func (p *parser) parseAdditive() (node, error) {
	return p.parseBinary(p.parseMultiplicative, "+", "-")
}

func (p *parser) parseMultiplicative() (node, error) {
	return p.parseBinary(p.parseUnary, "*", "/", "%")
}

func (p *parser) parseUnary() (node, error) {
	if p.isOperator("!", "-", "+") {
		op := p.current().Value
		p.advance()

		p.depth++
		defer func() { p.depth-- }()
		if p.depth > maxParseDepth {
			return nil, fmt.Errorf("expression nested too deeply")
		}

		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.isOperator(".", "?."):
			p.advance()
			tok := p.current()
			if tok.Type != tokenIdentifier {
				return nil, fmt.Errorf("expected property name at position %d", tok.Pos)
			}
			p.advance()
			n = &memberNode{object: n, name: tok.Value}

		case p.isOperator("["):
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			n = &indexNode{object: n, index: index}

		case p.isOperator("("):
			p.advance()
			args, err := p.parseList(")")
			if err != nil {
				return nil, err
			}
			n = &callNode{callee: n, args: args}

		default:
			return n, nil
		}
	}
}

// parseList reads comma separated expressions up to the closing operator.
// A trailing comma is accepted.
func (p *parser) parseList(closing string) ([]node, error) {
	var items []node
	for !p.isOperator(closing) {
		item, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		if p.isOperator(",") {
			p.advance()
			continue
		}
		if !p.isOperator(closing) {
			tok := p.current()
			return nil, fmt.Errorf("expected %q or \",\" at position %d", closing, tok.Pos)
		}
	}
	p.advance()
	return items, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.current()

	switch tok.Type {
	case tokenNumber:
		p.advance()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", tok.Value)
		}
		return &literalNode{value: f}, nil

	case tokenString:
		p.advance()
		return &literalNode{value: tok.Value}, nil

	case tokenIdentifier:
		p.advance()
		switch tok.Value {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null", "undefined":
			return &literalNode{value: nil}, nil
		}
		if IsBlockedIdentifier(tok.Value) {
			return nil, &forbiddenRefError{name: tok.Value}
		}
		return &identNode{name: tok.Value}, nil

	case tokenOperator:
		switch tok.Value {
		case "(":
			p.advance()
			n, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return n, nil

		case "[":
			p.advance()
			items, err := p.parseList("]")
			if err != nil {
				return nil, err
			}
			return &listNode{items: items}, nil

		case "{":
			p.advance()
			return p.parseObject()
		}
	}

	if tok.Type == tokenEOF {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %s %q at position %d", tok.Type, tok.Value, tok.Pos)
}

func (p *parser) parseObject() (node, error) {
	obj := &objectNode{}
	for !p.isOperator("}") {
		tok := p.current()
		var key string
		switch tok.Type {
		case tokenIdentifier, tokenString, tokenNumber:
			key = tok.Value
		default:
			return nil, fmt.Errorf("expected property key at position %d", tok.Pos)
		}
		p.advance()

		if err := p.expect(":"); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		obj.entries = append(obj.entries, objectEntry{key: key, value: value})

		if p.isOperator(",") {
			p.advance()
			continue
		}
		if !p.isOperator("}") {
			tok := p.current()
			return nil, fmt.Errorf("expected \"}\" or \",\" at position %d", tok.Pos)
		}
	}
	p.advance()
	return obj, nil
}
