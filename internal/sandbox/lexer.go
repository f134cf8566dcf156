package sandbox

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdentifier
	tokenNumber
	tokenString
	tokenOperator
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of expression"
	case tokenIdentifier:
		return "identifier"
	case tokenNumber:
		return "number"
	case tokenString:
		return "string"
	case tokenOperator:
		return "operator"
	}
	return "unknown"
}

type token struct {
	Type  tokenType
	Value string
	Pos   int
}

// operators is ordered longest first so the scanner is greedy.
var operators = []string{
	"===", "!==",
	"==", "!=", "<=", ">=", "&&", "||", "??", "?.",
	"+", "-", "*", "/", "%", "<", ">", "!", "?", ":",
	".", ",", "(", ")", "[", "]", "{", "}",
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	pos := 0

	for pos < len(expr) {
		r, size := utf8.DecodeRuneInString(expr[pos:])
		if unicode.IsSpace(r) {
			pos += size
			continue
		}

		switch {
		case isIdentStart(r):
			start := pos
			for pos < len(expr) {
				r, size = utf8.DecodeRuneInString(expr[pos:])
				if !isIdentPart(r) {
					break
				}
				pos += size
			}
			tokens = append(tokens, token{Type: tokenIdentifier, Value: expr[start:pos], Pos: start})
			continue

		case isDigit(r) || (r == '.' && pos+1 < len(expr) && isDigit(rune(expr[pos+1]))):
			end := scanNumber(expr, pos)
			tokens = append(tokens, token{Type: tokenNumber, Value: expr[pos:end], Pos: pos})
			pos = end
			continue

		case r == '"' || r == '\'' || r == '`':
			value, end, err := scanString(expr, pos)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{Type: tokenString, Value: value, Pos: pos})
			pos = end
			continue
		}

		matched := false
		for _, op := range operators {
			if strings.HasPrefix(expr[pos:], op) {
				// "?." followed by a digit is a ternary with a decimal, not
				// optional chaining.
				if op == "?." && pos+2 < len(expr) && isDigit(rune(expr[pos+2])) {
					continue
				}
				tokens = append(tokens, token{Type: tokenOperator, Value: op, Pos: pos})
				pos += len(op)
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("unexpected character %q at position %d", r, pos)
		}
	}

	tokens = append(tokens, token{Type: tokenEOF, Pos: len(expr)})
	return tokens, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func scanNumber(expr string, pos int) int {
	end := pos
	for end < len(expr) && isDigit(rune(expr[end])) {
		end++
	}
	if end < len(expr) && expr[end] == '.' {
		end++
		for end < len(expr) && isDigit(rune(expr[end])) {
			end++
		}
	}
	if end < len(expr) && (expr[end] == 'e' || expr[end] == 'E') {
		exp := end + 1
		if exp < len(expr) && (expr[exp] == '+' || expr[exp] == '-') {
			exp++
		}
		if exp < len(expr) && isDigit(rune(expr[exp])) {
			end = exp
			for end < len(expr) && isDigit(rune(expr[end])) {
				end++
			}
		}
	}
	return end
}

// scanString reads a quoted literal starting at pos and returns its
// unescaped value and the offset just past the closing quote.
func scanString(expr string, pos int) (string, int, error) {
	quote := expr[pos]
	var b strings.Builder

	i := pos + 1
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(expr):
			i++
			switch expr[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'u':
				if i+4 < len(expr) {
					if code, err := strconv.ParseUint(expr[i+1:i+5], 16, 32); err == nil {
						b.WriteRune(rune(code))
						i += 5
						continue
					}
				}
				b.WriteByte('u')
			default:
				b.WriteByte(expr[i])
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}

	return "", 0, fmt.Errorf("unterminated string starting at position %d", pos)
}
