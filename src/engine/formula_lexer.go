package engine

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokLParen
	tokRParen
	tokComma
	tokOperator
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// FormulaError describes a malformed formula or a runtime failure inside
// one. It never escapes Evaluate; it is logged and the formula yields null.
type FormulaError struct {
	Pos int
	Msg string
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("formula error at %d: %s", e.Pos, e.Msg)
}

func formulaErrorf(pos int, format string, args ...interface{}) *FormulaError {
	return &FormulaError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// tokenizeFormula splits a formula into tokens. Identifiers may contain
// letters of any script, digits, '_' and '.'; names with spaces are written
// as [Column Name].
func tokenizeFormula(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size

		case r >= '0' && r <= '9' || (r == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9'):
			start := i
			seenDot := false
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || (src[i] == '.' && !seenDot)) {
				if src[i] == '.' {
					seenDot = true
				}
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: src[start:i], pos: start})

		case r == '"' || r == '\'':
			start := i
			quote := src[i]
			i++
			var sb strings.Builder
			closed := false
			for i < len(src) {
				if src[i] == '\\' && i+1 < len(src) {
					sb.WriteByte(src[i+1])
					i += 2
					continue
				}
				if src[i] == quote {
					closed = true
					i++
					break
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, formulaErrorf(start, "unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String(), pos: start})

		case r == '[':
			start := i
			end := strings.IndexByte(src[i:], ']')
			if end < 0 {
				return nil, formulaErrorf(start, "unterminated column reference")
			}
			name := strings.TrimSpace(src[i+1 : i+end])
			if name == "" {
				return nil, formulaErrorf(start, "empty column reference")
			}
			tokens = append(tokens, token{kind: tokIdent, text: name, pos: start})
			i += end + 1

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || unicode.Is(unicode.Mn, r)) {
					break
				}
				i += size
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start})

		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++

		case strings.ContainsRune("+-*/<>=!", r):
			start := i
			op := string(r)
			if i+1 < len(src) {
				two := src[i : i+2]
				switch two {
				case ">=", "<=", "==", "!=", "<>":
					op = two
				}
			}
			if op == "!" {
				return nil, formulaErrorf(start, "unexpected '!'")
			}
			i += len(op)
			tokens = append(tokens, token{kind: tokOperator, text: op, pos: start})

		default:
			return nil, formulaErrorf(i, "unexpected character %q", r)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}
