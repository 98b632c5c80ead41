package engine

import (
	"strconv"
	"strings"
)

// Node is a parsed formula expression.
type Node interface {
	Pos() int
}

type NumberLit struct {
	At    int
	Value float64
}

type StringLit struct {
	At    int
	Value string
}

// ColumnRef is a bare identifier. It resolves to the row value of that
// column, or to its own name as text when no such column exists.
type ColumnRef struct {
	At   int
	Name string
}

type UnaryExpr struct {
	At int
	Op string
	X  Node
}

type BinaryExpr struct {
	At    int
	Op    string
	Left  Node
	Right Node
}

// CallExpr is a function call; Name is upper-cased.
type CallExpr struct {
	At   int
	Name string
	Args []Node
}

func (n *NumberLit) Pos() int  { return n.At }
func (n *StringLit) Pos() int  { return n.At }
func (n *ColumnRef) Pos() int  { return n.At }
func (n *UnaryExpr) Pos() int  { return n.At }
func (n *BinaryExpr) Pos() int { return n.At }
func (n *CallExpr) Pos() int   { return n.At }

// ParseFormula parses expression text into an AST.
//
//	expr       := comparison
//	comparison := additive [ ("=="|"="|"!="|"<>"|">"|">="|"<"|"<=") additive ]
//	additive   := term { ("+"|"-") term }
//	term       := unary { ("*"|"/") unary }
//	unary      := ("-"|"+") unary | primary
//	primary    := NUMBER | STRING | IDENT | IDENT "(" [expr {"," expr}] ")" | "(" expr ")"
func ParseFormula(src string) (Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, formulaErrorf(0, "empty formula")
	}
	// A leading '=' is how formulas are often typed into a cell.
	trimmed := strings.TrimLeft(src, " \t")
	if strings.HasPrefix(trimmed, "=") && !strings.HasPrefix(trimmed, "==") {
		src = strings.Replace(src, "=", " ", 1)
	}

	tokens, err := tokenizeFormula(src)
	if err != nil {
		return nil, err
	}
	p := &formulaParser{tokens: tokens}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, formulaErrorf(tok.pos, "unexpected %q", tok.text)
	}
	return node, nil
}

type formulaParser struct {
	tokens []token
	pos    int
}

func (p *formulaParser) peek() token {
	return p.tokens[p.pos]
}

func (p *formulaParser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *formulaParser) parseExpr() (Node, error) {
	return p.parseComparison()
}

func (p *formulaParser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind == tokOperator {
		switch tok.text {
		case "==", "=", "!=", "<>", ">", ">=", "<", "<=":
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			op := tok.text
			if op == "=" {
				op = "=="
			} else if op == "<>" {
				op = "!="
			}
			return &BinaryExpr{At: tok.pos, Op: op, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *formulaParser) parseAdditive() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOperator || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{At: tok.pos, Op: tok.text, Left: left, Right: right}
	}
}

func (p *formulaParser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOperator || (tok.text != "*" && tok.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{At: tok.pos, Op: tok.text, Left: left, Right: right}
	}
}

func (p *formulaParser) parseUnary() (Node, error) {
	tok := p.peek()
	if tok.kind == tokOperator && (tok.text == "-" || tok.text == "+") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{At: tok.pos, Op: tok.text, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *formulaParser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, formulaErrorf(tok.pos, "invalid number %q", tok.text)
		}
		return &NumberLit{At: tok.pos, Value: f}, nil

	case tokString:
		return &StringLit{At: tok.pos, Value: tok.text}, nil

	case tokIdent:
		if p.peek().kind == tokLParen {
			p.next()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &CallExpr{At: tok.pos, Name: strings.ToUpper(tok.text), Args: args}, nil
		}
		return &ColumnRef{At: tok.pos, Name: tok.text}, nil

	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, formulaErrorf(closing.pos, "expected ')'")
		}
		return inner, nil

	case tokEOF:
		return nil, formulaErrorf(tok.pos, "unexpected end of formula")

	default:
		return nil, formulaErrorf(tok.pos, "unexpected %q", tok.text)
	}
}

// parseArgs reads a call's argument list; the opening paren is consumed.
func (p *formulaParser) parseArgs() ([]Node, error) {
	var args []Node
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok := p.next()
		switch tok.kind {
		case tokComma:
			continue
		case tokRParen:
			return args, nil
		default:
			return nil, formulaErrorf(tok.pos, "expected ',' or ')' in argument list")
		}
	}
}

// ExtractColumnReferences lists the distinct identifiers a formula reads, in
// order of first appearance. Function names and string literals (such as
// LOOKUP's table argument) are not included.
func ExtractColumnReferences(expr string) []string {
	node, err := ParseFormula(expr)
	if err != nil {
		return nil
	}
	var refs []string
	seen := make(map[string]bool)
	var walk func(Node)
	walk = func(n Node) {
		switch t := n.(type) {
		case *ColumnRef:
			if !seen[t.Name] {
				seen[t.Name] = true
				refs = append(refs, t.Name)
			}
		case *UnaryExpr:
			walk(t.X)
		case *BinaryExpr:
			walk(t.Left)
			walk(t.Right)
		case *CallExpr:
			for _, a := range t.Args {
				walk(a)
			}
		}
	}
	walk(node)
	return refs
}
