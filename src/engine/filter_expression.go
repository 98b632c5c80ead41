package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clientdesk/src/helpers"
	"clientdesk/src/models"

	"github.com/araddon/dateparse"
)

// Define errors
var (
	ErrInvalidFilterExpression = errors.New("invalid filter expression")
)

// expressionOperators maps the operators accepted in filter expressions to
// filter operators. Keys are lower case.
var expressionOperators = map[string]models.FilterOperator{
	"==":          models.OpEquals,
	"=":           models.OpEquals,
	"!=":          models.OpNotEquals,
	"<>":          models.OpNotEquals,
	">":           models.OpGt,
	">=":          models.OpGte,
	"<":           models.OpLt,
	"<=":          models.OpLte,
	"contains":    models.OpContains,
	"notcontains": models.OpNotContains,
	"startswith":  models.OpStartsWith,
	"endswith":    models.OpEndsWith,
	"in":          models.OpIn,
	"notin":       models.OpNotIn,
}

// ParseFilterExpression turns a one-line expression such as
//
//	amount > 100 AND status == "paid"
//
// into a FilterGroup. Conditions are "field operator value" or
// "field isEmpty" / "field isNotEmpty". Groups are single level, so AND and
// OR cannot be mixed. The data type of each condition is taken from its
// value: quoted text, true/false, a number, or an unquoted date.
func ParseFilterExpression(expr string) (models.FilterGroup, error) {
	group := models.FilterGroup{Logic: models.LogicAnd}
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(strings.ToUpper(expr), "WHERE ") {
		expr = strings.TrimSpace(expr[6:])
	}
	tokens := tokenizeFilterExpression(expr)
	if len(tokens) == 0 {
		return group, nil
	}

	var logic models.FilterLogic
	pos := 0
	for pos < len(tokens) {
		if pos+1 >= len(tokens) {
			return group, fmt.Errorf("%w: incomplete condition at %q", ErrInvalidFilterExpression, tokens[pos])
		}
		field := helpers.StripQuotes(tokens[pos])
		opToken := strings.ToLower(tokens[pos+1])

		var cond models.FilterCondition
		switch opToken {
		case "isempty", "isnotempty":
			op := models.OpIsEmpty
			if opToken == "isnotempty" {
				op = models.OpIsNotEmpty
			}
			cond = models.FilterCondition{Field: field, Operator: op, DataType: models.DataText}
			pos += 2
		default:
			op, ok := expressionOperators[opToken]
			if !ok {
				return group, fmt.Errorf("%w: unknown operator %q", ErrInvalidFilterExpression, tokens[pos+1])
			}
			if pos+2 >= len(tokens) {
				return group, fmt.Errorf("%w: missing value after %q", ErrInvalidFilterExpression, tokens[pos+1])
			}
			value, dataType := parseFilterValue(tokens[pos+2])
			if op == models.OpIn || op == models.OpNotIn {
				value = helpers.StripQuotes(tokens[pos+2])
				dataType = models.DataText
			}
			cond = models.FilterCondition{Field: field, Operator: op, Value: value, DataType: dataType}
			pos += 3
		}
		group.Conditions = append(group.Conditions, cond)

		if pos >= len(tokens) {
			break
		}
		joiner := models.FilterLogic(strings.ToUpper(tokens[pos]))
		if joiner != models.LogicAnd && joiner != models.LogicOr {
			return group, fmt.Errorf("%w: expected AND or OR, got %q", ErrInvalidFilterExpression, tokens[pos])
		}
		if logic != "" && joiner != logic {
			return group, fmt.Errorf("%w: cannot mix AND and OR in one group", ErrInvalidFilterExpression)
		}
		logic = joiner
		pos++
		if pos >= len(tokens) {
			return group, fmt.Errorf("%w: dangling %s", ErrInvalidFilterExpression, joiner)
		}
	}
	if logic != "" {
		group.Logic = logic
	}
	return group, nil
}

// tokenizeFilterExpression splits on whitespace outside quotes. Operators
// written without surrounding spaces ("amount>100") are split out too.
func tokenizeFilterExpression(expr string) []string {
	var tokens []string
	var current strings.Builder
	var quote byte

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(expr); i++ {
		ch := expr[i]

		if quote != 0 {
			current.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '"' || ch == '\'':
			current.WriteByte(ch)
			quote = ch
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		case strings.IndexByte("=!<>", ch) >= 0:
			flush()
			op := string(ch)
			if i+1 < len(expr) && strings.IndexByte("=>", expr[i+1]) >= 0 {
				op += string(expr[i+1])
				i++
			}
			tokens = append(tokens, op)
		default:
			current.WriteByte(ch)
		}
	}
	flush()
	return tokens
}

func parseFilterValue(token string) (interface{}, models.FilterDataType) {
	if helpers.IsQuoted(token) {
		return helpers.StripQuotes(token), models.DataText
	}
	switch strings.ToLower(token) {
	case "true":
		return true, models.DataBoolean
	case "false":
		return false, models.DataBoolean
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, models.DataNumber
	}
	if _, err := dateparse.ParseIn(token, time.UTC); err == nil {
		return token, models.DataDate
	}
	return token, models.DataText
}
