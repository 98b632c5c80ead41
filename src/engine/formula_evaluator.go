package engine

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"clientdesk/src/helpers"
	"clientdesk/src/models"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
)

// Evaluator evaluates row-level formulas. It is safe for concurrent use;
// parsed formulas are cached by their text.
type Evaluator struct {
	lookups   RecordFetcher
	functions *FunctionRegistry
	now       func() time.Time
	logger    *zap.SugaredLogger
}

type parsedFormula struct {
	node Node
	err  error
}

// maxParsedFormulaBytes caps the total formula text held by the parse cache.
const maxParsedFormulaBytes = 4 << 20

var (
	parseCacheOnce sync.Once
	parseCache     *ristretto.Cache[string, parsedFormula]
)

// formulaASTs returns the process-wide parse cache, or nil if it could not
// be built. An AST depends only on the formula text, so every Evaluator
// shares it.
func formulaASTs() *ristretto.Cache[string, parsedFormula] {
	parseCacheOnce.Do(func() {
		c, err := ristretto.NewCache(&ristretto.Config[string, parsedFormula]{
			NumCounters:        1e5,
			MaxCost:            maxParsedFormulaBytes,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			zap.S().Warnw("formula parse cache disabled", "error", err)
			return
		}
		parseCache = c
	})
	return parseCache
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithClock replaces time.Now for TODAY, NOW and date arithmetic.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// WithLookupSource lets LOOKUP read other modules.
func WithLookupSource(source RecordFetcher) EvaluatorOption {
	return func(e *Evaluator) { e.lookups = source }
}

// WithFunctions swaps the function registry.
func WithFunctions(registry *FunctionRegistry) EvaluatorOption {
	return func(e *Evaluator) { e.functions = registry }
}

func NewEvaluator(logger *zap.SugaredLogger, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		functions: defaultFunctions,
		now:       time.Now,
		logger:    helpers.OrNop(logger),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BindLookups returns a copy of e whose LOOKUP reads from source.
func (e *Evaluator) BindLookups(source RecordFetcher) *Evaluator {
	return &Evaluator{
		lookups:   source,
		functions: e.functions,
		now:       e.now,
		logger:    e.logger,
	}
}

var defaultEvaluator = NewEvaluator(nil)

// EvaluateFormula evaluates expr against one row's values without access to
// other modules. Malformed formulas yield null.
func EvaluateFormula(expr string, columnValues map[string]interface{}) models.Value {
	v, _ := defaultEvaluator.Evaluate(context.Background(), expr, columnValues)
	return v
}

// Parse returns the AST for expr, from the parse cache when it holds one.
// The cache is bounded; rarely used formulas are evicted and reparsed.
func (e *Evaluator) Parse(expr string) (Node, error) {
	cache := formulaASTs()
	if cache == nil {
		return ParseFormula(expr)
	}
	if p, ok := cache.Get(expr); ok {
		return p.node, p.err
	}
	node, err := ParseFormula(expr)
	cache.Set(expr, parsedFormula{node: node, err: err}, int64(len(expr))+1)
	return node, err
}

// Evaluate evaluates expr against columnValues. Formula problems (syntax,
// unknown functions, bad dates, division by zero) are logged and produce a
// null value with a nil error. The only error returned is a StoreError from
// LOOKUP, since a lookup that could not read its table is not "no match".
func (e *Evaluator) Evaluate(ctx context.Context, expr string, columnValues map[string]interface{}) (models.Value, error) {
	node, err := e.Parse(expr)
	if err != nil {
		e.logger.Debugw("formula parse failed", "expression", expr, "error", err)
		return models.Null(), nil
	}

	scope := &evalScope{ctx: ctx, ev: e, values: columnValues}
	v, err := scope.eval(node)
	if err != nil {
		if IsStoreError(err) {
			e.logger.Errorw("formula lookup failed", "expression", expr, "error", err)
			return models.Null(), err
		}
		e.logger.Debugw("formula evaluation failed", "expression", expr, "error", err)
		return models.Null(), nil
	}
	if _, ok := v.AsNumber(); v.IsNumber() && !ok {
		return models.Null(), nil
	}
	return v, nil
}

type evalScope struct {
	ctx    context.Context
	ev     *Evaluator
	values map[string]interface{}
}

func (s *evalScope) eval(n Node) (models.Value, error) {
	switch t := n.(type) {
	case *NumberLit:
		return models.Number(t.Value), nil
	case *StringLit:
		return models.Text(t.Value), nil
	case *ColumnRef:
		return s.resolveColumn(t.Name), nil
	case *UnaryExpr:
		x, err := s.eval(t.X)
		if err != nil {
			return models.Null(), err
		}
		if t.Op == "-" {
			return models.Number(-x.NumberOrZero()), nil
		}
		return models.Number(x.NumberOrZero()), nil
	case *BinaryExpr:
		return s.evalBinary(t)
	case *CallExpr:
		return s.evalCall(t)
	default:
		return models.Null(), formulaErrorf(n.Pos(), "unsupported node %T", n)
	}
}

// resolveColumn looks the identifier up in the row. Unknown identifiers are
// bare words: true/false become booleans, anything else its own text.
func (s *evalScope) resolveColumn(name string) models.Value {
	if raw, ok := s.values[name]; ok {
		return models.FromAny(raw)
	}
	switch strings.ToLower(name) {
	case "true":
		return models.Bool(true)
	case "false":
		return models.Bool(false)
	case "null":
		return models.Null()
	}
	return models.Text(name)
}

func (s *evalScope) evalBinary(b *BinaryExpr) (models.Value, error) {
	left, err := s.eval(b.Left)
	if err != nil {
		return models.Null(), err
	}
	right, err := s.eval(b.Right)
	if err != nil {
		return models.Null(), err
	}

	switch b.Op {
	case "+", "-", "*", "/":
		// Arithmetic zero-fills: a missing or non-numeric operand counts as 0.
		l, r := left.NumberOrZero(), right.NumberOrZero()
		var out float64
		switch b.Op {
		case "+":
			out = l + r
		case "-":
			out = l - r
		case "*":
			out = l * r
		case "/":
			if r == 0 {
				return models.Null(), formulaErrorf(b.At, "division by zero")
			}
			out = l / r
		}
		if math.IsNaN(out) || math.IsInf(out, 0) {
			return models.Null(), formulaErrorf(b.At, "arithmetic result is not a finite number")
		}
		return models.Number(out), nil

	case "==":
		return models.Bool(models.LooseEqual(left, right)), nil
	case "!=":
		return models.Bool(!models.LooseEqual(left, right)), nil
	case ">", ">=", "<", "<=":
		c, ok := orderValues(left, right)
		if !ok {
			return models.Bool(false), nil
		}
		switch b.Op {
		case ">":
			return models.Bool(c > 0), nil
		case ">=":
			return models.Bool(c >= 0), nil
		case "<":
			return models.Bool(c < 0), nil
		default:
			return models.Bool(c <= 0), nil
		}
	}
	return models.Null(), formulaErrorf(b.At, "unknown operator %q", b.Op)
}

// orderValues compares two values: numerically when both are numeric, by
// time when either is a date, lexically when both are plain text. Mixed
// number/text pairs are not ordered.
func orderValues(l, r models.Value) (int, bool) {
	ln, lok := l.AsNumber()
	rn, rok := r.AsNumber()
	if lok && rok {
		switch {
		case ln < rn:
			return -1, true
		case ln > rn:
			return 1, true
		}
		return 0, true
	}
	if l.IsDate() || r.IsDate() {
		lt, lok := l.AsDate()
		rt, rok := r.AsDate()
		if !lok || !rok {
			return 0, false
		}
		return lt.Compare(rt), true
	}
	if lok || rok || l.IsNull() || r.IsNull() || l.IsNumber() || r.IsNumber() {
		return 0, false
	}
	return strings.Compare(l.AsText(), r.AsText()), true
}

func (s *evalScope) evalCall(c *CallExpr) (models.Value, error) {
	spec, ok := s.ev.functions.lookup(c.Name)
	if !ok {
		return models.Null(), formulaErrorf(c.At, "unknown function %s", c.Name)
	}
	if len(c.Args) < spec.minArgs || (spec.maxArgs >= 0 && len(c.Args) > spec.maxArgs) {
		return models.Null(), formulaErrorf(c.At, "%s called with %d arguments", c.Name, len(c.Args))
	}
	return spec.handler(&Call{scope: s, Name: c.Name, At: c.At}, c.Args)
}

// Call is handed to function handlers. Arguments arrive unevaluated so a
// handler decides what to evaluate and in which order.
type Call struct {
	scope *evalScope
	Name  string
	At    int
}

// Eval evaluates one argument node in the caller's row.
func (c *Call) Eval(n Node) (models.Value, error) {
	return c.scope.eval(n)
}

// EvalAll evaluates every argument left to right.
func (c *Call) EvalAll(args []Node) ([]models.Value, error) {
	out := make([]models.Value, 0, len(args))
	for _, a := range args {
		v, err := c.scope.eval(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Call) Now() time.Time {
	return c.scope.ev.now()
}

func (c *Call) Context() context.Context {
	return c.scope.ctx
}

// Errorf builds a FormulaError positioned at the call.
func (c *Call) Errorf(format string, args ...interface{}) error {
	return formulaErrorf(c.At, c.Name+": "+format, args...)
}

// FetchModule reads another module for LOOKUP-style functions.
func (c *Call) FetchModule(moduleName string) ([]models.Record, error) {
	if c.scope.ev.lookups == nil {
		return nil, c.Errorf("no lookup source configured")
	}
	return fetchModule(c.scope.ctx, c.scope.ev.lookups, moduleName)
}
