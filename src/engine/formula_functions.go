package engine

import (
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"clientdesk/src/models"

	"github.com/shopspring/decimal"
)

// FunctionHandler implements one formula function.
type FunctionHandler func(call *Call, args []Node) (models.Value, error)

type functionSpec struct {
	minArgs int
	maxArgs int // -1 is variadic
	handler FunctionHandler
}

// FunctionRegistry maps upper-case function names to handlers.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]functionSpec
}

// NewFunctionRegistry returns a registry holding the built-in functions.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{funcs: make(map[string]functionSpec)}
	registerBuiltins(r)
	return r
}

// Register adds or replaces a function. maxArgs of -1 accepts any number of
// arguments.
func (r *FunctionRegistry) Register(name string, minArgs, maxArgs int, handler FunctionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.ToUpper(name)] = functionSpec{minArgs: minArgs, maxArgs: maxArgs, handler: handler}
}

func (r *FunctionRegistry) lookup(name string) (functionSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.funcs[name]
	return spec, ok
}

var defaultFunctions = NewFunctionRegistry()

// RegisterFunction adds a function to the registry used by evaluators
// created without WithFunctions.
func RegisterFunction(name string, minArgs, maxArgs int, handler FunctionHandler) {
	defaultFunctions.Register(name, minArgs, maxArgs, handler)
}

func registerBuiltins(r *FunctionRegistry) {
	r.Register("IF", 2, 3, fnIf)
	r.Register("SWITCH", 3, -1, fnSwitch)
	r.Register("LOOKUP", 4, 4, fnLookup)
	r.Register("TODAY", 0, 0, fnToday)
	r.Register("NOW", 0, 0, fnNow)
	r.Register("CONCAT", 0, -1, fnConcat)
	r.Register("UPPER", 1, 1, textFn(strings.ToUpper))
	r.Register("LOWER", 1, 1, textFn(strings.ToLower))
	r.Register("DATEDIFF", 2, 3, fnDateDiff)
	r.Register("DATEADD", 2, 3, fnDateAdd)
	r.Register("ROUND", 1, 2, fnRound)
	r.Register("ABS", 1, 1, fnAbs)

	r.Register("AND", 1, -1, fnAnd)
	r.Register("OR", 1, -1, fnOr)
	r.Register("NOT", 1, 1, fnNot)
	r.Register("MIN", 1, -1, extremeFn(-1))
	r.Register("MAX", 1, -1, extremeFn(1))
	r.Register("LEN", 1, 1, fnLen)
	r.Register("YEAR", 1, 1, datePartFn(func(t time.Time) int { return t.Year() }))
	r.Register("MONTH", 1, 1, datePartFn(func(t time.Time) int { return int(t.Month()) }))
	r.Register("DAY", 1, 1, datePartFn(func(t time.Time) int { return t.Day() }))
	r.Register("ISBLANK", 1, 1, fnIsBlank)
}

// IF(condition, whenTrue, [whenFalse]); only the chosen branch is evaluated.
func fnIf(call *Call, args []Node) (models.Value, error) {
	cond, err := call.Eval(args[0])
	if err != nil {
		return models.Null(), err
	}
	if cond.Truthy() {
		return call.Eval(args[1])
	}
	if len(args) < 3 {
		return models.Null(), nil
	}
	return call.Eval(args[2])
}

// SWITCH(expr, case1, result1, ..., [default]) compares cases in order with
// loose equality.
func fnSwitch(call *Call, args []Node) (models.Value, error) {
	subject, err := call.Eval(args[0])
	if err != nil {
		return models.Null(), err
	}
	rest := args[1:]
	for i := 0; i+1 < len(rest); i += 2 {
		c, err := call.Eval(rest[i])
		if err != nil {
			return models.Null(), err
		}
		if models.LooseEqual(subject, c) {
			return call.Eval(rest[i+1])
		}
	}
	if len(rest)%2 == 1 {
		return call.Eval(rest[len(rest)-1])
	}
	return models.Null(), nil
}

// LOOKUP(key, "table", "keyColumn", "valueColumn") returns valueColumn of
// the first record of table whose keyColumn matches key as text.
func fnLookup(call *Call, args []Node) (models.Value, error) {
	vals, err := call.EvalAll(args)
	if err != nil {
		return models.Null(), err
	}
	key, table, keyColumn, valueColumn := vals[0], vals[1].AsText(), vals[2].AsText(), vals[3].AsText()
	if key.IsEmpty() || table == "" {
		return models.Null(), nil
	}
	records, err := call.FetchModule(table)
	if err != nil {
		return models.Null(), err
	}
	if rec, ok := findByKey(records, keyColumn, key); ok {
		return rec.Get(valueColumn), nil
	}
	return models.Null(), nil
}

func fnToday(call *Call, _ []Node) (models.Value, error) {
	y, m, d := call.Now().Date()
	return models.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)), nil
}

func fnNow(call *Call, _ []Node) (models.Value, error) {
	return models.Date(call.Now()), nil
}

func fnConcat(call *Call, args []Node) (models.Value, error) {
	vals, err := call.EvalAll(args)
	if err != nil {
		return models.Null(), err
	}
	var sb strings.Builder
	for _, v := range vals {
		sb.WriteString(v.AsText())
	}
	return models.Text(sb.String()), nil
}

func textFn(f func(string) string) FunctionHandler {
	return func(call *Call, args []Node) (models.Value, error) {
		v, err := call.Eval(args[0])
		if err != nil {
			return models.Null(), err
		}
		return models.Text(f(v.AsText())), nil
	}
}

const (
	oneDay         = 24 * time.Hour
	daysPerMonth   = 30.44
	daysPerYear    = 365.25
	defaultDayUnit = "days"
)

// DATEDIFF(date1, date2, [unit]) is date1 - date2 in whole units. Months and
// years are fixed-length approximations (30.44 and 365.25 days), not
// calendar differences.
func fnDateDiff(call *Call, args []Node) (models.Value, error) {
	vals, err := call.EvalAll(args)
	if err != nil {
		return models.Null(), err
	}
	d1, ok1 := vals[0].AsDate()
	d2, ok2 := vals[1].AsDate()
	if !ok1 || !ok2 {
		return models.Null(), call.Errorf("invalid date")
	}
	unit := defaultDayUnit
	if len(vals) == 3 {
		unit = strings.ToLower(strings.TrimSpace(vals[2].AsText()))
	}
	days := float64(d1.Sub(d2)) / float64(oneDay)
	switch unit {
	case "day", "days", "d":
		return models.Number(math.Floor(days)), nil
	case "month", "months", "m":
		return models.Number(math.Floor(days / daysPerMonth)), nil
	case "year", "years", "y":
		return models.Number(math.Floor(days / daysPerYear)), nil
	}
	return models.Null(), call.Errorf("unknown unit %q", unit)
}

// DATEADD(date, amount, [unit]) adds whole days, months or years using
// calendar arithmetic.
func fnDateAdd(call *Call, args []Node) (models.Value, error) {
	vals, err := call.EvalAll(args)
	if err != nil {
		return models.Null(), err
	}
	d, ok := vals[0].AsDate()
	if !ok {
		return models.Null(), call.Errorf("invalid date")
	}
	amount := int(math.Trunc(vals[1].NumberOrZero()))
	unit := defaultDayUnit
	if len(vals) == 3 {
		unit = strings.ToLower(strings.TrimSpace(vals[2].AsText()))
	}
	switch unit {
	case "day", "days", "d":
		return models.Date(d.AddDate(0, 0, amount)), nil
	case "month", "months", "m":
		return models.Date(d.AddDate(0, amount, 0)), nil
	case "year", "years", "y":
		return models.Date(d.AddDate(amount, 0, 0)), nil
	}
	return models.Null(), call.Errorf("unknown unit %q", unit)
}

// maxRoundPlaces bounds ROUND decimals to what a float64 can carry.
const maxRoundPlaces = 15

// ROUND(number, [decimals]) rounds half away from zero in decimal, so
// ROUND(1.005, 2) is 1.01 rather than the binary-float 1.
func fnRound(call *Call, args []Node) (models.Value, error) {
	vals, err := call.EvalAll(args)
	if err != nil {
		return models.Null(), err
	}
	places := int32(0)
	if len(vals) == 2 {
		p := math.Trunc(vals[1].NumberOrZero())
		if p < -maxRoundPlaces || p > maxRoundPlaces {
			return models.Null(), call.Errorf("decimals %v out of range", vals[1].AsText())
		}
		places = int32(p)
	}
	rounded := decimal.NewFromFloat(vals[0].NumberOrZero()).Round(places)
	return models.Number(rounded.InexactFloat64()), nil
}

func fnAbs(call *Call, args []Node) (models.Value, error) {
	v, err := call.Eval(args[0])
	if err != nil {
		return models.Null(), err
	}
	return models.Number(math.Abs(v.NumberOrZero())), nil
}

func fnAnd(call *Call, args []Node) (models.Value, error) {
	for _, a := range args {
		v, err := call.Eval(a)
		if err != nil {
			return models.Null(), err
		}
		if !v.Truthy() {
			return models.Bool(false), nil
		}
	}
	return models.Bool(true), nil
}

func fnOr(call *Call, args []Node) (models.Value, error) {
	for _, a := range args {
		v, err := call.Eval(a)
		if err != nil {
			return models.Null(), err
		}
		if v.Truthy() {
			return models.Bool(true), nil
		}
	}
	return models.Bool(false), nil
}

func fnNot(call *Call, args []Node) (models.Value, error) {
	v, err := call.Eval(args[0])
	if err != nil {
		return models.Null(), err
	}
	return models.Bool(!v.Truthy()), nil
}

// extremeFn builds MIN (sign -1) and MAX (sign 1) over the numeric
// arguments; non-numeric arguments are skipped.
func extremeFn(sign float64) FunctionHandler {
	return func(call *Call, args []Node) (models.Value, error) {
		vals, err := call.EvalAll(args)
		if err != nil {
			return models.Null(), err
		}
		found := false
		var best float64
		for _, v := range vals {
			f, ok := v.AsNumber()
			if !ok {
				continue
			}
			if !found || (f-best)*sign > 0 {
				best = f
				found = true
			}
		}
		if !found {
			return models.Null(), nil
		}
		return models.Number(best), nil
	}
}

func fnLen(call *Call, args []Node) (models.Value, error) {
	v, err := call.Eval(args[0])
	if err != nil {
		return models.Null(), err
	}
	return models.Number(float64(utf8.RuneCountInString(v.AsText()))), nil
}

func datePartFn(part func(time.Time) int) FunctionHandler {
	return func(call *Call, args []Node) (models.Value, error) {
		v, err := call.Eval(args[0])
		if err != nil {
			return models.Null(), err
		}
		t, ok := v.AsDate()
		if !ok {
			return models.Null(), call.Errorf("invalid date")
		}
		return models.Number(float64(part(t.UTC()))), nil
	}
}

func fnIsBlank(call *Call, args []Node) (models.Value, error) {
	v, err := call.Eval(args[0])
	if err != nil {
		return models.Null(), err
	}
	return models.Bool(v.IsEmpty()), nil
}
