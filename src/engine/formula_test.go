package engine

import (
	"context"
	"testing"
	"time"

	"clientdesk/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateFormulaIf(t *testing.T) {
	expr := "IF(amount > 1000, 'high', 'low')"

	v := EvaluateFormula(expr, map[string]interface{}{"amount": 1500})
	assert.Equal(t, models.Text("high"), v)

	v = EvaluateFormula(expr, map[string]interface{}{"amount": 500})
	assert.Equal(t, models.Text("low"), v)
}

func TestEvaluateFormulaArithmetic(t *testing.T) {
	v := EvaluateFormula("income - expense", map[string]interface{}{"income": 500, "expense": 200})
	require.True(t, v.IsNumber())
	assert.Equal(t, 300.0, v.NumberOrZero())

	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-qty + 1", -2},
		{"=qty * 2", 6},
		{"[Unit Price] * qty", 37.5},
		{"qty * 'not a number'", 0},
	}
	values := map[string]interface{}{"qty": 3, "Unit Price": "12.5"}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v := EvaluateFormula(tt.expr, values)
			require.True(t, v.IsNumber(), "got %#v", v)
			assert.InDelta(t, tt.want, v.NumberOrZero(), 1e-9)
		})
	}
}

// Row formulas zero-fill missing or non-numeric operands, unlike the
// aggregation resolver which leaves them out.
func TestEvaluateFormulaZeroFill(t *testing.T) {
	v := EvaluateFormula("income - expense", map[string]interface{}{"income": 500})
	assert.Equal(t, 500.0, v.NumberOrZero())

	v = EvaluateFormula("income + expense", map[string]interface{}{"income": 500, "expense": nil})
	assert.Equal(t, 500.0, v.NumberOrZero())
}

func TestEvaluateFormulaFailuresYieldNull(t *testing.T) {
	for _, expr := range []string{
		"",
		"IF(",
		"amount +",
		"1 / 0",
		"NOSUCHFN(1)",
		"IF(1)",
		"'unterminated",
		"DATEDIFF('not a date', 'nor this')",
		"amount ! 3",
		"ROUND(1.5, 300000000)",
		"ROUND(1, 1e12)",
		"ROUND(1, -16)",
	} {
		t.Run(expr, func(t *testing.T) {
			assert.NotPanics(t, func() {
				v := EvaluateFormula(expr, map[string]interface{}{"amount": 4})
				assert.True(t, v.IsNull(), "got %#v", v)
			})
		})
	}
}

func TestEvaluateFormulaComparison(t *testing.T) {
	values := map[string]interface{}{"status": "paid", "amount": "1,200", "due": time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}

	assert.Equal(t, models.Bool(true), EvaluateFormula("status = 'paid'", values))
	assert.Equal(t, models.Bool(true), EvaluateFormula("status == \"paid\"", values))
	assert.Equal(t, models.Bool(true), EvaluateFormula("status <> 'open'", values))
	assert.Equal(t, models.Bool(true), EvaluateFormula("amount >= 1200", values))
	assert.Equal(t, models.Bool(true), EvaluateFormula("due < '2024-03-02'", values))
	assert.Equal(t, models.Bool(false), EvaluateFormula("status > 5", values))
	assert.Equal(t, models.Bool(true), EvaluateFormula("'b' > 'a'", values))
}

func TestEvaluateFormulaSwitch(t *testing.T) {
	expr := "SWITCH(code, 1, 'one', 2, 'two', 'other')"
	assert.Equal(t, models.Text("two"), EvaluateFormula(expr, map[string]interface{}{"code": 2}))
	assert.Equal(t, models.Text("two"), EvaluateFormula(expr, map[string]interface{}{"code": "2"}))
	assert.Equal(t, models.Text("other"), EvaluateFormula(expr, map[string]interface{}{"code": 9}))

	v := EvaluateFormula("SWITCH(code, 1, 'one', 2, 'two')", map[string]interface{}{"code": 9})
	assert.True(t, v.IsNull())
}

func TestEvaluateFormulaText(t *testing.T) {
	values := map[string]interface{}{"first": "Ada", "last": "Lovelace", "n": 3}
	assert.Equal(t, models.Text("Ada Lovelace"), EvaluateFormula("CONCAT(first, ' ', last)", values))
	assert.Equal(t, models.Text("ADA"), EvaluateFormula("upper(first)", values))
	assert.Equal(t, models.Text("lovelace"), EvaluateFormula("LOWER(last)", values))
	assert.Equal(t, models.Text("n=3"), EvaluateFormula("CONCAT('n=', n)", values))
	assert.Equal(t, models.Number(8), EvaluateFormula("LEN(last)", values))
}

func TestEvaluateFormulaDates(t *testing.T) {
	values := map[string]interface{}{
		"start": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"end":   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"y0":    time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		"y2":    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, models.Number(60), EvaluateFormula("DATEDIFF(end, start)", values))
	assert.Equal(t, models.Number(60), EvaluateFormula("DATEDIFF(end, start, 'days')", values))
	assert.Equal(t, models.Number(-60), EvaluateFormula("DATEDIFF(start, end, 'days')", values))
	assert.Equal(t, models.Number(1), EvaluateFormula("DATEDIFF(end, start, 'months')", values))
	// 730 days is 1.998 fixed-length years.
	assert.Equal(t, models.Number(1), EvaluateFormula("DATEDIFF(y2, y0, 'years')", values))

	v := EvaluateFormula("DATEADD(start, 1, 'months')", values)
	got, ok := v.AsDate()
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)), "got %s", got)

	v = EvaluateFormula("DATEADD(end, -1)", values)
	got, ok = v.AsDate()
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)), "got %s", got)

	assert.Equal(t, models.Number(2024), EvaluateFormula("YEAR(DATEADD(end, 1, 'days'))", values))
}

func TestEvaluatorClock(t *testing.T) {
	now := time.Date(2024, 5, 17, 15, 30, 0, 0, time.UTC)
	ev := NewEvaluator(nil, WithClock(func() time.Time { return now }))

	v, err := ev.Evaluate(context.Background(), "TODAY()", nil)
	require.NoError(t, err)
	got, ok := v.AsDate()
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)))

	v, err = ev.Evaluate(context.Background(), "NOW()", nil)
	require.NoError(t, err)
	got, _ = v.AsDate()
	assert.True(t, got.Equal(now))

	v, err = ev.Evaluate(context.Background(), "DATEDIFF(TODAY(), signed)", map[string]interface{}{
		"signed": time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, models.Number(10), v)
}

func TestEvaluateFormulaMath(t *testing.T) {
	assert.Equal(t, models.Number(1.01), EvaluateFormula("ROUND(1.005, 2)", nil))
	assert.Equal(t, models.Number(3), EvaluateFormula("ROUND(2.5)", nil))
	assert.Equal(t, models.Number(-3), EvaluateFormula("ROUND(-2.5)", nil))
	assert.Equal(t, models.Number(1.5), EvaluateFormula("ROUND(1.5, 15)", nil))
	assert.Equal(t, models.Number(1200), EvaluateFormula("ROUND(1240, -2)", nil))
	assert.Equal(t, models.Number(4), EvaluateFormula("ABS(-4)", nil))
	assert.Equal(t, models.Number(2), EvaluateFormula("MIN(5, 2, 'x', 9)", nil))
	assert.Equal(t, models.Number(9), EvaluateFormula("MAX(5, 2, 'x', 9)", nil))
}

func TestEvaluateFormulaLogic(t *testing.T) {
	values := map[string]interface{}{"a": 1, "b": 0, "note": ""}
	assert.Equal(t, models.Bool(false), EvaluateFormula("AND(a, b)", values))
	assert.Equal(t, models.Bool(true), EvaluateFormula("OR(a, b)", values))
	assert.Equal(t, models.Bool(true), EvaluateFormula("NOT(b)", values))
	assert.Equal(t, models.Bool(true), EvaluateFormula("ISBLANK(note)", values))
	// An unknown identifier is its own name, so it is not blank.
	assert.Equal(t, models.Bool(false), EvaluateFormula("ISBLANK(missing_column)", values))
	assert.Equal(t, models.Text("yes"), EvaluateFormula("IF(AND(a > 0, NOT(b)), 'yes', 'no')", values))
}

func TestEvaluateLookup(t *testing.T) {
	source := newFakeFetcher().add("clients",
		map[string]interface{}{"id": "7", "name": "Acme"},
		map[string]interface{}{"id": "8", "name": "Globex"},
	)
	ev := NewEvaluator(nil, WithLookupSource(source))
	ctx := context.Background()

	v, err := ev.Evaluate(ctx, "LOOKUP(client_id, 'clients', 'id', 'name')", map[string]interface{}{"client_id": 7})
	require.NoError(t, err)
	assert.Equal(t, models.Text("Acme"), v)

	v, err = ev.Evaluate(ctx, "LOOKUP(client_id, 'clients', 'id', 'name')", map[string]interface{}{"client_id": 99})
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v = EvaluateFormula("LOOKUP(client_id, 'clients', 'id', 'name')", map[string]interface{}{"client_id": 7})
	assert.True(t, v.IsNull())
}

func TestEvaluateLookupStoreFailure(t *testing.T) {
	source := newFakeFetcher().fail("clients")
	ev := NewEvaluator(nil, WithLookupSource(source))
	ctx := context.Background()

	v, err := ev.Evaluate(ctx, "LOOKUP(client_id, 'clients', 'id', 'name')", map[string]interface{}{"client_id": 7})
	require.Error(t, err)
	assert.True(t, IsStoreError(err))
	assert.ErrorIs(t, err, errBackendDown)
	assert.True(t, v.IsNull())

	// The untaken branch never reads the failing module.
	v, err = ev.Evaluate(ctx, "IF(true, 1, LOOKUP(client_id, 'clients', 'id', 'name'))", map[string]interface{}{"client_id": 7})
	require.NoError(t, err)
	assert.Equal(t, models.Number(1), v)
	assert.Equal(t, 1, source.callCount("clients"))
}

func TestRegisterCustomFunction(t *testing.T) {
	registry := NewFunctionRegistry()
	registry.Register("double", 1, 1, func(call *Call, args []Node) (models.Value, error) {
		v, err := call.Eval(args[0])
		if err != nil {
			return models.Null(), err
		}
		return models.Number(v.NumberOrZero() * 2), nil
	})
	ev := NewEvaluator(nil, WithFunctions(registry))

	v, err := ev.Evaluate(context.Background(), "DOUBLE(x) + 1", map[string]interface{}{"x": 4})
	require.NoError(t, err)
	assert.Equal(t, models.Number(9), v)

	assert.True(t, EvaluateFormula("DOUBLE(4)", nil).IsNull())
}

func TestParseFormulaErrors(t *testing.T) {
	_, err := ParseFormula("IF(a > 1, 'x'")
	require.Error(t, err)
	var fe *FormulaError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 13, fe.Pos)

	_, err = ParseFormula("a b")
	require.Error(t, err)
}

func TestExtractColumnReferences(t *testing.T) {
	refs := ExtractColumnReferences("IF(amount > 1000, [Unit Price], LOOKUP(id, 'clients', 'id', 'name')) + amount")
	assert.Equal(t, []string{"amount", "Unit Price", "id"}, refs)
	assert.Nil(t, ExtractColumnReferences("IF("))
}

func TestParseCacheIsSharedAndBounded(t *testing.T) {
	cache := formulaASTs()
	require.NotNil(t, cache)
	assert.Equal(t, int64(maxParsedFormulaBytes), cache.MaxCost())

	first, err := NewEvaluator(nil).Parse("amount * 2")
	require.NoError(t, err)
	cache.Wait()
	second, err := NewEvaluator(nil).Parse("amount * 2")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = NewEvaluator(nil).Parse("IF(")
	assert.Error(t, err)
	cache.Wait()
	_, err = NewEvaluator(nil).Parse("IF(")
	assert.Error(t, err)
}
