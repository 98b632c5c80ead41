package engine

import (
	"strings"
	"testing"

	"clientdesk/src/helpers"
	"clientdesk/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesRecords() []models.Record {
	return records("sales",
		map[string]interface{}{"region": "North", "quarter": "Q2", "amount": 100, "rep": "dana"},
		map[string]interface{}{"region": "South", "quarter": "Q1", "amount": 40, "rep": "eli"},
		map[string]interface{}{"region": "North", "quarter": "Q1", "amount": 60, "rep": "dana"},
		map[string]interface{}{"region": "North", "quarter": "Q1", "amount": "n/a", "rep": "noa"},
		map[string]interface{}{"region": "South", "quarter": "Q2", "amount": 10, "rep": "eli"},
		map[string]interface{}{"region": "East", "quarter": "Q2", "amount": nil, "rep": "gil"},
	)
}

func TestGeneratePivotRowsOnly(t *testing.T) {
	config := models.PivotConfig{
		Rows: []string{"region"},
		Values: []models.PivotValue{
			{Field: "amount", Aggregation: models.PivotSum},
			{Field: "amount", Aggregation: models.PivotCount, Label: "Deals"},
			{Field: "amount", Aggregation: models.PivotAvg},
		},
	}
	result, err := GeneratePivot(salesRecords(), config)
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "SUM(amount)", "Deals", "AVG(amount)"}, result.Headers)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, map[string]interface{}{"region": "North", "SUM(amount)": 160.0, "Deals": 3.0, "AVG(amount)": 80.0}, result.Rows[0])
	assert.Equal(t, map[string]interface{}{"region": "South", "SUM(amount)": 50.0, "Deals": 2.0, "AVG(amount)": 25.0}, result.Rows[1])
	assert.Equal(t, map[string]interface{}{"region": "East", "SUM(amount)": 0.0, "Deals": 1.0, "AVG(amount)": 0.0}, result.Rows[2])
	assert.Nil(t, result.ColumnTotals)
	assert.Equal(t, 6.0, result.Totals["Deals"])
}

// The SUM totals of a rows-only pivot equal both the sum over its rows and
// the SUM of the ungrouped input.
func TestGeneratePivotGrandTotal(t *testing.T) {
	recs := salesRecords()
	for _, rows := range [][]string{{"region"}, {"rep"}, {"region", "quarter"}} {
		config := models.PivotConfig{
			Rows:   rows,
			Values: []models.PivotValue{{Field: "amount", Aggregation: models.PivotSum, Label: "total"}},
		}
		result, err := GeneratePivot(recs, config)
		require.NoError(t, err)

		var rowSum float64
		for _, row := range result.Rows {
			rowSum += row["total"].(float64)
		}
		direct := pivotAggregate(collectField(recs, "amount"), models.PivotSum)
		assert.Equal(t, result.Totals["total"], rowSum, "rows %v", rows)
		assert.Equal(t, direct, result.Totals["total"], "rows %v", rows)
	}
}

func TestGeneratePivotWithColumns(t *testing.T) {
	config := models.PivotConfig{
		Rows:    []string{"region"},
		Columns: []string{"quarter"},
		Values:  []models.PivotValue{{Field: "amount", Aggregation: models.PivotSum}},
	}
	result, err := GeneratePivot(salesRecords(), config)
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "Q1|amount", "Q2|amount"}, result.Headers)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, map[string]interface{}{"region": "North", "Q1|amount": 60.0, "Q2|amount": 100.0}, result.Rows[0])
	assert.Equal(t, map[string]interface{}{"region": "South", "Q1|amount": 40.0, "Q2|amount": 10.0}, result.Rows[1])
	assert.Equal(t, map[string]interface{}{"region": "East", "Q1|amount": 0.0, "Q2|amount": 0.0}, result.Rows[2])
	assert.Equal(t, map[string]float64{"Q1|amount": 100, "Q2|amount": 110}, result.ColumnTotals)
	assert.Nil(t, result.Totals)
}

func TestGeneratePivotAppliesFilters(t *testing.T) {
	config := models.PivotConfig{
		Rows:   []string{"rep"},
		Values: []models.PivotValue{{Field: "amount", Aggregation: models.PivotMax}},
		Filters: &models.FilterGroup{Conditions: []models.FilterCondition{
			{Field: "region", Operator: models.OpEquals, Value: "north", DataType: models.DataText},
		}},
	}
	result, err := GeneratePivot(salesRecords(), config)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "dana", result.Rows[0]["rep"])
	assert.Equal(t, 100.0, result.Rows[0]["MAX(amount)"])
	assert.Equal(t, 0.0, result.Rows[1]["MAX(amount)"])
}

func TestGeneratePivotInvalidConfig(t *testing.T) {
	for name, config := range map[string]models.PivotConfig{
		"no rows":         {Values: []models.PivotValue{{Field: "amount", Aggregation: models.PivotSum}}},
		"no values":       {Rows: []string{"region"}},
		"bad aggregation": {Rows: []string{"region"}, Values: []models.PivotValue{{Field: "amount", Aggregation: "MODE"}}},
		"bad filter logic": {
			Rows: []string{"region"}, Values: []models.PivotValue{{Field: "amount", Aggregation: models.PivotSum}},
			Filters: &models.FilterGroup{Logic: "XOR"},
		},
		"filter without field": {
			Rows: []string{"region"}, Values: []models.PivotValue{{Field: "amount", Aggregation: models.PivotSum}},
			Filters: &models.FilterGroup{Conditions: []models.FilterCondition{{Operator: models.OpEquals, Value: 1}}},
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := GeneratePivot(salesRecords(), config)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPivotConfig)
		})
	}
}

func TestPivotAggregate(t *testing.T) {
	values := []models.Value{models.Number(7), models.Text("1"), models.Null(), models.Number(4), models.Text("x")}
	assert.Equal(t, 4.0, pivotAggregate(values, models.PivotMedian))
	assert.Equal(t, 5.0, pivotAggregate(values, models.PivotCount))
	assert.Equal(t, 1.0, pivotAggregate(values, models.PivotMin))
	assert.Equal(t, 7.0, pivotAggregate(values, models.PivotMax))
	assert.Equal(t, 12.0, pivotAggregate(values, "sum"))

	even := []models.Value{models.Number(1), models.Number(9), models.Number(3), models.Number(5)}
	assert.Equal(t, 4.0, pivotAggregate(even, models.PivotMedian))

	assert.Zero(t, pivotAggregate(nil, models.PivotMedian))
	assert.Zero(t, pivotAggregate(nil, models.PivotCount))
}

func TestExportPivotToCSV(t *testing.T) {
	result := models.PivotResult{
		Headers: []string{"client", "SUM(amount)"},
		Rows: []map[string]interface{}{
			{"client": `Acme, "West"`, "SUM(amount)": 1250.5},
			{"client": "Globex", "SUM(amount)": 10.0},
			{"client": nil},
		},
		Totals: map[string]float64{"SUM(amount)": 1260.5},
	}

	out, err := ExportPivotToCSV(result, true, LocaleEnglish)
	require.NoError(t, err)
	assert.Equal(t, "client,SUM(amount)\n\"Acme, \"\"West\"\"\",1250.5\nGlobex,10\n,\nTotal,1260.5\n", out)

	// The export parses back with the CSV reader used for imports.
	rows, err := helpers.ReadCSV(out)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{`Acme, "West"`, "1250.5"}, rows[1])

	out, err = ExportPivotToCSV(result, true, LocaleHebrew)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "\"סה\"\"כ\",1260.5\n"), out)

	out, err = ExportPivotToCSV(result, false, LocaleEnglish)
	require.NoError(t, err)
	assert.NotContains(t, out, "Total")
}

func TestExportPivotWithColumnsToCSV(t *testing.T) {
	config := models.PivotConfig{
		Rows:    []string{"region"},
		Columns: []string{"quarter"},
		Values:  []models.PivotValue{{Field: "amount", Aggregation: models.PivotSum}},
	}
	result, err := GeneratePivot(salesRecords(), config)
	require.NoError(t, err)

	out, err := ExportPivotToCSV(result, true, LocaleEnglish)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "region,Q1|amount,Q2|amount", lines[0])
	assert.Equal(t, "Total,100,110", lines[4])
}
