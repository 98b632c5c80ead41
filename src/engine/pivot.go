package engine

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"clientdesk/src/helpers"
	"clientdesk/src/models"
)

// Define errors
var (
	ErrInvalidPivotConfig = errors.New("invalid pivot config")
)

const pivotKeySep = "|"

// GeneratePivot groups records by the row dimensions and aggregates the
// configured values. With no column dimensions it emits one row per group
// and grand Totals per value. With column dimensions every row carries one
// cell per (column key, value) pair, named "colKey|label-or-field", and
// ColumnTotals sums each such cell across rows. Row groups keep the order in
// which they first appear; column keys are sorted.
func GeneratePivot(records []models.Record, config models.PivotConfig) (models.PivotResult, error) {
	if err := models.ValidatePivotConfig(config); err != nil {
		return models.PivotResult{}, fmt.Errorf("%w: %v", ErrInvalidPivotConfig, err)
	}
	if config.Filters != nil {
		if err := models.ValidateFilterGroup(*config.Filters); err != nil {
			return models.PivotResult{}, fmt.Errorf("%w: filters: %v", ErrInvalidPivotConfig, err)
		}
		records = ApplyFilters(records, *config.Filters)
	}

	var rowOrder []string
	rowGroups := make(map[string][]models.Record)
	for _, rec := range records {
		key := dimensionKey(rec, config.Rows)
		if _, ok := rowGroups[key]; !ok {
			rowOrder = append(rowOrder, key)
		}
		rowGroups[key] = append(rowGroups[key], rec)
	}

	if len(config.Columns) == 0 {
		return pivotRowsOnly(config, rowOrder, rowGroups), nil
	}
	return pivotFull(config, rowOrder, rowGroups), nil
}

func pivotRowsOnly(config models.PivotConfig, rowOrder []string, rowGroups map[string][]models.Record) models.PivotResult {
	result := models.PivotResult{
		Headers: append([]string{}, config.Rows...),
		Rows:    make([]map[string]interface{}, 0, len(rowOrder)),
		Totals:  make(map[string]float64, len(config.Values)),
	}
	for _, v := range config.Values {
		result.Headers = append(result.Headers, pivotValueName(v))
	}

	for _, key := range rowOrder {
		group := rowGroups[key]
		row := dimensionFields(group[0], config.Rows)
		for _, v := range config.Values {
			name := pivotValueName(v)
			agg := pivotAggregate(collectField(group, v.Field), v.Aggregation)
			row[name] = agg
			result.Totals[name] += agg
		}
		result.Rows = append(result.Rows, row)
	}
	return result
}

func pivotFull(config models.PivotConfig, rowOrder []string, rowGroups map[string][]models.Record) models.PivotResult {
	var allColKeys []string
	cells := make(map[string]map[string][]models.Record, len(rowGroups))
	for _, rowKey := range rowOrder {
		byCol := make(map[string][]models.Record)
		for _, rec := range rowGroups[rowKey] {
			colKey := dimensionKey(rec, config.Columns)
			byCol[colKey] = append(byCol[colKey], rec)
			allColKeys = append(allColKeys, colKey)
		}
		cells[rowKey] = byCol
	}
	colKeys := helpers.SortedUnique(allColKeys)

	result := models.PivotResult{
		Headers:      append([]string{}, config.Rows...),
		Rows:         make([]map[string]interface{}, 0, len(rowOrder)),
		ColumnTotals: make(map[string]float64, len(colKeys)*len(config.Values)),
	}
	for _, colKey := range colKeys {
		for _, v := range config.Values {
			result.Headers = append(result.Headers, pivotCellName(colKey, v))
		}
	}

	for _, rowKey := range rowOrder {
		row := dimensionFields(rowGroups[rowKey][0], config.Rows)
		for _, colKey := range colKeys {
			bucket := cells[rowKey][colKey]
			for _, v := range config.Values {
				name := pivotCellName(colKey, v)
				agg := pivotAggregate(collectField(bucket, v.Field), v.Aggregation)
				row[name] = agg
				result.ColumnTotals[name] += agg
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result
}

// pivotValueName is the output field of a value in rows-only mode.
func pivotValueName(v models.PivotValue) string {
	if v.Label != "" {
		return v.Label
	}
	return fmt.Sprintf("%s(%s)", v.Aggregation, v.Field)
}

func pivotCellName(colKey string, v models.PivotValue) string {
	label := v.Label
	if label == "" {
		label = v.Field
	}
	return colKey + pivotKeySep + label
}

func dimensionKey(rec models.Record, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fieldValue(rec, f).AsText()
	}
	return strings.Join(parts, pivotKeySep)
}

func dimensionFields(rec models.Record, fields []string) map[string]interface{} {
	row := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		row[f] = fieldValue(rec, f).Interface()
	}
	return row
}

func collectField(records []models.Record, field string) []models.Value {
	out := make([]models.Value, len(records))
	for i, rec := range records {
		out[i] = fieldValue(rec, field)
	}
	return out
}

// pivotAggregate applies a pivot aggregation. COUNT counts every input value,
// numeric or not, since a pivot COUNT is a row count per cell; the
// aggregation resolver's COUNT counts numeric values only. The other
// aggregations use the numeric subset and yield 0 when it is empty.
func pivotAggregate(values []models.Value, kind models.PivotAggregation) float64 {
	if models.PivotAggregation(strings.ToUpper(string(kind))) == models.PivotCount {
		return float64(len(values))
	}

	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := v.AsNumber(); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return 0
	}

	switch models.PivotAggregation(strings.ToUpper(string(kind))) {
	case models.PivotSum:
		return sum(nums)
	case models.PivotAvg:
		return sum(nums) / float64(len(nums))
	case models.PivotMin:
		return aggregateNumbers(nums, models.OpMin)
	case models.PivotMax:
		return aggregateNumbers(nums, models.OpMax)
	case models.PivotMedian:
		sort.Float64s(nums)
		mid := len(nums) / 2
		if len(nums)%2 == 0 {
			return (nums[mid-1] + nums[mid]) / 2
		}
		return nums[mid]
	}
	return 0
}

var totalsLabels = map[string]string{
	LocaleEnglish: "Total",
	LocaleHebrew:  "סה\"כ",
}

// ExportPivotToCSV renders a pivot as CSV: the header line, one line per row
// keyed by header (missing cells are empty), and with includeTotals a final
// line labelled in locale holding Totals or ColumnTotals.
func ExportPivotToCSV(result models.PivotResult, includeTotals bool, locale string) (string, error) {
	lines := make([][]string, 0, len(result.Rows)+2)
	lines = append(lines, append([]string{}, result.Headers...))
	for _, row := range result.Rows {
		line := make([]string, len(result.Headers))
		for i, h := range result.Headers {
			line[i] = csvCell(row[h])
		}
		lines = append(lines, line)
	}

	if includeTotals && len(result.Headers) > 0 {
		label, ok := totalsLabels[locale]
		if !ok {
			label = totalsLabels[LocaleEnglish]
		}
		line := make([]string, len(result.Headers))
		line[0] = label
		for i, h := range result.Headers[1:] {
			if t, ok := result.Totals[h]; ok {
				line[i+1] = csvCell(t)
			} else if t, ok := result.ColumnTotals[h]; ok {
				line[i+1] = csvCell(t)
			}
		}
		lines = append(lines, line)
	}
	return helpers.WriteCSV(lines)
}

func csvCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return models.FromAny(v).AsText()
}
