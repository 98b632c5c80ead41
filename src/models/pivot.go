package models

// PivotAggregation is the pivot engine's aggregation vocabulary. It differs
// from AggregateOperation: AVG instead of AVERAGE, MEDIAN added, and COUNT
// counts every input value.
type PivotAggregation string

const (
	PivotSum    PivotAggregation = "SUM"
	PivotAvg    PivotAggregation = "AVG"
	PivotCount  PivotAggregation = "COUNT"
	PivotMin    PivotAggregation = "MIN"
	PivotMax    PivotAggregation = "MAX"
	PivotMedian PivotAggregation = "MEDIAN"
)

// PivotValue is one aggregated measure of a pivot.
type PivotValue struct {
	Field       string           `json:"field" yaml:"field" validate:"required"`
	Aggregation PivotAggregation `json:"aggregation" yaml:"aggregation" validate:"required,oneof=SUM AVG COUNT MIN MAX MEDIAN"`
	Label       string           `json:"label,omitempty" yaml:"label,omitempty"`
}

// PivotConfig describes the grouping dimensions and measures of a pivot.
type PivotConfig struct {
	Rows    []string     `json:"rows" yaml:"rows" validate:"required,min=1,dive,required"`
	Columns []string     `json:"columns,omitempty" yaml:"columns,omitempty" validate:"dive,required"`
	Values  []PivotValue `json:"values" yaml:"values" validate:"required,min=1,dive"`
	Filters *FilterGroup `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// PivotResult is the grouped table. Rows are keyed by header name.
type PivotResult struct {
	Headers      []string                 `json:"headers"`
	Rows         []map[string]interface{} `json:"rows"`
	Totals       map[string]float64       `json:"totals,omitempty"`
	ColumnTotals map[string]float64       `json:"columnTotals,omitempty"`
}
