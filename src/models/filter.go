package models

// FilterOperator names a comparison in a filter condition.
type FilterOperator string

const (
	OpEquals      FilterOperator = "equals"
	OpNotEquals   FilterOperator = "notEquals"
	OpContains    FilterOperator = "contains"
	OpNotContains FilterOperator = "notContains"
	OpStartsWith  FilterOperator = "startsWith"
	OpEndsWith    FilterOperator = "endsWith"
	OpIn          FilterOperator = "in"
	OpNotIn       FilterOperator = "notIn"
	OpGt          FilterOperator = "gt"
	OpGte         FilterOperator = "gte"
	OpLt          FilterOperator = "lt"
	OpLte         FilterOperator = "lte"
	OpBetween     FilterOperator = "between"
	OpIsEmpty     FilterOperator = "isEmpty"
	OpIsNotEmpty  FilterOperator = "isNotEmpty"
)

// FilterDataType selects the comparison rules for a condition.
type FilterDataType string

const (
	DataText    FilterDataType = "text"
	DataNumber  FilterDataType = "number"
	DataDate    FilterDataType = "date"
	DataBoolean FilterDataType = "boolean"
)

// FilterLogic combines the conditions of a group.
type FilterLogic string

const (
	LogicAnd FilterLogic = "AND"
	LogicOr  FilterLogic = "OR"
)

// FilterCondition is one typed comparison against a record field.
type FilterCondition struct {
	// Field may be a dotted path, e.g. "data.amount".
	Field    string         `json:"field" yaml:"field" validate:"required"`
	Operator FilterOperator `json:"operator" yaml:"operator" validate:"required"`
	Value    interface{}    `json:"value,omitempty" yaml:"value,omitempty"`
	// Value2 is the upper bound for between.
	Value2   interface{}    `json:"value2,omitempty" yaml:"value2,omitempty"`
	DataType FilterDataType `json:"dataType" yaml:"dataType" validate:"omitempty,oneof=text number date boolean"`
}

// FilterGroup is a single-level AND/OR of conditions.
type FilterGroup struct {
	Logic      FilterLogic       `json:"logic" yaml:"logic" validate:"omitempty,oneof=AND OR"`
	Conditions []FilterCondition `json:"conditions" yaml:"conditions" validate:"dive"`
}
