package models

import (
	"time"
)

// ColumnType is the declared type of a module column.
type ColumnType string

const (
	ColumnNumber     ColumnType = "number"
	ColumnText       ColumnType = "text"
	ColumnDate       ColumnType = "date"
	ColumnCurrency   ColumnType = "currency"
	ColumnFormula    ColumnType = "formula"
	ColumnReference  ColumnType = "reference"
	ColumnCalculated ColumnType = "calculated"
	ColumnLookup     ColumnType = "lookup"
)

// IsComputed reports whether values of this type are synthesized at read
// time instead of being stored.
func (t ColumnType) IsComputed() bool {
	switch t {
	case ColumnFormula, ColumnReference, ColumnCalculated, ColumnLookup:
		return true
	}
	return false
}

// IsNumeric reports whether stored values of this type take part in numeric
// aggregation.
func (t ColumnType) IsNumeric() bool {
	return t == ColumnNumber || t == ColumnCurrency
}

// AggregateOperation is the vocabulary of the cross-table aggregation
// resolver.
type AggregateOperation string

const (
	OpSum     AggregateOperation = "SUM"
	OpAverage AggregateOperation = "AVERAGE"
	OpCount   AggregateOperation = "COUNT"
	OpMin     AggregateOperation = "MIN"
	OpMax     AggregateOperation = "MAX"
)

// ColumnDefinition describes one column of a module.
type ColumnDefinition struct {
	// Name is the stable identifier, used as the attribute key and inside
	// expressions. Unique within a module.
	Name string `json:"name" yaml:"name" bson:"name" validate:"required"`

	Type ColumnType `json:"type" yaml:"type" bson:"type" validate:"required,oneof=number text date currency formula reference calculated lookup"`

	// Label is the display name only.
	Label string `json:"label,omitempty" yaml:"label,omitempty" bson:"label,omitempty"`

	// Required and Default are hints for the validation layer; the engine
	// only applies Default when a record is inserted without the column.
	Required bool        `json:"required,omitempty" yaml:"required,omitempty" bson:"required,omitempty"`
	Default  interface{} `json:"default,omitempty" yaml:"default,omitempty" bson:"default,omitempty"`

	// Formula is set for formula, reference and calculated columns.
	Formula *FormulaMetadata `json:"formula,omitempty" yaml:"formula,omitempty" bson:"formula,omitempty" validate:"required_if=Type formula,required_if=Type reference,required_if=Type calculated"`

	// Relationship is set for lookup columns.
	Relationship *RelationshipMetadata `json:"relationship,omitempty" yaml:"relationship,omitempty" bson:"relationship,omitempty" validate:"required_if=Type lookup"`

	ConditionalFormatting []ConditionalFormat `json:"conditionalFormatting,omitempty" yaml:"conditionalFormatting,omitempty" bson:"conditionalFormatting,omitempty" validate:"dive"`
}

// IsComputed reports whether the column is synthesized at read time.
func (c ColumnDefinition) IsComputed() bool {
	return c.Type.IsComputed()
}

// FormulaMetadata holds either a cross-table aggregation (TargetModuleName
// set) or a row-level expression (Expression set).
type FormulaMetadata struct {
	// Cross-table aggregation
	TargetModuleName string                 `json:"target_module_name,omitempty" yaml:"target_module_name,omitempty" bson:"target_module_name,omitempty"`
	TargetColumnKey  string                 `json:"target_column_key,omitempty" yaml:"target_column_key,omitempty" bson:"target_column_key,omitempty"`
	Operation        AggregateOperation     `json:"operation,omitempty" yaml:"operation,omitempty" bson:"operation,omitempty" validate:"omitempty,oneof=SUM AVERAGE COUNT MIN MAX"`
	Filter           map[string]interface{} `json:"filter,omitempty" yaml:"filter,omitempty" bson:"filter,omitempty"`

	// Row-level expression
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty" bson:"expression,omitempty"`

	// ColumnReferences lists the names found in Expression. Informational.
	ColumnReferences []string `json:"columnReferences,omitempty" yaml:"columnReferences,omitempty" bson:"columnReferences,omitempty"`
}

// IsAggregation reports whether the metadata describes a cross-table
// aggregation rather than a row expression.
func (f *FormulaMetadata) IsAggregation() bool {
	return f != nil && f.Expression == "" && f.TargetModuleName != ""
}

// RelationshipMetadata links a lookup column to a row of another module.
type RelationshipMetadata struct {
	TargetModuleName string `json:"target_module_name" yaml:"target_module_name" bson:"target_module_name" validate:"required"`
	// TargetColumnKey is the key column in the target module.
	TargetColumnKey string `json:"target_column_key" yaml:"target_column_key" bson:"target_column_key" validate:"required"`
	// SourceColumnKey is the key column in the current row.
	SourceColumnKey string `json:"source_column_key" yaml:"source_column_key" bson:"source_column_key" validate:"required"`
	// DisplayColumnKey is surfaced from the matched target record.
	DisplayColumnKey string `json:"display_column_key" yaml:"display_column_key" bson:"display_column_key" validate:"required"`
}

// ConditionalFormat is a display rule attached to a column.
type ConditionalFormat struct {
	Operator        FilterOperator `json:"condition" yaml:"condition" bson:"condition" validate:"required"`
	Value           interface{}    `json:"value,omitempty" yaml:"value,omitempty" bson:"value,omitempty"`
	Value2          interface{}    `json:"value2,omitempty" yaml:"value2,omitempty" bson:"value2,omitempty"`
	DataType        FilterDataType `json:"dataType,omitempty" yaml:"dataType,omitempty" bson:"dataType,omitempty"`
	BackgroundColor string         `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty" bson:"backgroundColor,omitempty"`
	TextColor       string         `json:"textColor,omitempty" yaml:"textColor,omitempty" bson:"textColor,omitempty"`
}

// Record is one row of a module. Data holds stored values only.
type Record struct {
	ID         string                 `json:"id" bson:"id"`
	ModuleName string                 `json:"module_name" bson:"module_name"`
	Data       map[string]interface{} `json:"data" bson:"data"`
	CreatedAt  time.Time              `json:"created_at,omitempty" bson:"created_at,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// Get returns the Value stored (or computed) under key.
func (r Record) Get(key string) Value {
	if r.Data == nil {
		return Null()
	}
	return FromAny(r.Data[key])
}

// Clone copies the record with a fresh Data map so computed values can be
// added without touching the stored map.
func (r Record) Clone() Record {
	data := make(map[string]interface{}, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	r.Data = data
	return r
}

// LookupOption is one entry of a relationship selection list.
type LookupOption struct {
	Value interface{} `json:"value"`
	Label string      `json:"label"`
}
