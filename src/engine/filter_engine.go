package engine

import (
	"strings"

	"clientdesk/src/models"
)

// ApplyFilters returns the records matching group, in input order. A group
// without conditions matches everything. Logic defaults to AND.
func ApplyFilters(records []models.Record, group models.FilterGroup) []models.Record {
	if len(group.Conditions) == 0 {
		return records
	}
	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if MatchRecord(rec, group) {
			out = append(out, rec)
		}
	}
	return out
}

// MatchRecord evaluates a filter group against one record.
func MatchRecord(rec models.Record, group models.FilterGroup) bool {
	if len(group.Conditions) == 0 {
		return true
	}
	if models.FilterLogic(strings.ToUpper(string(group.Logic))) == models.LogicOr {
		for _, cond := range group.Conditions {
			if matchCondition(fieldValue(rec, cond.Field), cond) {
				return true
			}
		}
		return false
	}
	for _, cond := range group.Conditions {
		if !matchCondition(fieldValue(rec, cond.Field), cond) {
			return false
		}
	}
	return true
}

// MatchConditionalFormat returns the first formatting rule of column that
// matches value. Rules without a data type take it from the column type.
func MatchConditionalFormat(column models.ColumnDefinition, value interface{}) (models.ConditionalFormat, bool) {
	v := models.FromAny(value)
	for _, rule := range column.ConditionalFormatting {
		dataType := rule.DataType
		if dataType == "" {
			dataType = dataTypeForColumn(column.Type)
		}
		cond := models.FilterCondition{
			Field:    column.Name,
			Operator: rule.Operator,
			Value:    rule.Value,
			Value2:   rule.Value2,
			DataType: dataType,
		}
		if matchCondition(v, cond) {
			return rule, true
		}
	}
	return models.ConditionalFormat{}, false
}

func dataTypeForColumn(t models.ColumnType) models.FilterDataType {
	switch t {
	case models.ColumnNumber, models.ColumnCurrency:
		return models.DataNumber
	case models.ColumnDate:
		return models.DataDate
	}
	return models.DataText
}

// matchCondition is the comparison core shared by filters and conditional
// formatting. isEmpty and isNotEmpty ignore the data type and partition every
// value set; any other operator is false on a null field.
func matchCondition(field models.Value, cond models.FilterCondition) bool {
	switch cond.Operator {
	case models.OpIsEmpty:
		return field.IsEmpty()
	case models.OpIsNotEmpty:
		return !field.IsEmpty()
	}
	if field.IsNull() {
		return false
	}

	switch cond.DataType {
	case models.DataNumber:
		return matchNumber(field, cond)
	case models.DataDate:
		return matchDate(field, cond)
	case models.DataBoolean:
		return matchBoolean(field, cond)
	default:
		return matchText(field, cond)
	}
}

func matchText(field models.Value, cond models.FilterCondition) bool {
	have := strings.ToLower(field.AsText())
	want := strings.ToLower(models.FromAny(cond.Value).AsText())

	switch cond.Operator {
	case models.OpEquals:
		return have == want
	case models.OpNotEquals:
		return have != want
	case models.OpContains:
		return strings.Contains(have, want)
	case models.OpNotContains:
		return !strings.Contains(have, want)
	case models.OpStartsWith:
		return strings.HasPrefix(have, want)
	case models.OpEndsWith:
		return strings.HasSuffix(have, want)
	case models.OpIn, models.OpNotIn:
		found := false
		for _, item := range filterList(cond.Value) {
			if strings.ToLower(item.AsText()) == have {
				found = true
				break
			}
		}
		return found == (cond.Operator == models.OpIn)
	}
	return false
}

func matchNumber(field models.Value, cond models.FilterCondition) bool {
	have, ok := field.AsNumber()
	if !ok {
		return false
	}

	switch cond.Operator {
	case models.OpIn, models.OpNotIn:
		found := false
		for _, item := range filterList(cond.Value) {
			if f, ok := item.AsNumber(); ok && f == have {
				found = true
				break
			}
		}
		return found == (cond.Operator == models.OpIn)
	}

	want, ok := models.FromAny(cond.Value).AsNumber()
	if !ok {
		return false
	}
	switch cond.Operator {
	case models.OpEquals:
		return have == want
	case models.OpNotEquals:
		return have != want
	case models.OpGt:
		return have > want
	case models.OpGte:
		return have >= want
	case models.OpLt:
		return have < want
	case models.OpLte:
		return have <= want
	case models.OpBetween:
		upper, ok := models.FromAny(cond.Value2).AsNumber()
		return ok && have >= want && have <= upper
	}
	return false
}

// matchDate compares equals/notEquals by calendar day and ordering by full
// timestamp.
func matchDate(field models.Value, cond models.FilterCondition) bool {
	have, ok := field.AsDate()
	if !ok {
		return false
	}
	want, ok := models.FromAny(cond.Value).AsDate()
	if !ok {
		return false
	}

	switch cond.Operator {
	case models.OpEquals:
		return models.SameDay(have, want)
	case models.OpNotEquals:
		return !models.SameDay(have, want)
	case models.OpGt:
		return have.After(want)
	case models.OpGte:
		return !have.Before(want)
	case models.OpLt:
		return have.Before(want)
	case models.OpLte:
		return !have.After(want)
	case models.OpBetween:
		upper, ok := models.FromAny(cond.Value2).AsDate()
		return ok && !have.Before(want) && !have.After(upper)
	}
	return false
}

func matchBoolean(field models.Value, cond models.FilterCondition) bool {
	same := field.Truthy() == models.FromAny(cond.Value).Truthy()
	switch cond.Operator {
	case models.OpEquals:
		return same
	case models.OpNotEquals:
		return !same
	}
	return false
}

// filterList reads the operand of in/notIn: a slice, or a comma separated
// string.
func filterList(raw interface{}) []models.Value {
	switch t := raw.(type) {
	case nil:
		return nil
	case []interface{}:
		out := make([]models.Value, 0, len(t))
		for _, item := range t {
			out = append(out, models.FromAny(item))
		}
		return out
	case []string:
		out := make([]models.Value, 0, len(t))
		for _, item := range t {
			out = append(out, models.Text(strings.TrimSpace(item)))
		}
		return out
	case []float64:
		out := make([]models.Value, 0, len(t))
		for _, item := range t {
			out = append(out, models.Number(item))
		}
		return out
	case string:
		parts := strings.Split(t, ",")
		out := make([]models.Value, 0, len(parts))
		for _, p := range parts {
			out = append(out, models.Text(strings.TrimSpace(p)))
		}
		return out
	}
	return []models.Value{models.FromAny(raw)}
}
