package engine

import (
	"strings"

	"clientdesk/src/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResolveField reads field from a record. It tries the record's own
// properties (id, module_name), then a key of Data, then a dotted path such
// as "data.amount" or "customer.city" through nested maps. The second return
// is false when nothing matched.
func ResolveField(rec models.Record, field string) (interface{}, bool) {
	switch field {
	case "id":
		return rec.ID, rec.ID != ""
	case "module_name":
		return rec.ModuleName, rec.ModuleName != ""
	}
	if v, ok := rec.Data[field]; ok {
		return v, true
	}
	if !strings.Contains(field, ".") {
		return nil, false
	}

	parts := strings.Split(field, ".")
	var cur interface{}
	if v, ok := rec.Data[parts[0]]; ok {
		cur = v
	} else if parts[0] == "data" {
		cur = rec.Data
	} else {
		return nil, false
	}
	for _, part := range parts[1:] {
		next, ok := child(cur, part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func child(v interface{}, key string) (interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		c, ok := m[key]
		return c, ok
	case primitive.M:
		c, ok := m[key]
		return c, ok
	case primitive.D:
		for _, e := range m {
			if e.Key == key {
				return e.Value, true
			}
		}
	}
	return nil, false
}

// fieldValue is ResolveField as a tagged value; missing fields are null.
func fieldValue(rec models.Record, field string) models.Value {
	v, ok := ResolveField(rec, field)
	if !ok {
		return models.Null()
	}
	return models.FromAny(v)
}
