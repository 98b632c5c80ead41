package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies which member of the Value union is set.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is the tagged union every stored or computed cell is converted to
// before the engine looks at it. All numeric/date/text coercion lives here.
type Value struct {
	kind Kind
	num  float64
	text string
	date time.Time
	b    bool
}

func Null() Value { return Value{} }
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func Text(s string) Value { return Value{kind: KindText, text: s} }
func Date(t time.Time) Value { return Value{kind: KindDate, date: t} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsText() bool { return v.kind == KindText }
func (v Value) IsDate() bool { return v.kind == KindDate }
func (v Value) IsBool() bool { return v.kind == KindBool }
func (v Value) String() string { return v.AsText() }
func (v Value) GoString() string { return fmt.Sprintf("%s(%s)", v.kind, v.AsText()) }

// FromAny converts a raw attribute-map value (as decoded from JSON, BSON or
// YAML) into a Value. Unknown types are rendered as text.
func FromAny(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case *Value:
		if t == nil {
			return Null()
		}
		return *t
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return Text(t.String())
	case decimal.Decimal:
		return Number(t.InexactFloat64())
	case string:
		return Text(t)
	case bool:
		return Bool(t)
	case time.Time:
		return Date(t)
	case *time.Time:
		if t == nil {
			return Null()
		}
		return Date(*t)
	case primitive.DateTime:
		return Date(t.Time().UTC())
	default:
		return Text(fmt.Sprint(t))
	}
}

// AsNumber coerces v to a finite float64. Text must parse completely (after
// trimming and dropping thousands separators); dates and booleans are not
// numeric.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return 0, false
		}
		return v.num, true
	case KindText:
		s := strings.TrimSpace(v.text)
		if s == "" {
			return 0, false
		}
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// NumberOrZero is the arithmetic coercion: anything non-numeric becomes 0.
func (v Value) NumberOrZero() float64 {
	f, _ := v.AsNumber()
	return f
}

// AsText renders v for display, concatenation and text comparison.
func (v Value) AsText() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	case KindDate:
		if v.date.Hour() == 0 && v.date.Minute() == 0 && v.date.Second() == 0 && v.date.Nanosecond() == 0 {
			return v.date.Format("2006-01-02")
		}
		return v.date.Format(time.RFC3339)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// AsDate coerces v to a time. Numbers are epoch milliseconds; text goes
// through dateparse, with zone-less text read as UTC.
func (v Value) AsDate() (time.Time, bool) {
	switch v.kind {
	case KindDate:
		if v.date.IsZero() {
			return time.Time{}, false
		}
		return v.date, true
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(v.num)).UTC(), true
	case KindText:
		s := strings.TrimSpace(v.text)
		if s == "" {
			return time.Time{}, false
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// Falsy reports the plain falsy set: null, false, 0, NaN and "". The text
// "0" and "false" are not falsy here; see Truthy.
func (v Value) Falsy() bool {
	switch v.kind {
	case KindNumber:
		return v.num == 0 || math.IsNaN(v.num)
	case KindText:
		return v.text == ""
	case KindBool:
		return !v.b
	case KindDate:
		return false
	default:
		return true
	}
}

// Truthy follows the usual falsy set (null, false, 0, NaN, "") and also
// treats the text "false" and "0" as false, since boolean columns often
// arrive as strings from form inputs.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindText:
		s := strings.TrimSpace(strings.ToLower(v.text))
		return s != "" && s != "false" && s != "0"
	case KindDate:
		return true
	case KindBool:
		return v.b
	default:
		return false
	}
}

// IsEmpty reports null or the empty string.
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindText && v.text == "")
}

// Interface converts v back into a plain Go value for attribute maps.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.text
	case KindDate:
		return v.date
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// LooseEqual compares numerically when both sides are numeric and falls back
// to text equality otherwise. Null only equals null.
func LooseEqual(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.kind == KindBool || b.kind == KindBool {
		return a.Truthy() == b.Truthy()
	}
	an, aok := a.AsNumber()
	bn, bok := b.AsNumber()
	if aok && bok {
		return an == bn
	}
	if a.kind == KindDate && b.kind == KindDate {
		return a.date.Equal(b.date)
	}
	return a.AsText() == b.AsText()
}

// StrictEqual requires the same kind and the same value; numbers compare
// numerically regardless of their original Go type.
func StrictEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindNumber:
		return a.num == b.num
	case KindText:
		return a.text == b.text
	case KindDate:
		return a.date.Equal(b.date)
	case KindBool:
		return a.b == b.b
	}
	return false
}

// SameDay reports whether two times fall on the same UTC calendar day.
// Calendar dates are stored as UTC midnight.
func SameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
