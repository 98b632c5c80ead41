package engine

import (
	"strings"

	"clientdesk/src/models"
)

const (
	LocaleEnglish = "en"
	LocaleHebrew  = "he"
)

type filterPhrases struct {
	operators map[models.FilterOperator]string
	and       string
	or        string
	between   string // joins the two bounds of between
	listSep   string
}

var descriptionPhrases = map[string]filterPhrases{
	LocaleEnglish: {
		operators: map[models.FilterOperator]string{
			models.OpEquals:      "is",
			models.OpNotEquals:   "is not",
			models.OpContains:    "contains",
			models.OpNotContains: "does not contain",
			models.OpStartsWith:  "starts with",
			models.OpEndsWith:    "ends with",
			models.OpIn:          "is one of",
			models.OpNotIn:       "is not one of",
			models.OpGt:          "is greater than",
			models.OpGte:         "is at least",
			models.OpLt:          "is less than",
			models.OpLte:         "is at most",
			models.OpBetween:     "is between",
			models.OpIsEmpty:     "is empty",
			models.OpIsNotEmpty:  "is not empty",
		},
		and:     "and",
		or:      "or",
		between: "and",
		listSep: ", ",
	},
	LocaleHebrew: {
		operators: map[models.FilterOperator]string{
			models.OpEquals:      "שווה ל",
			models.OpNotEquals:   "לא שווה ל",
			models.OpContains:    "מכיל",
			models.OpNotContains: "לא מכיל",
			models.OpStartsWith:  "מתחיל ב",
			models.OpEndsWith:    "מסתיים ב",
			models.OpIn:          "אחד מ",
			models.OpNotIn:       "אינו אחד מ",
			models.OpGt:          "גדול מ",
			models.OpGte:         "גדול או שווה ל",
			models.OpLt:          "קטן מ",
			models.OpLte:         "קטן או שווה ל",
			models.OpBetween:     "בין",
			models.OpIsEmpty:     "ריק",
			models.OpIsNotEmpty:  "לא ריק",
		},
		and:     "וגם",
		or:      "או",
		between: "ל",
		listSep: ", ",
	},
}

// DescribeFilters renders a filter group as one readable sentence, e.g.
// `status is paid and amount is greater than 100`. Unknown locales fall back
// to English. An empty group yields "".
func DescribeFilters(group models.FilterGroup, locale string) string {
	phrases, ok := descriptionPhrases[locale]
	if !ok {
		phrases = descriptionPhrases[LocaleEnglish]
	}
	connective := phrases.and
	if models.FilterLogic(strings.ToUpper(string(group.Logic))) == models.LogicOr {
		connective = phrases.or
	}

	parts := make([]string, 0, len(group.Conditions))
	for _, cond := range group.Conditions {
		parts = append(parts, describeCondition(cond, phrases))
	}
	return strings.Join(parts, " "+connective+" ")
}

func describeCondition(cond models.FilterCondition, phrases filterPhrases) string {
	op, ok := phrases.operators[cond.Operator]
	if !ok {
		op = string(cond.Operator)
	}
	switch cond.Operator {
	case models.OpIsEmpty, models.OpIsNotEmpty:
		return cond.Field + " " + op
	case models.OpBetween:
		return cond.Field + " " + op + " " + describeValue(cond.Value) + " " + phrases.between + " " + describeValue(cond.Value2)
	case models.OpIn, models.OpNotIn:
		items := filterList(cond.Value)
		texts := make([]string, 0, len(items))
		for _, item := range items {
			texts = append(texts, item.AsText())
		}
		return cond.Field + " " + op + " " + strings.Join(texts, phrases.listSep)
	}
	return cond.Field + " " + op + " " + describeValue(cond.Value)
}

func describeValue(v interface{}) string {
	return models.FromAny(v).AsText()
}
