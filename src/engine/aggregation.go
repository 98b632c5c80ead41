package engine

import (
	"context"
	"strings"

	"clientdesk/src/helpers"
	"clientdesk/src/models"

	"go.uber.org/zap"
)

// AggregationResolver computes SUM/AVERAGE/COUNT/MIN/MAX over one column of
// another module, re-reading that module on every call.
type AggregationResolver struct {
	source RecordFetcher
	logger *zap.SugaredLogger
}

func NewAggregationResolver(source RecordFetcher, logger *zap.SugaredLogger) *AggregationResolver {
	return &AggregationResolver{source: source, logger: helpers.OrNop(logger)}
}

// Aggregate fetches moduleName, keeps the records matching every key of
// filter exactly, and aggregates the numeric values of columnKey. Null,
// empty and unparsable values are left out of the population. An empty
// population yields 0 for every operation. COUNT is the number of numeric
// values, not the number of rows (the pivot engine's COUNT differs).
func (r *AggregationResolver) Aggregate(ctx context.Context, moduleName, columnKey string, op models.AggregateOperation, filter map[string]interface{}) (float64, error) {
	records, err := fetchModule(ctx, r.source, moduleName)
	if err != nil {
		r.logger.Errorw("aggregation fetch failed", "module", moduleName, "error", err)
		return 0, err
	}

	values := make([]float64, 0, len(records))
	for _, rec := range records {
		if !matchesExactly(rec, filter) {
			continue
		}
		if f, ok := rec.Get(columnKey).AsNumber(); ok {
			values = append(values, f)
		}
	}
	return aggregateNumbers(values, op), nil
}

// matchesExactly requires every filter entry to equal the record value with
// the same kind.
func matchesExactly(rec models.Record, filter map[string]interface{}) bool {
	for k, want := range filter {
		if !models.StrictEqual(rec.Get(k), models.FromAny(want)) {
			return false
		}
	}
	return true
}

func aggregateNumbers(values []float64, op models.AggregateOperation) float64 {
	if len(values) == 0 {
		return 0
	}
	switch models.AggregateOperation(strings.ToUpper(string(op))) {
	case models.OpSum:
		return sum(values)
	case models.OpAverage, "AVG":
		return sum(values) / float64(len(values))
	case models.OpCount:
		return float64(len(values))
	case models.OpMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case models.OpMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m
	}
	return 0
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
