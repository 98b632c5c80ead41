package engine

import (
	"context"

	"clientdesk/src/helpers"
	"clientdesk/src/models"

	"go.uber.org/zap"
)

// RecordEvaluator fills in the computed columns of a module's records.
// Computed values go into copies of the records; stored data is never
// modified.
type RecordEvaluator struct {
	records       RecordFetcher
	schema        SchemaRegistry
	evaluator     *Evaluator
	logger        *zap.SugaredLogger
	memo          bool
	prefetchLimit int
}

// RecordEvaluatorOption configures a RecordEvaluator.
type RecordEvaluatorOption func(*RecordEvaluator)

// WithMemo turns the per-pass fetch cache on or off. With it off every
// aggregation and lookup reads its target module again.
func WithMemo(enabled bool) RecordEvaluatorOption {
	return func(r *RecordEvaluator) { r.memo = enabled }
}

// WithEvaluator sets the formula evaluator (clock, function registry).
func WithEvaluator(ev *Evaluator) RecordEvaluatorOption {
	return func(r *RecordEvaluator) { r.evaluator = ev }
}

// WithPrefetchLimit bounds how many target modules are fetched at once.
func WithPrefetchLimit(n int) RecordEvaluatorOption {
	return func(r *RecordEvaluator) { r.prefetchLimit = n }
}

func NewRecordEvaluator(records RecordFetcher, schema SchemaRegistry, logger *zap.SugaredLogger, opts ...RecordEvaluatorOption) *RecordEvaluator {
	logger = helpers.OrNop(logger)
	r := &RecordEvaluator{
		records:       records,
		schema:        schema,
		logger:        logger,
		memo:          true,
		prefetchLimit: defaultPrefetchLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.evaluator == nil {
		r.evaluator = NewEvaluator(logger)
	}
	return r
}

// pass holds the resolvers of one evaluation pass, all reading through the
// same source.
type pass struct {
	ev  *Evaluator
	agg *AggregationResolver
	rel *RelationshipResolver
}

func (r *RecordEvaluator) newPass(ctx context.Context, columns []models.ColumnDefinition) (*pass, error) {
	source := r.records
	if r.memo {
		cache := newFetchCache(r.records)
		if targets := targetModules(columns); len(targets) > 0 {
			if err := cache.prefetch(ctx, targets, r.prefetchLimit); err != nil {
				r.logger.Errorw("prefetch of target modules failed", "modules", targets, "error", err)
				return nil, err
			}
		}
		source = cache
	}
	return &pass{
		ev:  r.evaluator.BindLookups(source),
		agg: NewAggregationResolver(source, r.logger),
		rel: NewRelationshipResolver(source, r.logger),
	}, nil
}

// ComputeRecords reads a module's schema and records and returns the records
// with every computed column filled in.
func (r *RecordEvaluator) ComputeRecords(ctx context.Context, moduleName string) ([]models.Record, error) {
	columns, err := r.schema.GetColumns(ctx, moduleName)
	if err != nil {
		return nil, NewStoreError("columns", moduleName, err)
	}
	records, err := fetchModule(ctx, r.records, moduleName)
	if err != nil {
		return nil, err
	}
	if !hasComputed(columns) {
		return records, nil
	}

	p, err := r.newPass(ctx, columns)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		computed := rec.Clone()
		if err := p.computeRow(ctx, computed.Data, columns); err != nil {
			return nil, err
		}
		out = append(out, computed)
	}
	r.logger.Debugw("computed module records", "module", moduleName, "records", len(out))
	return out, nil
}

// ComputeColumnsFor evaluates the computed columns of one unsaved row, such
// as a form being filled in. The returned map holds the input values plus the
// computed ones.
func (r *RecordEvaluator) ComputeColumnsFor(ctx context.Context, moduleName string, data map[string]interface{}) (map[string]interface{}, error) {
	columns, err := r.schema.GetColumns(ctx, moduleName)
	if err != nil {
		return nil, NewStoreError("columns", moduleName, err)
	}
	row := make(map[string]interface{}, len(data)+len(columns))
	for k, v := range data {
		row[k] = v
	}
	if !hasComputed(columns) {
		return row, nil
	}
	p, err := r.newPass(ctx, columns)
	if err != nil {
		return nil, err
	}
	if err := p.computeRow(ctx, row, columns); err != nil {
		return nil, err
	}
	return row, nil
}

// computeRow evaluates computed columns in schema order, writing each result
// into data so later formulas can reference earlier computed columns.
func (p *pass) computeRow(ctx context.Context, data map[string]interface{}, columns []models.ColumnDefinition) error {
	for _, col := range columns {
		if !col.IsComputed() {
			continue
		}
		v, err := p.computeColumn(ctx, data, col)
		if err != nil {
			return err
		}
		data[col.Name] = v
	}
	return nil
}

func (p *pass) computeColumn(ctx context.Context, data map[string]interface{}, col models.ColumnDefinition) (interface{}, error) {
	if col.Type == models.ColumnLookup {
		if col.Relationship == nil {
			return nil, nil
		}
		v, err := p.rel.ResolveLookup(ctx, *col.Relationship, data[col.Relationship.SourceColumnKey])
		return v.Interface(), err
	}

	f := col.Formula
	switch {
	case f.IsAggregation():
		total, err := p.agg.Aggregate(ctx, f.TargetModuleName, f.TargetColumnKey, f.Operation, f.Filter)
		if err != nil {
			return nil, err
		}
		return total, nil
	case f != nil && f.Expression != "":
		v, err := p.ev.Evaluate(ctx, f.Expression, data)
		return v.Interface(), err
	}
	return nil, nil
}

func hasComputed(columns []models.ColumnDefinition) bool {
	for _, col := range columns {
		if col.IsComputed() {
			return true
		}
	}
	return false
}

// targetModules lists the distinct modules the computed columns read:
// aggregation targets, lookup targets and LOOKUP tables named by string
// literals in expressions.
func targetModules(columns []models.ColumnDefinition) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, col := range columns {
		if col.Relationship != nil && col.Type == models.ColumnLookup {
			add(col.Relationship.TargetModuleName)
		}
		if col.Formula == nil || !col.IsComputed() {
			continue
		}
		if col.Formula.IsAggregation() {
			add(col.Formula.TargetModuleName)
		} else if col.Formula.Expression != "" {
			for _, t := range lookupTables(col.Formula.Expression) {
				add(t)
			}
		}
	}
	return out
}

func lookupTables(expr string) []string {
	node, err := ParseFormula(expr)
	if err != nil {
		return nil
	}
	var tables []string
	var walk func(Node)
	walk = func(n Node) {
		switch t := n.(type) {
		case *UnaryExpr:
			walk(t.X)
		case *BinaryExpr:
			walk(t.Left)
			walk(t.Right)
		case *CallExpr:
			if t.Name == "LOOKUP" && len(t.Args) > 1 {
				if lit, ok := t.Args[1].(*StringLit); ok {
					tables = append(tables, lit.Value)
				}
			}
			for _, a := range t.Args {
				walk(a)
			}
		}
	}
	walk(node)
	return tables
}
