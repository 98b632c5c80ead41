package directors

import (
	"context"
	"errors"
	"fmt"

	"clientdesk/src/engine"
	"clientdesk/src/helpers"
	"clientdesk/src/models"
	"clientdesk/src/settings"
	"clientdesk/src/storage"

	"go.uber.org/zap"
)

// Define errors
var (
	ErrModuleNotFound  = errors.New("module not found")
	ErrColumnNotFound  = errors.New("column not found")
	ErrNotLookupColumn = errors.New("column is not a lookup column")
	ErrInvalidFilter   = errors.New("invalid filter")
)

// ModuleService is the CRUD and read layer over tenant modules. Reads come
// back with computed columns filled in; writes never store computed
// columns.
type ModuleService struct {
	records   storage.RecordBackend
	schemas   storage.SchemaBackend
	evaluator *engine.Evaluator
	settings  *settings.Arguments
	logger    *zap.SugaredLogger
}

func NewModuleService(records storage.RecordBackend, schemas storage.SchemaBackend,
	logger *zap.SugaredLogger,
	settings *settings.Arguments,
	opts ...engine.EvaluatorOption) *ModuleService {
	logger = helpers.OrNop(logger)
	return &ModuleService{
		records:   records,
		schemas:   schemas,
		evaluator: engine.NewEvaluator(logger, opts...),
		settings:  settings,
		logger:    logger,
	}
}

func (s *ModuleService) stores(tenant string) (engine.RecordStore, storage.SchemaStore, error) {
	records, err := s.records.Records(tenant)
	if err != nil {
		return nil, nil, err
	}
	schema, err := s.schemas.Schema(tenant)
	if err != nil {
		return nil, nil, err
	}
	return records, schema, nil
}

func (s *ModuleService) recordEvaluator(records engine.RecordFetcher, schema engine.SchemaRegistry) *engine.RecordEvaluator {
	return engine.NewRecordEvaluator(records, schema, s.logger,
		engine.WithEvaluator(s.evaluator),
		engine.WithMemo(s.settings.Memo),
		engine.WithPrefetchLimit(s.settings.PrefetchLimit))
}

// Columns returns a module's column definitions, or ErrModuleNotFound when
// the module has none.
func (s *ModuleService) Columns(ctx context.Context, tenant, moduleName string) ([]models.ColumnDefinition, error) {
	_, schema, err := s.stores(tenant)
	if err != nil {
		return nil, err
	}
	return requireColumns(ctx, schema, moduleName)
}

func requireColumns(ctx context.Context, schema engine.SchemaRegistry, moduleName string) ([]models.ColumnDefinition, error) {
	columns, err := schema.GetColumns(ctx, moduleName)
	if err != nil {
		return nil, engine.NewStoreError("columns", moduleName, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleName)
	}
	return columns, nil
}

// DefineModule saves a module's columns. ColumnReferences of expression
// columns are filled in from their expressions.
func (s *ModuleService) DefineModule(ctx context.Context, tenant, moduleName string, columns []models.ColumnDefinition) error {
	_, schema, err := s.stores(tenant)
	if err != nil {
		return err
	}
	for i := range columns {
		if f := columns[i].Formula; f != nil && f.Expression != "" {
			f.ColumnReferences = engine.ExtractColumnReferences(f.Expression)
		}
	}
	if err := schema.DefineColumns(ctx, moduleName, columns); err != nil {
		return fmt.Errorf("failed to define module '%s': %w", moduleName, err)
	}
	if s.settings.Debug {
		s.logger.Infof("Defined module '%s' with %d columns", moduleName, len(columns))
	}
	return nil
}

func (s *ModuleService) Modules(ctx context.Context, tenant string) ([]string, error) {
	_, schema, err := s.stores(tenant)
	if err != nil {
		return nil, err
	}
	return schema.ListModules(ctx)
}

// ListRecords returns a module's records with computed columns, reduced by
// filter when it is non-nil.
func (s *ModuleService) ListRecords(ctx context.Context, tenant, moduleName string, filter *models.FilterGroup) ([]models.Record, error) {
	if filter != nil {
		if err := models.ValidateFilterGroup(*filter); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
	}
	records, schema, err := s.stores(tenant)
	if err != nil {
		return nil, err
	}
	if _, err := requireColumns(ctx, schema, moduleName); err != nil {
		return nil, err
	}
	computed, err := s.recordEvaluator(records, schema).ComputeRecords(ctx, moduleName)
	if err != nil {
		return nil, fmt.Errorf("failed to read module '%s': %w", moduleName, err)
	}
	if filter != nil {
		computed = engine.ApplyFilters(computed, *filter)
	}
	return computed, nil
}

// QueryRecords is ListRecords with a one-line filter expression such as
// `status == "paid" AND amount > 100`.
func (s *ModuleService) QueryRecords(ctx context.Context, tenant, moduleName, where string) ([]models.Record, error) {
	group, err := engine.ParseFilterExpression(where)
	if err != nil {
		return nil, err
	}
	return s.ListRecords(ctx, tenant, moduleName, &group)
}

// DescribeFilter renders a filter in the configured locale.
func (s *ModuleService) DescribeFilter(group models.FilterGroup) string {
	return engine.DescribeFilters(group, s.settings.Locale)
}

// CellFormats returns, per column, the conditional format rule matching the
// record's value.
func (s *ModuleService) CellFormats(columns []models.ColumnDefinition, rec models.Record) map[string]models.ConditionalFormat {
	formats := make(map[string]models.ConditionalFormat)
	for _, col := range columns {
		if len(col.ConditionalFormatting) == 0 {
			continue
		}
		if rule, ok := engine.MatchConditionalFormat(col, rec.Data[col.Name]); ok {
			formats[col.Name] = rule
		}
	}
	return formats
}

// Preview computes the computed columns of an unsaved row.
func (s *ModuleService) Preview(ctx context.Context, tenant, moduleName string, data map[string]interface{}) (map[string]interface{}, error) {
	records, schema, err := s.stores(tenant)
	if err != nil {
		return nil, err
	}
	return s.recordEvaluator(records, schema).ComputeColumnsFor(ctx, moduleName, data)
}

// Evaluate runs a formula against values, with LOOKUP reading the tenant's
// modules.
func (s *ModuleService) Evaluate(ctx context.Context, tenant, expression string, values map[string]interface{}) (models.Value, error) {
	records, err := s.records.Records(tenant)
	if err != nil {
		return models.Null(), err
	}
	return s.evaluator.BindLookups(records).Evaluate(ctx, expression, values)
}

func (s *ModuleService) Aggregate(ctx context.Context, tenant, moduleName, columnKey string, op models.AggregateOperation, filter map[string]interface{}) (float64, error) {
	records, err := s.records.Records(tenant)
	if err != nil {
		return 0, err
	}
	return engine.NewAggregationResolver(records, s.logger).Aggregate(ctx, moduleName, columnKey, op, filter)
}

// LookupOptions lists the selectable values of a lookup column.
func (s *ModuleService) LookupOptions(ctx context.Context, tenant, moduleName, columnName string) ([]models.LookupOption, error) {
	records, schema, err := s.stores(tenant)
	if err != nil {
		return nil, err
	}
	columns, err := requireColumns(ctx, schema, moduleName)
	if err != nil {
		return nil, err
	}
	for _, col := range columns {
		if col.Name != columnName {
			continue
		}
		if col.Type != models.ColumnLookup || col.Relationship == nil {
			return nil, fmt.Errorf("%w: %s.%s", ErrNotLookupColumn, moduleName, columnName)
		}
		return engine.NewRelationshipResolver(records, s.logger).ResolveLookupOptions(ctx, *col.Relationship)
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, moduleName, columnName)
}

// Pivot runs a pivot over the module's computed records.
func (s *ModuleService) Pivot(ctx context.Context, tenant, moduleName string, config models.PivotConfig) (models.PivotResult, error) {
	records, err := s.ListRecords(ctx, tenant, moduleName, nil)
	if err != nil {
		return models.PivotResult{}, err
	}
	return engine.GeneratePivot(records, config)
}

// PivotCSV runs a pivot and renders it as CSV with a localized totals line.
func (s *ModuleService) PivotCSV(ctx context.Context, tenant, moduleName string, config models.PivotConfig, includeTotals bool) (string, error) {
	result, err := s.Pivot(ctx, tenant, moduleName, config)
	if err != nil {
		return "", err
	}
	return engine.ExportPivotToCSV(result, includeTotals, s.settings.Locale)
}

// storedData keeps the keys that are not computed columns and, when
// withDefaults is set, fills in defaults of stored columns missing from data.
func storedData(columns []models.ColumnDefinition, data map[string]interface{}, withDefaults bool) map[string]interface{} {
	computed := make(map[string]bool)
	for _, col := range columns {
		if col.IsComputed() {
			computed[col.Name] = true
		}
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if !computed[k] {
			out[k] = v
		}
	}
	if withDefaults {
		for _, col := range columns {
			if col.IsComputed() || col.Default == nil {
				continue
			}
			if _, ok := out[col.Name]; !ok {
				out[col.Name] = col.Default
			}
		}
	}
	return out
}

// InsertRecord stores a new record. Computed columns in data are dropped
// and defaults are applied to missing stored columns.
func (s *ModuleService) InsertRecord(ctx context.Context, tenant, moduleName string, data map[string]interface{}) (models.Record, error) {
	records, schema, err := s.stores(tenant)
	if err != nil {
		return models.Record{}, err
	}
	columns, err := requireColumns(ctx, schema, moduleName)
	if err != nil {
		return models.Record{}, err
	}
	rec, err := records.Insert(ctx, moduleName, storedData(columns, data, true))
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to insert into '%s': %w", moduleName, engine.NewStoreError("insert", moduleName, err))
	}
	return rec, nil
}

// UpdateRecord merges data into a stored record, dropping computed columns.
func (s *ModuleService) UpdateRecord(ctx context.Context, tenant, moduleName, id string, data map[string]interface{}) (models.Record, error) {
	records, schema, err := s.stores(tenant)
	if err != nil {
		return models.Record{}, err
	}
	columns, err := requireColumns(ctx, schema, moduleName)
	if err != nil {
		return models.Record{}, err
	}
	rec, err := records.Update(ctx, moduleName, id, storedData(columns, data, false))
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to update record '%s': %w", id, err)
	}
	return rec, nil
}

func (s *ModuleService) DeleteRecord(ctx context.Context, tenant, moduleName, id string) error {
	records, err := s.records.Records(tenant)
	if err != nil {
		return err
	}
	if err := records.Delete(ctx, moduleName, id); err != nil {
		return fmt.Errorf("failed to delete record '%s': %w", id, err)
	}
	return nil
}

// UpdateWhere applies data to every record matching the filter expression
// and returns how many were updated. The filter sees computed columns.
func (s *ModuleService) UpdateWhere(ctx context.Context, tenant, moduleName, where string, data map[string]interface{}) (int, error) {
	matched, err := s.QueryRecords(ctx, tenant, moduleName, where)
	if err != nil {
		return 0, fmt.Errorf("failed to filter records: %w", err)
	}
	if s.settings.Debug {
		s.logger.Infof("Updating %d records in module '%s' with filter '%s'", len(matched), moduleName, where)
	}
	for _, rec := range matched {
		if _, err := s.UpdateRecord(ctx, tenant, moduleName, rec.ID, data); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

// DeleteWhere removes every record matching the filter expression.
func (s *ModuleService) DeleteWhere(ctx context.Context, tenant, moduleName, where string) (int, error) {
	matched, err := s.QueryRecords(ctx, tenant, moduleName, where)
	if err != nil {
		return 0, fmt.Errorf("failed to filter records: %w", err)
	}
	if s.settings.Debug {
		s.logger.Infof("Deleting %d records from module '%s' with filter '%s'", len(matched), moduleName, where)
	}
	for _, rec := range matched {
		if err := s.DeleteRecord(ctx, tenant, moduleName, rec.ID); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

// ImportCSV inserts one record per CSV data line. Values of number and
// currency columns are stored as numbers when they parse.
func (s *ModuleService) ImportCSV(ctx context.Context, tenant, moduleName, text string) (int, error) {
	columns, err := s.Columns(ctx, tenant, moduleName)
	if err != nil {
		return 0, err
	}
	rows, err := helpers.CSVToMaps(text)
	if err != nil {
		return 0, err
	}
	types := make(map[string]models.ColumnType, len(columns))
	for _, col := range columns {
		types[col.Name] = col.Type
	}

	for i, row := range rows {
		data := make(map[string]interface{}, len(row))
		for k, raw := range row {
			if raw == "" {
				continue
			}
			if types[k].IsNumeric() {
				if f, ok := models.Text(raw).AsNumber(); ok {
					data[k] = f
					continue
				}
			}
			data[k] = raw
		}
		if _, err := s.InsertRecord(ctx, tenant, moduleName, data); err != nil {
			return i, err
		}
	}
	s.logger.Infow("imported csv", "module", moduleName, "records", len(rows))
	return len(rows), nil
}
