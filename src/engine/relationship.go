package engine

import (
	"context"

	"clientdesk/src/helpers"
	"clientdesk/src/models"

	"go.uber.org/zap"
)

// RelationshipResolver resolves lookup columns against their target module.
type RelationshipResolver struct {
	source RecordFetcher
	logger *zap.SugaredLogger
}

func NewRelationshipResolver(source RecordFetcher, logger *zap.SugaredLogger) *RelationshipResolver {
	return &RelationshipResolver{source: source, logger: helpers.OrNop(logger)}
}

// ResolveLookup returns the display column of the first target record whose
// key column matches sourceValue. Keys are compared as text so a stored "7"
// matches a numeric 7. A falsy sourceValue (Value.Falsy, so the text "0" is
// a valid key), an empty target module or no match all yield null.
func (r *RelationshipResolver) ResolveLookup(ctx context.Context, rel models.RelationshipMetadata, sourceValue interface{}) (models.Value, error) {
	key := models.FromAny(sourceValue)
	if key.Falsy() {
		return models.Null(), nil
	}
	records, err := fetchModule(ctx, r.source, rel.TargetModuleName)
	if err != nil {
		r.logger.Errorw("lookup fetch failed", "module", rel.TargetModuleName, "error", err)
		return models.Null(), err
	}
	rec, ok := findByKey(records, rel.TargetColumnKey, key)
	if !ok {
		return models.Null(), nil
	}
	return rec.Get(rel.DisplayColumnKey), nil
}

// ResolveLookupOptions lists the target module as selectable options. Options
// are unique by value; a later record with the same key replaces the label
// but keeps the first position. The label falls back to the value text.
func (r *RelationshipResolver) ResolveLookupOptions(ctx context.Context, rel models.RelationshipMetadata) ([]models.LookupOption, error) {
	records, err := fetchModule(ctx, r.source, rel.TargetModuleName)
	if err != nil {
		r.logger.Errorw("lookup options fetch failed", "module", rel.TargetModuleName, "error", err)
		return nil, err
	}

	options := make([]models.LookupOption, 0, len(records))
	index := make(map[string]int, len(records))
	for _, rec := range records {
		key := rec.Get(rel.TargetColumnKey)
		if key.IsEmpty() {
			continue
		}
		label := rec.Get(rel.DisplayColumnKey).AsText()
		if label == "" {
			label = key.AsText()
		}
		opt := models.LookupOption{Value: key.Interface(), Label: label}
		if i, seen := index[key.AsText()]; seen {
			options[i] = opt
			continue
		}
		index[key.AsText()] = len(options)
		options = append(options, opt)
	}
	return options, nil
}

// findByKey returns the first record whose keyColumn equals key as text.
func findByKey(records []models.Record, keyColumn string, key models.Value) (models.Record, bool) {
	want := key.AsText()
	for _, rec := range records {
		v := rec.Get(keyColumn)
		if v.IsNull() {
			continue
		}
		if v.AsText() == want {
			return rec, true
		}
	}
	return models.Record{}, false
}
