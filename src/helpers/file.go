package helpers

import (
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// FileExists checks if a file exists and is not a directory
func FileExists(filename string, logger *zap.SugaredLogger) bool {
	info, err := os.Stat(filename)
	if err != nil {
		if !os.IsNotExist(err) && logger != nil {
			logger.Infof("Error checking file %s for existence: %s", filename, err)
		}
		return false
	}
	return !info.IsDir()
}

// EnsureDir creates dir (and parents) if it is missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func EncodeBSON(data interface{}) ([]byte, error) {
	bsonData, err := bson.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error encoding BSON: %w", err)
	}
	return bsonData, nil
}

// DecodeBSON decodes into out. When out is a *map[string]interface{} the
// nested documents and arrays are normalised to plain maps and slices.
func DecodeBSON(bsonData []byte, out interface{}) error {
	if err := bson.Unmarshal(bsonData, out); err != nil {
		return fmt.Errorf("error decoding BSON: %w", err)
	}
	if m, ok := out.(*map[string]interface{}); ok && *m != nil {
		for k, v := range *m {
			(*m)[k] = NormalizeBSON(v)
		}
	}
	return nil
}

// NormalizeBSON converts primitive.D / primitive.M / primitive.A values into
// map[string]interface{} and []interface{} recursively.
func NormalizeBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = NormalizeBSON(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = NormalizeBSON(e)
		}
		return m
	case map[string]interface{}:
		for k, e := range t {
			t[k] = NormalizeBSON(e)
		}
		return t
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = NormalizeBSON(e)
		}
		return out
	case []interface{}:
		for i, e := range t {
			t[i] = NormalizeBSON(e)
		}
		return t
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}
