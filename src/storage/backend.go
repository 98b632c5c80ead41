package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clientdesk/src/engine"
	"clientdesk/src/models"
)

// Define errors
var (
	ErrInvalidTenant = errors.New("invalid tenant")
	ErrInvalidModule = errors.New("invalid module name")
)

// SchemaStore is a tenant's schema registry with write access for schema
// management.
type SchemaStore interface {
	engine.SchemaRegistry
	DefineColumns(ctx context.Context, moduleName string, columns []models.ColumnDefinition) error
	ListModules(ctx context.Context) ([]string, error)
}

// RecordBackend hands out the record store of a tenant.
type RecordBackend interface {
	Records(tenant string) (engine.RecordStore, error)
}

// SchemaBackend hands out the schema store of a tenant.
type SchemaBackend interface {
	Schema(tenant string) (SchemaStore, error)
}

// checkName rejects names that are empty or could escape a key prefix or
// directory.
func checkName(kind error, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", kind)
	}
	if strings.ContainsAny(name, "/\\\x00") || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", kind, name)
	}
	return nil
}
