package engine

import (
	"context"
	"errors"
	"fmt"

	"clientdesk/src/models"
)

// RecordFetcher is the read side of the record store, all the evaluation
// engine needs.
type RecordFetcher interface {
	FetchAll(ctx context.Context, moduleName string) ([]models.Record, error)
}

// RecordStore adds the write operations used by the CRUD layer.
type RecordStore interface {
	RecordFetcher
	Insert(ctx context.Context, moduleName string, data map[string]interface{}) (models.Record, error)
	Update(ctx context.Context, moduleName, id string, data map[string]interface{}) (models.Record, error)
	Delete(ctx context.Context, moduleName, id string) error
}

// SchemaRegistry returns the ordered column definitions of a module. A
// module without a schema yields no columns and no error.
type SchemaRegistry interface {
	GetColumns(ctx context.Context, moduleName string) ([]models.ColumnDefinition, error)
}

// Define errors
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError marks a failure talking to the record store or schema
// registry. It is the only error class the engine surfaces to callers;
// computed values built on top of it are unreliable.
type StoreError struct {
	Op     string
	Module string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Module, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err (or anything it wraps) is a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// NewStoreError wraps err unless it already carries a StoreError.
func NewStoreError(op, module string, err error) error {
	if err == nil {
		return nil
	}
	if IsStoreError(err) {
		return err
	}
	return &StoreError{Op: op, Module: module, Err: err}
}

func fetchModule(ctx context.Context, source RecordFetcher, moduleName string) ([]models.Record, error) {
	records, err := source.FetchAll(ctx, moduleName)
	if err != nil {
		return nil, NewStoreError("fetch", moduleName, err)
	}
	return records, nil
}
