package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clientdesk/src/engine"
	"clientdesk/src/helpers"
	"clientdesk/src/models"
)

// MemoryStore is an in-process record store for one tenant. Fetches can be
// made to fail per module, and fetches are counted, for exercising the
// engine's error and caching paths.
type MemoryStore struct {
	mu       sync.RWMutex
	modules  map[string][]models.Record
	failures map[string]error
	fetches  map[string]int
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		modules:  make(map[string][]models.Record),
		failures: make(map[string]error),
		fetches:  make(map[string]int),
		now:      time.Now,
	}
}

// FetchAll returns copies of a module's records in insertion order. An
// unknown module has no records.
func (s *MemoryStore) FetchAll(ctx context.Context, moduleName string) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[moduleName]++
	if err := s.failures[moduleName]; err != nil {
		return nil, err
	}
	out := make([]models.Record, len(s.modules[moduleName]))
	for i, rec := range s.modules[moduleName] {
		out[i] = rec.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Insert(ctx context.Context, moduleName string, data map[string]interface{}) (models.Record, error) {
	if err := ctx.Err(); err != nil {
		return models.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[moduleName]; err != nil {
		return models.Record{}, err
	}
	now := s.now()
	rec := models.Record{
		ID:         helpers.GenerateUUID(),
		ModuleName: moduleName,
		Data:       data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	rec = rec.Clone()
	s.modules[moduleName] = append(s.modules[moduleName], rec)
	return rec.Clone(), nil
}

// Update merges data into the stored record.
func (s *MemoryStore) Update(ctx context.Context, moduleName, id string, data map[string]interface{}) (models.Record, error) {
	if err := ctx.Err(); err != nil {
		return models.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[moduleName]; err != nil {
		return models.Record{}, err
	}
	for i, rec := range s.modules[moduleName] {
		if rec.ID != id {
			continue
		}
		for k, v := range data {
			rec.Data[k] = v
		}
		rec.UpdatedAt = s.now()
		s.modules[moduleName][i] = rec
		return rec.Clone(), nil
	}
	return models.Record{}, fmt.Errorf("%w: %s/%s", engine.ErrRecordNotFound, moduleName, id)
}

func (s *MemoryStore) Delete(ctx context.Context, moduleName, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[moduleName]; err != nil {
		return err
	}
	recs := s.modules[moduleName]
	for i, rec := range recs {
		if rec.ID == id {
			s.modules[moduleName] = append(recs[:i:i], recs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s/%s", engine.ErrRecordNotFound, moduleName, id)
}

// Seed inserts rows directly, bypassing the failure switches.
func (s *MemoryStore) Seed(moduleName string, rows ...map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, data := range rows {
		now := s.now()
		rec := models.Record{ID: helpers.GenerateUUID(), ModuleName: moduleName, Data: data, CreatedAt: now, UpdatedAt: now}
		s.modules[moduleName] = append(s.modules[moduleName], rec.Clone())
	}
}

// FailModule makes every operation on moduleName return err until
// cleared with a nil err.
func (s *MemoryStore) FailModule(moduleName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, moduleName)
		return
	}
	s.failures[moduleName] = err
}

// FetchCount reports how many times moduleName has been fetched.
func (s *MemoryStore) FetchCount(moduleName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetches[moduleName]
}

// MemorySchema is an in-process schema registry for one tenant.
type MemorySchema struct {
	mu      sync.RWMutex
	columns map[string][]models.ColumnDefinition
	err     error
}

func NewMemorySchema() *MemorySchema {
	return &MemorySchema{columns: make(map[string][]models.ColumnDefinition)}
}

func (s *MemorySchema) GetColumns(ctx context.Context, moduleName string) ([]models.ColumnDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.ColumnDefinition(nil), s.columns[moduleName]...), nil
}

func (s *MemorySchema) DefineColumns(ctx context.Context, moduleName string, columns []models.ColumnDefinition) error {
	if err := checkName(ErrInvalidModule, moduleName); err != nil {
		return err
	}
	if err := models.ValidateColumns(columns); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns[moduleName] = append([]models.ColumnDefinition(nil), columns...)
	return nil
}

func (s *MemorySchema) ListModules(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.columns))
	for name := range s.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Fail makes GetColumns return err until cleared with nil.
func (s *MemorySchema) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// MemoryBackend keeps a MemoryStore and MemorySchema per tenant.
type MemoryBackend struct {
	mu      sync.Mutex
	stores  map[string]*MemoryStore
	schemas map[string]*MemorySchema
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		stores:  make(map[string]*MemoryStore),
		schemas: make(map[string]*MemorySchema),
	}
}

func (b *MemoryBackend) Records(tenant string) (engine.RecordStore, error) {
	s, err := b.Store(tenant)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *MemoryBackend) Schema(tenant string) (SchemaStore, error) {
	if err := checkName(ErrInvalidTenant, tenant); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.schemas[tenant]
	if !ok {
		s = NewMemorySchema()
		b.schemas[tenant] = s
	}
	return s, nil
}

// Store returns the concrete store of tenant, creating it on first use.
func (b *MemoryBackend) Store(tenant string) (*MemoryStore, error) {
	if err := checkName(ErrInvalidTenant, tenant); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.stores[tenant]
	if !ok {
		s = NewMemoryStore()
		b.stores[tenant] = s
	}
	return s, nil
}
