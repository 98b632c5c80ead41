package engine

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"clientdesk/src/models"
)

var errBackendDown = errors.New("backend down")

// fakeFetcher serves fixed modules, counts fetches and fails modules listed
// in failing.
type fakeFetcher struct {
	mu      sync.Mutex
	modules map[string][]models.Record
	failing map[string]bool
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		modules: make(map[string][]models.Record),
		failing: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeFetcher) add(module string, rows ...map[string]interface{}) *fakeFetcher {
	for _, data := range rows {
		id := module + "-" + strconv.Itoa(len(f.modules[module])+1)
		f.modules[module] = append(f.modules[module], models.Record{ID: id, ModuleName: module, Data: data})
	}
	return f
}

func (f *fakeFetcher) fail(module string) *fakeFetcher {
	f.failing[module] = true
	return f
}

func (f *fakeFetcher) FetchAll(ctx context.Context, moduleName string) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[moduleName]++
	if f.failing[moduleName] {
		return nil, errBackendDown
	}
	out := make([]models.Record, len(f.modules[moduleName]))
	for i, rec := range f.modules[moduleName] {
		out[i] = rec.Clone()
	}
	return out, nil
}

func (f *fakeFetcher) callCount(module string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[module]
}

// fakeSchema serves fixed column definitions.
type fakeSchema struct {
	columns map[string][]models.ColumnDefinition
	err     error
}

func (s *fakeSchema) GetColumns(ctx context.Context, moduleName string) ([]models.ColumnDefinition, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.columns[moduleName], nil
}

func records(module string, rows ...map[string]interface{}) []models.Record {
	out := make([]models.Record, 0, len(rows))
	for i, data := range rows {
		out = append(out, models.Record{ID: module + "-" + strconv.Itoa(i+1), ModuleName: module, Data: data})
	}
	return out
}
