package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"clientdesk/src/helpers"
	"clientdesk/src/models"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

const schemaFileExt = ".yaml"

// schemaFile is the on-disk layout of <dir>/<tenant>/<module>.yaml.
type schemaFile struct {
	Module  string                    `yaml:"module"`
	Columns []models.ColumnDefinition `yaml:"columns"`
}

// SchemaFileRegistry keeps one YAML file per tenant and module. Reads take a
// shared flock and writes an exclusive one, so several processes can share
// a schema directory.
type SchemaFileRegistry struct {
	dir    string
	logger *zap.SugaredLogger
}

func NewSchemaFileRegistry(dir string, logger *zap.SugaredLogger) (*SchemaFileRegistry, error) {
	if err := helpers.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &SchemaFileRegistry{dir: dir, logger: helpers.OrNop(logger)}, nil
}

// Schema returns the tenant's view of the registry.
func (r *SchemaFileRegistry) Schema(tenant string) (SchemaStore, error) {
	if err := checkName(ErrInvalidTenant, tenant); err != nil {
		return nil, err
	}
	return &schemaTenant{registry: r, dir: filepath.Join(r.dir, tenant)}, nil
}

type schemaTenant struct {
	registry *SchemaFileRegistry
	dir      string
}

func (t *schemaTenant) path(moduleName string) string {
	return filepath.Join(t.dir, moduleName+schemaFileExt)
}

// GetColumns reads a module's columns. A module without a schema file has no
// columns.
func (t *schemaTenant) GetColumns(ctx context.Context, moduleName string) ([]models.ColumnDefinition, error) {
	if err := checkName(ErrInvalidModule, moduleName); err != nil {
		return nil, err
	}
	path := t.path(moduleName)
	if !helpers.FileExists(path, t.registry.logger) {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening schema file %s: %w", path, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return nil, fmt.Errorf("failed to lock schema file %s: %w", path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}
	if stat.Size() == 0 {
		return nil, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map schema file %s: %w", path, err)
	}
	defer unix.Munmap(data)

	var sf schemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("error decoding schema file %s: %w", path, err)
	}
	return sf.Columns, nil
}

// DefineColumns validates and replaces a module's columns.
func (t *schemaTenant) DefineColumns(ctx context.Context, moduleName string, columns []models.ColumnDefinition) error {
	if err := checkName(ErrInvalidModule, moduleName); err != nil {
		return err
	}
	if err := models.ValidateColumns(columns); err != nil {
		return err
	}
	if err := helpers.EnsureDir(t.dir); err != nil {
		return err
	}

	encoded, err := yaml.Marshal(schemaFile{Module: moduleName, Columns: columns})
	if err != nil {
		return fmt.Errorf("error encoding schema for %s: %w", moduleName, err)
	}

	path := t.path(moduleName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("error opening schema file %s: %w", path, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock schema file %s: %w", path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate schema file %s: %w", path, err)
	}
	if _, err := f.WriteAt(encoded, 0); err != nil {
		return fmt.Errorf("failed to write schema file %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync schema file %s: %w", path, err)
	}
	t.registry.logger.Infow("schema saved", "module", moduleName, "columns", len(columns))
	return nil
}

// ListModules lists the modules that have a schema file.
func (t *schemaTenant) ListModules(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading schema directory %s: %w", t.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), schemaFileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), schemaFileExt))
	}
	sort.Strings(names)
	return names, nil
}
