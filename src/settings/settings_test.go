package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigFileOverlays verifies that only keys present in the file
// replace the current values.
func TestLoadConfigFileOverlays(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clientdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenant: globex\nlocale: he\nmemo: false\nprefetch_limit: 8\n"), 0644))

	args := Defaults()
	require.NoError(t, LoadConfigFile(args, path))

	assert.Equal(t, "globex", args.Tenant)
	assert.Equal(t, "he", args.Locale)
	assert.False(t, args.Memo)
	assert.Equal(t, 8, args.PrefetchLimit)
	assert.Equal(t, "./datafiles", args.DataDir)

	assert.Error(t, LoadConfigFile(args, filepath.Join(dir, "missing.yaml")))

	require.NoError(t, os.WriteFile(path, []byte("tenant: [\n"), 0644))
	assert.Error(t, LoadConfigFile(args, path))
}

// TestValidateCreatesDirectories verifies directory creation and the
// in-memory exception for the data directory.
func TestValidateCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	args := Defaults()
	args.DataDir = filepath.Join(dir, "data")
	args.SchemaDir = filepath.Join(dir, "schemas")

	require.NoError(t, Validate(args))
	assert.DirExists(t, args.DataDir)
	assert.DirExists(t, args.SchemaDir)

	args = Defaults()
	args.InMemory = true
	args.DataDir = ""
	args.SchemaDir = filepath.Join(dir, "other")
	require.NoError(t, Validate(args))
	assert.DirExists(t, args.SchemaDir)
}

// TestValidateRejects verifies the argument checks.
func TestValidateRejects(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	base := func() *Arguments {
		args := Defaults()
		args.DataDir = filepath.Join(dir, "data")
		args.SchemaDir = filepath.Join(dir, "schemas")
		return args
	}

	tests := map[string]func(*Arguments){
		"no tenant":       func(a *Arguments) { a.Tenant = "" },
		"bad locale":      func(a *Arguments) { a.Locale = "fr" },
		"zero prefetch":   func(a *Arguments) { a.PrefetchLimit = 0 },
		"no schema dir":   func(a *Arguments) { a.SchemaDir = "" },
		"schema not dir":  func(a *Arguments) { a.SchemaDir = file },
		"no data on disk": func(a *Arguments) { a.DataDir = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			args := base()
			mutate(args)
			assert.Error(t, Validate(args))
		})
	}
}

// TestGetSettingsIsSingleton verifies that callers share one Arguments.
func TestGetSettingsIsSingleton(t *testing.T) {
	assert.Same(t, GetSettings(), GetSettings())
	assert.Equal(t, "default", GetSettings().Tenant)
}
