package settings

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

type Arguments struct {
	// The directory holding the record database
	DataDir string `yaml:"datadir"`

	// The directory holding <tenant>/<module>.yaml schema files
	SchemaDir string `yaml:"schemadir"`

	// Tenant whose modules are read and written
	Tenant string `yaml:"tenant"`

	ConfigFile string `yaml:"-"`

	// Locale for filter descriptions and totals labels: en, he
	Locale string `yaml:"locale"`

	// Keep fetched modules for the length of one evaluation pass
	Memo bool `yaml:"memo"`

	// How many target modules are fetched at once when Memo is on
	PrefetchLimit int `yaml:"prefetch_limit"`

	// Keep records in memory only
	InMemory bool `yaml:"in_memory"`

	Debug bool `yaml:"debug"`

	// Strongly verbose logging
	Verbose bool `yaml:"verbose"`
}

var (
	instance *Arguments
	once     sync.Once
)

// GetSettings returns the process wide arguments, created with defaults on
// first use.
func GetSettings() *Arguments {
	once.Do(func() {
		instance = Defaults()
	})
	return instance
}

func Defaults() *Arguments {
	return &Arguments{
		DataDir:       "./datafiles",
		SchemaDir:     "./schemas",
		Tenant:        "default",
		Locale:        "en",
		Memo:          true,
		PrefetchLimit: 4,
	}
}

// LoadConfigFile overlays the values set in a YAML file onto args. Keys
// absent from the file keep their current value.
func LoadConfigFile(args *Arguments, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, args); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the arguments and creates missing directories.
func Validate(args *Arguments) error {
	for _, dir := range []struct{ name, path string }{
		{"data", args.DataDir},
		{"schema", args.SchemaDir},
	} {
		if dir.name == "data" && args.InMemory {
			continue
		}
		if dir.path == "" {
			return fmt.Errorf("%s directory is required", dir.name)
		}
		info, err := os.Stat(dir.path)
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir.path, 0755); err != nil {
				return fmt.Errorf("could not create %s directory: %w", dir.name, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("error accessing %s directory: %w", dir.name, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s directory path exists but is not a directory: %s", dir.name, dir.path)
		}
	}

	if args.Tenant == "" {
		return fmt.Errorf("tenant is required")
	}

	validLocales := map[string]bool{"en": true, "he": true}
	if !validLocales[args.Locale] {
		return fmt.Errorf("invalid locale: %s (must be 'en' or 'he')", args.Locale)
	}

	if args.PrefetchLimit < 1 {
		return fmt.Errorf("invalid prefetch limit: %d (must be at least 1)", args.PrefetchLimit)
	}
	return nil
}
