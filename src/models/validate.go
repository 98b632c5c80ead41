package models

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateColumns checks every definition and that names are unique within
// the module, since expressions resolve columns by bare name.
func ValidateColumns(columns []ColumnDefinition) error {
	seen := make(map[string]bool, len(columns))
	for i := range columns {
		if err := getValidator().Struct(columns[i]); err != nil {
			return fmt.Errorf("column %d (%q): %w", i, columns[i].Name, err)
		}
		if seen[columns[i].Name] {
			return fmt.Errorf("column %q is defined more than once", columns[i].Name)
		}
		seen[columns[i].Name] = true
	}
	return nil
}

// ValidatePivotConfig checks a pivot configuration before it is run.
func ValidatePivotConfig(config PivotConfig) error {
	return getValidator().Struct(config)
}

// ValidateFilterGroup checks operators and data types of a filter group.
func ValidateFilterGroup(group FilterGroup) error {
	return getValidator().Struct(group)
}
