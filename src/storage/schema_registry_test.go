package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clientdesk/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceSchema() []models.ColumnDefinition {
	return []models.ColumnDefinition{
		{Name: "amount", Type: models.ColumnCurrency, Label: "Amount", Default: 0},
		{Name: "gross", Type: models.ColumnFormula, Formula: &models.FormulaMetadata{
			Expression:       "amount * 1.17",
			ColumnReferences: []string{"amount"},
		}},
		{Name: "client", Type: models.ColumnLookup, Relationship: &models.RelationshipMetadata{
			TargetModuleName: "clients", TargetColumnKey: "id", SourceColumnKey: "client_id", DisplayColumnKey: "name",
		}},
		{Name: "status", Type: models.ColumnText, ConditionalFormatting: []models.ConditionalFormat{
			{Operator: models.OpEquals, Value: "late", BackgroundColor: "#f00"},
		}},
	}
}

// TestSchemaFileRegistryRoundTrip verifies that defined columns are read
// back from the YAML file.
func TestSchemaFileRegistryRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	registry, err := NewSchemaFileRegistry(dir, nil)
	require.NoError(t, err)
	schema, err := registry.Schema("acme")
	require.NoError(t, err)

	require.NoError(t, schema.DefineColumns(ctx, "invoices", invoiceSchema()))
	assert.FileExists(t, filepath.Join(dir, "acme", "invoices.yaml"))

	columns, err := schema.GetColumns(ctx, "invoices")
	require.NoError(t, err)
	require.Len(t, columns, 4)
	assert.Equal(t, "Amount", columns[0].Label)
	assert.Equal(t, "amount * 1.17", columns[1].Formula.Expression)
	assert.Equal(t, []string{"amount"}, columns[1].Formula.ColumnReferences)
	assert.Equal(t, "clients", columns[2].Relationship.TargetModuleName)
	assert.Equal(t, models.OpEquals, columns[3].ConditionalFormatting[0].Operator)
	assert.Equal(t, "late", columns[3].ConditionalFormatting[0].Value)

	// A shorter redefinition replaces the file contents entirely.
	require.NoError(t, schema.DefineColumns(ctx, "invoices", invoiceSchema()[:1]))
	columns, err = schema.GetColumns(ctx, "invoices")
	require.NoError(t, err)
	assert.Len(t, columns, 1)
}

// TestSchemaFileRegistryMissingModule verifies that a module without a file
// has no columns.
func TestSchemaFileRegistryMissingModule(t *testing.T) {
	registry, err := NewSchemaFileRegistry(t.TempDir(), nil)
	require.NoError(t, err)
	schema, err := registry.Schema("acme")
	require.NoError(t, err)

	columns, err := schema.GetColumns(context.Background(), "invoices")
	require.NoError(t, err)
	assert.Empty(t, columns)

	names, err := schema.ListModules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

// TestSchemaFileRegistryListModules verifies listing and tenant separation.
func TestSchemaFileRegistryListModules(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	registry, err := NewSchemaFileRegistry(dir, nil)
	require.NoError(t, err)

	acme, err := registry.Schema("acme")
	require.NoError(t, err)
	globex, err := registry.Schema("globex")
	require.NoError(t, err)

	require.NoError(t, acme.DefineColumns(ctx, "payments", invoiceSchema()[:1]))
	require.NoError(t, acme.DefineColumns(ctx, "invoices", invoiceSchema()))
	require.NoError(t, globex.DefineColumns(ctx, "leads", invoiceSchema()[:1]))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme", "notes.txt"), []byte("x"), 0644))

	names, err := acme.ListModules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"invoices", "payments"}, names)

	names, err = globex.ListModules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"leads"}, names)
}

// TestSchemaFileRegistryRejectsInvalid verifies name checks, validation and
// malformed files.
func TestSchemaFileRegistryRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	registry, err := NewSchemaFileRegistry(dir, nil)
	require.NoError(t, err)

	_, err = registry.Schema("..")
	assert.ErrorIs(t, err, ErrInvalidTenant)

	schema, err := registry.Schema("acme")
	require.NoError(t, err)
	assert.ErrorIs(t, schema.DefineColumns(ctx, "in/voices", invoiceSchema()), ErrInvalidModule)
	assert.Error(t, schema.DefineColumns(ctx, "invoices", []models.ColumnDefinition{{Name: "x", Type: "blob"}}))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "acme"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme", "broken.yaml"), []byte("columns: [\n"), 0644))
	_, err = schema.GetColumns(ctx, "broken")
	assert.Error(t, err)
}
