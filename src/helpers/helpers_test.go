package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// TestCSVRoundTrip verifies quoting of commas, quotes and newlines and that
// the reader restores the original fields.
func TestCSVRoundTrip(t *testing.T) {
	rows := [][]string{
		{"name", "note"},
		{"Acme, Ltd", `said "hi"`},
		{"plain", "two\nlines"},
	}
	out, err := WriteCSV(rows)
	require.NoError(t, err)
	assert.Equal(t, "name,note\n\"Acme, Ltd\",\"said \"\"hi\"\"\"\nplain,\"two\nlines\"\n", out)

	back, err := ReadCSV(out)
	require.NoError(t, err)
	assert.Equal(t, rows, back)
}

// TestCSVToMaps verifies header mapping, a byte order mark and short rows.
func TestCSVToMaps(t *testing.T) {
	maps, err := CSVToMaps("\ufeffcode,name\nA,Acme\nB\n")
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{
		{"code": "A", "name": "Acme"},
		{"code": "B"},
	}, maps)

	maps, err = CSVToMaps("")
	require.NoError(t, err)
	assert.Empty(t, maps)

	_, err = CSVToMaps("a\n\"unterminated\n")
	assert.Error(t, err)
}

// TestQuotes verifies quote detection and stripping.
func TestQuotes(t *testing.T) {
	assert.True(t, IsQuoted(`"paid"`))
	assert.True(t, IsQuoted(` 'paid' `))
	assert.False(t, IsQuoted(`"paid'`))
	assert.False(t, IsQuoted(`"`))
	assert.Equal(t, "paid", StripQuotes(`"paid"`))
	assert.Equal(t, "it's", StripQuotes(`'it's'`))
	assert.Equal(t, "bare", StripQuotes(" bare "))
}

// TestSortedUnique verifies ordering and deduplication.
func TestSortedUnique(t *testing.T) {
	sorted := SortedUnique([]string{"Q2", "Q1", "Q2", "", "Q10"})
	assert.Equal(t, []string{"", "Q1", "Q10", "Q2"}, sorted)
}

// TestBSONNormalization verifies that nested documents decode to plain maps
// and slices, and dates to time.Time.
func TestBSONNormalization(t *testing.T) {
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	encoded, err := EncodeBSON(bson.M{
		"customer": bson.M{"city": "Haifa", "tags": bson.A{"x", bson.M{"k": 1}}},
		"when":     when,
	})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, DecodeBSON(encoded, &out))

	customer, ok := out["customer"].(map[string]interface{})
	require.True(t, ok, "customer is %T", out["customer"])
	assert.Equal(t, "Haifa", customer["city"])
	tags, ok := customer["tags"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"k": int32(1)}, tags[1])

	got, ok := out["when"].(time.Time)
	require.True(t, ok)
	assert.True(t, when.Equal(got))

	assert.Error(t, DecodeBSON([]byte{1, 2}, &out))
}

// TestFileHelpers verifies directory creation and file detection.
func TestFileHelpers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	assert.False(t, FileExists(dir, nil))

	path := filepath.Join(dir, "f.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	assert.True(t, FileExists(path, OrNop(nil)))
	assert.False(t, FileExists(filepath.Join(dir, "missing"), nil))
}

// TestGenerateUUID verifies that ids are distinct.
func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
