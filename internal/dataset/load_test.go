package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "data.parquet", "whatever")
	_, err := Load(path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
	assert.Contains(t, err.Error(), path)
}

func TestLoad_CSVNormalizesHeader(t *testing.T) {
	path := writeFile(t, "raw.csv", "Project Name,Country/Area,Capacity (MW)\nSolar One,Kenya,50\n")
	tb, err := Load(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"project_name", "country/area", "capacity_(mw)"}, tb.Columns)
	require.Equal(t, 1, tb.Len())
	assert.Equal(t, "Solar One", tb.Rows[0].String("project_name"))
}

func TestLoad_StrictRejectsRaggedRows(t *testing.T) {
	path := writeFile(t, "raw.csv", "a,b\n1,2\n3\n")
	_, err := Load(path, Options{})
	require.Error(t, err)
}

func TestLoad_LenientDropsRaggedRows(t *testing.T) {
	path := writeFile(t, "raw.csv", "a,b\n1,2\n3\n4,5,6\n7,8\n")
	tb, err := Load(path, Options{Lenient: true})
	require.NoError(t, err)

	require.Equal(t, 2, tb.Len())
	assert.Equal(t, "1", tb.Rows[0]["a"])
	assert.Equal(t, "7", tb.Rows[1]["a"])
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	tb := New("name", "score")
	tb.Append(Row{"name": "a", "score": "0.5"})
	tb.Append(Row{"name": "b", "score": NA})

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, tb.WriteCSV(path))

	back, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, tb.Columns, back.Columns)
	require.Equal(t, 2, back.Len())
	assert.Equal(t, "0.5", back.Rows[0]["score"])
	assert.True(t, back.Rows[1].IsNA("score"))
}

func TestWriteJSONRecords(t *testing.T) {
	tb := New("name", "score")
	tb.Append(Row{"name": "a", "score": "0.25"})
	tb.Append(Row{"name": "b", "score": NA})

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, tb.WriteJSONRecords(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0]["name"])
	assert.Equal(t, 0.25, records[0]["score"])
	assert.Nil(t, records[1]["score"])
}
