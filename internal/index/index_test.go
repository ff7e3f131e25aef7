package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ghost-audit/internal/dataset"
)

func scoredFixture() *dataset.Table {
	tb := dataset.New("project_id", "project_name", "country", "latitude", "longitude",
		"ghost_risk_score", "is_ghost", "funded_capacity_mw", "project_type",
		"total_loan_usd", "audit_status", "extra_column")
	add := func(name, lat, lon, score string) {
		tb.Append(dataset.Row{
			"project_name": name, "country": "X", "latitude": lat, "longitude": lon,
			"ghost_risk_score": score, "is_ghost": "0", "funded_capacity_mw": "10",
			"project_type": "solar", "total_loan_usd": "100", "audit_status": "Activity Visible/Inactive",
			"extra_column": "dropped",
		})
	}
	add("low", "1.0", "2.0", "0.2")
	add("high", "3.0", "4.0", "0.9")
	add("mid-first", "", "6.0", "0.5")
	add("mid-second", "7.0", "8.0", "0.5")
	return tb
}

func paths(t *testing.T) (string, string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "index.csv"), filepath.Join(dir, "index.json"), filepath.Join(dir, "index.geojson")
}

func TestBuild_SortedDescendingWithStableTies(t *testing.T) {
	csvP, jsonP, geoP := paths(t)
	final, err := Build(scoredFixture(), csvP, jsonP, geoP)
	require.NoError(t, err)

	require.Equal(t, 4, final.Len())
	assert.Equal(t, "high", final.Rows[0]["project_name"])
	assert.Equal(t, "mid-first", final.Rows[1]["project_name"], "ties keep input order")
	assert.Equal(t, "mid-second", final.Rows[2]["project_name"])
	assert.Equal(t, "low", final.Rows[3]["project_name"])

	for i := 0; i+1 < final.Len(); i++ {
		a, _ := final.Rows[i].Float("ghost_risk_score")
		b, _ := final.Rows[i+1].Float("ghost_risk_score")
		assert.GreaterOrEqual(t, a, b)
	}
}

func TestBuild_FixedProjection(t *testing.T) {
	csvP, jsonP, geoP := paths(t)
	final, err := Build(scoredFixture(), csvP, jsonP, geoP)
	require.NoError(t, err)

	assert.Equal(t, Columns, final.Columns)
	assert.False(t, final.HasColumn("extra_column"))
}

func TestBuild_MapViewRestrictedToCoordinateRows(t *testing.T) {
	csvP, jsonP, geoP := paths(t)
	_, err := Build(scoredFixture(), csvP, jsonP, geoP)
	require.NoError(t, err)

	data, err := os.ReadFile(jsonP)
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 3, "row without latitude excluded")

	// Same order as the sorted table.
	assert.Equal(t, "high", records[0]["project_name"])
	assert.Equal(t, "mid-second", records[1]["project_name"])
	assert.Equal(t, "low", records[2]["project_name"])
	for _, rec := range records {
		assert.Len(t, rec, 5)
		assert.Contains(t, rec, "ghost_risk_score")
	}
}

func TestBuild_GeoJSONConsistentWithMapView(t *testing.T) {
	csvP, jsonP, geoP := paths(t)
	_, err := Build(scoredFixture(), csvP, jsonP, geoP)
	require.NoError(t, err)

	data, err := os.ReadFile(geoP)
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)

	first := fc.Features[0]
	assert.Equal(t, "Point", first.Geometry.Type)
	assert.Equal(t, []float64{4.0, 3.0}, first.Geometry.Coordinates, "lon, lat order")
	assert.Equal(t, "high", first.Properties["project_name"])
	assert.Equal(t, 0.9, first.Properties["ghost_risk_score"])
}

func TestBuild_WritesCSV(t *testing.T) {
	csvP, jsonP, geoP := paths(t)
	_, err := Build(scoredFixture(), csvP, jsonP, geoP)
	require.NoError(t, err)

	back, err := dataset.Load(csvP, dataset.Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, back.Len())
	assert.Equal(t, Columns, back.Columns)
}

func TestBuild_MissingScoreColumnFails(t *testing.T) {
	tb := dataset.New("project_name")
	tb.Append(dataset.Row{"project_name": "x"})

	csvP, jsonP, geoP := paths(t)
	_, err := Build(tb, csvP, jsonP, geoP)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scored table")
}
