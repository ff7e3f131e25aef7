// Package index produces the final ranked artifact: the project table
// sorted by risk score with its CSV, map-JSON, and GeoJSON views.
package index

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/ghost-audit/internal/dataset"
)

// Columns is the fixed projection of the final index.
var Columns = []string{
	"project_id", "project_name", "country", "latitude", "longitude",
	"ghost_risk_score", "is_ghost", "funded_capacity_mw",
	"project_type", "total_loan_usd", "audit_status",
}

// mapColumns is the subset serialized for the map views.
var mapColumns = []string{"project_name", "country", "latitude", "longitude", "ghost_risk_score"}

// Build sorts the scored table by risk descending (stable, so ties keep
// their original order), projects it to the fixed column set, and writes
// the CSV plus the two map views. All three artifacts derive from the
// one sorted table.
func Build(t *dataset.Table, csvPath, mapJSONPath, geoJSONPath string) (*dataset.Table, error) {
	final, err := t.Select("scored table", Columns...)
	if err != nil {
		return nil, err
	}
	final.SortByFloatDesc("ghost_risk_score")

	if err := final.WriteCSV(csvPath); err != nil {
		return nil, err
	}

	// Map views carry only rows with both coordinates present.
	mappable := final.Filter(func(r dataset.Row) bool {
		_, latOK := r.Float("latitude")
		_, lonOK := r.Float("longitude")
		return latOK && lonOK
	})
	mapView, err := mappable.Select("final index", mapColumns...)
	if err != nil {
		return nil, err
	}
	if err := mapView.WriteJSONRecords(mapJSONPath); err != nil {
		return nil, err
	}
	if geoJSONPath != "" {
		if err := writeGeoJSON(mapView, geoJSONPath); err != nil {
			return nil, err
		}
	}

	zap.L().Info("final index created",
		zap.Int("projects", final.Len()),
		zap.Int("mappable", mapView.Len()),
		zap.String("csv", csvPath),
		zap.String("map_json", mapJSONPath),
	)
	return final, nil
}

// writeGeoJSON renders the map view as a FeatureCollection of points
// with the non-coordinate columns as feature properties.
func writeGeoJSON(mapView *dataset.Table, path string) error {
	fc := geojson.FeatureCollection{}
	for _, r := range mapView.Rows {
		lat, _ := r.Float("latitude")
		lon, _ := r.Float("longitude")
		score, _ := r.Float("ghost_risk_score")

		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{lon, lat}),
			Properties: map[string]any{
				"project_name":     r.String("project_name"),
				"country":          r.String("country"),
				"ghost_risk_score": score,
			},
		})
	}

	data, err := json.MarshalIndent(&fc, "", "    ")
	if err != nil {
		return eris.Wrapf(err, "index: marshal geojson for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "index: write %s", path)
	}
	return nil
}
