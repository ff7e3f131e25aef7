// Package audit attaches the remote-sensing change metric to each
// project and derives the ground-truth ghost label from it.
package audit

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ghost-audit/internal/dataset"
	"github.com/sells-group/ghost-audit/internal/sensing"
)

// GhostThreshold is the low-activity cutoff: a change metric below it
// means no visible site preparation.
const GhostThreshold = 0.05

// Audit status values derived from the ghost label.
const (
	StatusFlagged = "Ghost Flagged"
	StatusVisible = "Activity Visible/Inactive"
)

// activeStatuses are the lifecycle statuses under which construction
// activity should be visible. "retired" is deliberately included: a
// retired-but-claimed-operational site with no historical land-use
// change is exactly the suspicious case.
var activeStatuses = map[string]bool{
	"operating":        true,
	"construction":     true,
	"pre-construction": true,
	"retired":          true,
}

// ExpectedActive reports whether a lifecycle status implies the site
// should show land-use change.
func ExpectedActive(status string) bool {
	return activeStatuses[status]
}

// Label is the pure ground-truth rule: ghost iff the metric shows no
// activity AND activity was expected. Cancelled/announced projects are
// never ghosts: no construction was ever expected. A failed query
// carries the sentinel, which never satisfies the threshold.
func Label(metric float64, status string) int {
	if metric < GhostThreshold && ExpectedActive(status) {
		return 1
	}
	return 0
}

// Run queries the provider for every project coordinate and labels the
// table. This is the real-data path: one independent, retryable request
// per project, with per-project failure degrading to the sentinel.
func Run(ctx context.Context, t *dataset.Table, p sensing.Provider, startYear, endYear int, auditedPath string) (*dataset.Table, error) {
	if err := t.RequireColumns("master table", "latitude", "longitude", "gem_status"); err != nil {
		return nil, err
	}

	failures := 0
	for _, row := range t.Rows {
		lat, latOK := row.Float("latitude")
		lon, lonOK := row.Float("longitude")

		var res sensing.Result
		if !latOK || !lonOK {
			res = sensing.Failure("missing coordinates")
		} else {
			res = p.Change(ctx, lat, lon, startYear, endYear)
		}
		if !res.Ok() {
			failures++
		}
		applyLabel(row, res)
	}

	return finish(t, auditedPath, failures)
}

// RunSynthetic labels the table from seeded draws instead of the
// external query, so the pipeline is exercisable without it. Projects
// whose status never implied construction draw from the idle sub-range.
func RunSynthetic(t *dataset.Table, seed int64, auditedPath string) (*dataset.Table, error) {
	if err := t.RequireColumns("master table", "gem_status"); err != nil {
		return nil, err
	}

	gen := sensing.NewSynthetic(seed)
	for _, row := range t.Rows {
		hi := sensing.SimHigh
		switch row.String("gem_status") {
		case "cancelled", "announced":
			hi = sensing.SimIdleHigh
		}
		applyLabel(row, sensing.Value(gen.Draw(sensing.SimLow, hi)))
	}

	return finish(t, auditedPath, 0)
}

func applyLabel(row dataset.Row, res sensing.Result) {
	metric := res.Metric()
	label := Label(metric, row.String("gem_status"))

	row["ndvi_change_metric"] = dataset.FormatFloat(metric)
	if label == 1 {
		row["is_ghost"] = "1"
		row["audit_status"] = StatusFlagged
	} else {
		row["is_ghost"] = "0"
		row["audit_status"] = StatusVisible
	}
}

func finish(t *dataset.Table, auditedPath string, failures int) (*dataset.Table, error) {
	if !t.HasColumn("ndvi_change_metric") {
		t.Columns = append(t.Columns, "ndvi_change_metric")
	}

	ghosts := 0
	for _, row := range t.Rows {
		if row.String("is_ghost") == "1" {
			ghosts++
		}
	}

	if auditedPath != "" {
		if err := t.WriteCSV(auditedPath); err != nil {
			return nil, eris.Wrap(err, "audit: write audited snapshot")
		}
	}

	zap.L().Info("audit completed",
		zap.Int("projects", t.Len()),
		zap.Int("ghosts", ghosts),
		zap.Int("sensing_failures", failures),
	)
	return t, nil
}
