// Package merge builds the master project table: the GEM tracker
// inventory as the authoritative row set, with governance and financing
// data attached by country-level left joins.
package merge

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ghost-audit/internal/dataset"
)

// Raw input filenames expected under the raw data directory.
const (
	ADBFile = "adb_projects_raw.csv"
	GCFFile = "gcf_dashboard_raw.csv"
	TIFile  = "ti_cpi_2024.csv"
	GEMFile = "gem_trackers_raw.csv"
)

// RequiredFiles lists every raw input the merge stage needs, in load order.
var RequiredFiles = []string{ADBFile, GCFFile, TIFile, GEMFile}

// MasterColumns is the fixed column order of the master table.
// project_id and rule_of_law_score stay missing until a linker file and
// external WJP data become available; is_ghost and audit_status are
// populated by the audit stage.
var MasterColumns = []string{
	"project_id", "project_name", "country", "latitude", "longitude",
	"total_loan_usd", "start_year", "funded_capacity_mw",
	"project_type", "cpi_score", "rule_of_law_score",
	"is_ghost", "audit_status", "gem_status",
}

// Preflight verifies every raw input exists, returning one error that
// lists all missing paths with remediation.
func Preflight(rawDir string) error {
	var missing []string
	for _, name := range RequiredFiles {
		full := filepath.Join(rawDir, name)
		if _, err := os.Stat(full); err != nil {
			missing = append(missing, full)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return eris.Errorf(
		"merge: raw data files missing or misnamed:\n - %s\ncopy these files into %s and rerun",
		strings.Join(missing, "\n - "), rawDir)
}

// Run loads the four raw sources, normalizes their schemas, joins the
// country-level proxies onto the inventory, and writes the master table
// to masterPath. The returned table has exactly one row per inventory row.
func Run(rawDir, masterPath string) (*dataset.Table, error) {
	log := zap.L().With(zap.String("stage", "merge"))

	// The ADB export is known to carry malformed rows; load it leniently
	// rather than aborting the whole run.
	adb, err := dataset.Load(filepath.Join(rawDir, ADBFile), dataset.Options{Lenient: true})
	if err != nil {
		return nil, err
	}
	// GCF carries no join key usable beyond country; loaded so its schema
	// contract is checked at the same time as everything else.
	gcf, err := dataset.Load(filepath.Join(rawDir, GCFFile), dataset.Options{})
	if err != nil {
		return nil, err
	}
	if err := gcf.RequireColumns(GCFFile, "country"); err != nil {
		return nil, err
	}
	ti, err := dataset.Load(filepath.Join(rawDir, TIFile), dataset.Options{})
	if err != nil {
		return nil, err
	}
	gem, err := dataset.Load(filepath.Join(rawDir, GEMFile), dataset.Options{})
	if err != nil {
		return nil, err
	}

	// Inventory base list: one row per physical project.
	gem.Rename(map[string]string{
		"country/area":  "country",
		"capacity_(mw)": "funded_capacity_mw",
		"technology":    "project_type",
		"status":        "gem_status",
	})
	master, err := gem.Select(GEMFile,
		"project_name", "country", "funded_capacity_mw", "project_type",
		"start_year", "latitude", "longitude", "gem_status")
	if err != nil {
		return nil, err
	}
	baseRows := master.Len()

	// Governance score by country.
	ti.Rename(map[string]string{"cpi_score_2024": "cpi_score"})
	cpi, err := ti.Select(TIFile, "country", "cpi_score")
	if err != nil {
		return nil, err
	}
	master, err = master.LeftJoinOn(cpi, "country", GEMFile, TIFile)
	if err != nil {
		return nil, err
	}

	// Financing as a country-level proxy: no project key exists across
	// ADB and the inventory, so a project-level join is off the table.
	adb.Rename(map[string]string{"loan_amount_usd_m": "total_loan_usd"})
	loans, err := adb.GroupMeanBy("country", "total_loan_usd", ADBFile)
	if err != nil {
		return nil, err
	}
	master, err = master.LeftJoinOn(loans, "country", GEMFile, ADBFile)
	if err != nil {
		return nil, err
	}

	// Pending inputs from later stages or unavailable linker data.
	master.AddColumn("project_id", dataset.NA)
	master.AddColumn("rule_of_law_score", dataset.NA)
	master.AddColumn("is_ghost", dataset.NA)
	master.AddColumn("audit_status", dataset.NA)

	master, err = master.Select("master", MasterColumns...)
	if err != nil {
		return nil, err
	}

	if master.Len() != baseRows {
		return nil, eris.Errorf("merge: master has %d rows, inventory has %d; left join broke the base list",
			master.Len(), baseRows)
	}

	if err := master.WriteCSV(masterPath); err != nil {
		return nil, err
	}
	log.Info("master dataset created",
		zap.Int("projects", master.Len()),
		zap.String("path", masterPath),
	)
	return master, nil
}
