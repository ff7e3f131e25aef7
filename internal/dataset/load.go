package dataset

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// Options configures loading a raw tabular source.
type Options struct {
	// Lenient drops unparseable rows (bad quoting, wrong cell count)
	// instead of aborting the load. Required for sources known to carry
	// malformed records.
	Lenient bool
	// SheetIndex selects the worksheet for spreadsheet inputs. Default 0.
	SheetIndex int
}

var spaceRun = regexp.MustCompile(`\s+`)

// NormalizeName standardizes a column header: trimmed, lower-cased, and
// internal whitespace collapsed to a single underscore. Every loaded
// table goes through this so downstream joins can rely on exact names.
func NormalizeName(name string) string {
	return spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
}

var keyFolder = cases.Fold()

// FoldKey canonicalizes a join-key value using Unicode case folding, so
// "Viet Nam" and "VIET NAM" across sources land in the same bucket.
func FoldKey(v string) string {
	return keyFolder.String(strings.TrimSpace(v))
}

// Load reads a raw tabular file into a Table, dispatching on extension.
// Supported: .csv, .xlsx, .xls. Anything else is a fatal input error
// naming the file.
func Load(path string, opts Options) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path, opts)
	case ".xlsx", ".xls":
		return loadXLSX(path, opts)
	default:
		return nil, eris.Errorf(
			"dataset: unsupported file type for %s; provide a .csv or .xlsx export and rerun", path)
	}
}

func loadCSV(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	if opts.Lenient {
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1
	}

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read header of %s", path)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = NormalizeName(h)
	}

	t := New(columns...)
	dropped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if opts.Lenient {
				dropped++
				continue
			}
			return nil, eris.Wrapf(err, "dataset: read row of %s", path)
		}
		if opts.Lenient && len(record) != len(columns) {
			dropped++
			continue
		}
		row := make(Row, len(columns))
		for i, c := range columns {
			if i < len(record) {
				row[c] = strings.TrimSpace(record[i])
			} else {
				row[c] = NA
			}
		}
		t.Append(row)
	}

	if dropped > 0 {
		zap.L().Warn("dataset: dropped malformed rows",
			zap.String("file", path),
			zap.Int("dropped", dropped),
		)
	}
	return t, nil
}

func loadXLSX(path string, opts Options) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("dataset: sheet index %d out of range in %s (file has %d sheets)",
			opts.SheetIndex, path, len(f.Sheets))
	}
	sheet := f.Sheets[opts.SheetIndex]

	var t *Table
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		if i == 0 {
			columns := make([]string, len(cells))
			for j, h := range cells {
				columns[j] = NormalizeName(h)
			}
			t = New(columns...)
			continue
		}
		r := make(Row, len(t.Columns))
		for j, c := range t.Columns {
			if j < len(cells) {
				r[c] = cells[j]
			} else {
				r[c] = NA
			}
		}
		t.Append(r)
	}
	if t == nil {
		return nil, eris.Errorf("dataset: %s has no header row", path)
	}
	return t, nil
}

// WriteCSV persists the table with its column order. Parent directories
// must already exist.
func (t *Table) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return eris.Wrapf(err, "dataset: write header of %s", path)
	}
	record := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			record[i] = r[c]
		}
		if err := w.Write(record); err != nil {
			return eris.Wrapf(err, "dataset: write row of %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "dataset: flush %s", path)
	}
	return nil
}

// WriteJSONRecords persists the table as an indented JSON array of
// objects, one per row, in column order. Numeric-looking cells are
// written as JSON numbers, missing cells as null.
func (t *Table) WriteJSONRecords(path string) error {
	records := make([]map[string]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			switch {
			case r.IsNA(c):
				rec[c] = nil
			default:
				if v, ok := r.Float(c); ok {
					rec[c] = v
				} else {
					rec[c] = r.String(c)
				}
			}
		}
		records = append(records, rec)
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return eris.Wrapf(err, "dataset: marshal records for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "dataset: write %s", path)
	}
	return nil
}
