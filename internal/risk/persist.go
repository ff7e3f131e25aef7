package risk

import (
	"encoding/gob"
	"os"

	"github.com/rotisserie/eris"
)

// Save gob-encodes the fitted forest to path. The artifact is opaque:
// trees, feature order, importances, and imputation fill values.
func Save(f *Forest, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "risk: create model artifact %s", path)
	}
	defer out.Close()

	if err := gob.NewEncoder(out).Encode(f); err != nil {
		return eris.Wrapf(err, "risk: encode model artifact %s", path)
	}
	return nil
}

// Load reads a previously saved forest.
func Load(path string) (*Forest, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "risk: open model artifact %s", path)
	}
	defer in.Close()

	var f Forest
	if err := gob.NewDecoder(in).Decode(&f); err != nil {
		return nil, eris.Wrapf(err, "risk: decode model artifact %s", path)
	}
	return &f, nil
}
