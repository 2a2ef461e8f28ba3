package inference

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/uemura/appendicitis/pkg/errors"
)

// ResultsFile is an append-only CSV of inferred patients.
type ResultsFile struct {
	Path string
}

// Append writes one row. The header is written only when the file does not
// exist yet.
func (f ResultsFile) Append(header, row []string) error {
	if len(header) != len(row) {
		return errors.NewDimensionError("ResultsFile.Append", len(header), len(row), 1)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return errors.Wrapf(err, "create results dir for %s", f.Path)
	}

	_, statErr := os.Stat(f.Path)
	isNew := os.IsNotExist(statErr)

	out, err := os.OpenFile(f.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open results file %s", f.Path)
	}
	w := csv.NewWriter(out)
	if isNew {
		if err := w.Write(header); err != nil {
			out.Close()
			return errors.Wrap(err, "write results header")
		}
	}
	if err := w.Write(row); err != nil {
		out.Close()
		return errors.Wrap(err, "write results row")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		out.Close()
		return errors.Wrap(err, "flush results")
	}
	return errors.Wrap(out.Close(), "close results file")
}
