package writer

import (
	"bufio"
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// createCSV truncates path and writes the header row.
func createCSV(path string, header []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrapf(err, "write header of %s", path)
	}
	w.Flush()
	return w.Error()
}

// appendCSV opens path for the duration of one call and appends rows.
func appendCSV(path string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	w := csv.NewWriter(bufw)
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "append to %s", path)
	}
	if err := bufw.Flush(); err != nil {
		return errors.Wrapf(err, "flush %s", path)
	}
	return f.Sync()
}
