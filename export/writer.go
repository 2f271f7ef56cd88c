package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

func WriteJSON(w io.Writer, env Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("error encoding contract %d: %w", env.Season, err)
	}
	return nil
}

// WriteCSV writes a header with the column names followed by one line per row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(t.Columns))
	for n, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("table %s row %d: %d values for %d columns", t.Name, n, len(row), len(t.Columns))
		}
		for i, v := range row {
			record[i] = cell(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func cell(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// WriteDir writes contract.json and one CSV per table into dir/{season}.
// Files are written next to their final name and renamed into place.
func WriteDir(dir string, env Envelope) ([]string, error) {
	target := filepath.Join(dir, strconv.Itoa(env.Season))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("error creating export dir: %w", err)
	}

	var written []string
	path := filepath.Join(target, "contract.json")
	if err := writeFile(path, func(w io.Writer) error { return WriteJSON(w, env) }); err != nil {
		return written, err
	}
	written = append(written, path)

	for _, name := range TableNames {
		table := env.Tables[name]
		path := filepath.Join(target, name+".csv")
		if err := writeFile(path, func(w io.Writer) error { return WriteCSV(w, table) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
