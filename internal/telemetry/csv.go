package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TimestampSecondsColumn is added on export next to the microsecond timestamp
const TimestampSecondsColumn = "timestamp_s"

// ReadCSV decodes a topic CSV with a header row and a `timestamp` column in
// microseconds. Cells that are not numeric are stored as NaN.
func ReadCSV(r io.Reader, topic string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	tsIdx := -1
	names := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		names[i] = name
		if name == TimestampColumn {
			tsIdx = i
		}
	}
	if tsIdx < 0 {
		return nil, fmt.Errorf("topic %q: missing %q column", topic, TimestampColumn)
	}

	t := &Table{
		Topic:   topic,
		Columns: make(map[string][]float64, len(names)),
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("topic %q: line %d: %w", topic, line, err)
		}

		ts, err := parseTimestamp(record[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("topic %q: line %d: invalid timestamp: %w", topic, line, err)
		}
		t.Timestamps = append(t.Timestamps, ts)

		for i, name := range names {
			if i == tsIdx || name == TimestampSecondsColumn || name == "" {
				continue
			}
			t.Columns[name] = append(t.Columns[name], parseCell(record[i]))
		}
	}

	return t, nil
}

// WriteCSV encodes a table with its columns in sorted order, followed by
// the timestamp converted to seconds.
func WriteCSV(w io.Writer, t *Table) error {
	columns := t.ColumnNames()

	cw := csv.NewWriter(w)

	header := make([]string, 0, len(columns)+2)
	header = append(header, TimestampColumn)
	header = append(header, columns...)
	header = append(header, TimestampSecondsColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, len(header))
	for i, ts := range t.Timestamps {
		row[0] = strconv.FormatInt(ts, 10)
		for j, name := range columns {
			row[j+1] = strconv.FormatFloat(t.Columns[name][i], 'g', -1, 64)
		}
		row[len(row)-1] = strconv.FormatFloat(float64(ts)*1e-6, 'f', 6, 64)

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSVDir loads every `*.csv` file of a directory into a Store. The topic
// name is the file name without extension, e.g. `vehicle_attitude_0`.
func ReadCSVDir(dir string) (*Store, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("listing CSV files: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no CSV files found in '%s'", dir)
	}

	store := NewStore()
	for _, path := range matches {
		topic := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		t, err := readCSVFile(path, topic)
		if err != nil {
			return nil, err
		}
		if err = store.Add(t); err != nil {
			return nil, fmt.Errorf("adding topic %q: %w", topic, err)
		}
	}

	return store, nil
}

// WriteCSVDir writes every table of the store as `<topic>.csv` into dir
func WriteCSVDir(dir string, s *Store) (err error) {
	for _, topic := range s.Topics() {
		t, _ := s.Table(topic)
		if err = writeCSVFile(filepath.Join(dir, topic+".csv"), t); err != nil {
			return err
		}
	}
	return nil
}

func readCSVFile(path, topic string) (t *Table, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening '%s': %w", path, err)
	}
	defer closeWithError(f, &err)

	return ReadCSV(f, topic)
}

func writeCSVFile(path string, t *Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating '%s': %w", path, err)
	}
	defer closeWithError(f, &err)

	return WriteCSV(f, t)
}

func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}

	// some exporters write integer columns as floats
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f)), nil
}

func parseCell(s string) float64 {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return 1
	case "false":
		return 0
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
