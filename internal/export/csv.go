// Package export reads and writes recordings in the flat formats other tools
// exchange: timestamp,value CSV logs and JSON per-frame dumps.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/biomech.report/internal/cycles"
)

// SampleHeader is the header row of a sample log.
var SampleHeader = []string{"timestamp", "value"}

// WriteSamplesCSV writes a timestamp,value log with a header row. Timestamps
// are milliseconds.
func WriteSamplesCSV(w io.Writer, samples []cycles.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SampleHeader); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatInt(s.Timestamp, 10),
			strconv.FormatFloat(s.Value, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSamplesCSV reads a timestamp,value log. A header row is optional.
// Fractional timestamps are truncated to whole milliseconds.
func ReadSamplesCSV(r io.Reader) ([]cycles.Sample, error) {
	header, cols, err := ReadColumnsCSV(r)
	if err != nil {
		return nil, err
	}
	if len(cols) < 2 {
		return nil, fmt.Errorf("sample log needs two columns, got %d", len(cols))
	}
	ti, vi := 0, 1
	if header != nil {
		ti, vi = indexOf(header, "timestamp", 0), indexOf(header, "value", 1)
	}
	samples := make([]cycles.Sample, len(cols[0]))
	for i := range samples {
		samples[i] = cycles.Sample{Timestamp: int64(cols[ti][i]), Value: cols[vi][i]}
	}
	return samples, nil
}

func indexOf(header []string, name string, def int) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return def
}

// ReadColumnsCSV reads a numeric CSV into columns. When the first row does
// not parse as numbers it is returned as the header; otherwise header is nil.
// Blank lines are skipped and every row must have the same width.
func ReadColumnsCSV(r io.Reader) (header []string, cols [][]float64, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line++
		vals, perr := parseRow(rec)
		if perr != nil {
			if line == 1 {
				header = rec
				continue
			}
			return nil, nil, fmt.Errorf("line %d: %w", line, perr)
		}
		if cols == nil {
			cols = make([][]float64, len(vals))
		}
		for i, v := range vals {
			cols[i] = append(cols[i], v)
		}
	}
	if cols == nil && header != nil {
		cols = make([][]float64, len(header))
	}
	return header, cols, nil
}

func parseRow(rec []string) ([]float64, error) {
	vals := make([]float64, len(rec))
	for i, field := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// Column returns the named column of a header/columns pair.
func Column(header []string, cols [][]float64, name string) ([]float64, bool) {
	i := indexOf(header, name, -1)
	if i < 0 || i >= len(cols) {
		return nil, false
	}
	return cols[i], true
}
