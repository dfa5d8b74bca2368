package tracker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNoCurve is returned when a CSV holds no usable curve.
var ErrNoCurve = errors.New("no curve in csv")

// ReadCurve reads one numeric column from CSV. When the first row is a
// header the column named name is used, or the only column if there is one.
// Headerless input must have a single column.
func ReadCurve(r io.Reader, name string) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read curve: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoCurve
	}

	col := 0
	first := records[0]
	if _, err := strconv.ParseFloat(strings.TrimSpace(first[0]), 64); err != nil {
		col = -1
		for j, h := range first {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				col = j
				break
			}
		}
		if col < 0 && len(first) == 1 {
			col = 0
		}
		if col < 0 {
			return nil, fmt.Errorf("%w: column %q not found", ErrNoCurve, name)
		}
		records = records[1:]
	} else if len(first) != 1 {
		return nil, fmt.Errorf("%w: headerless input has %d columns", ErrNoCurve, len(first))
	}

	out := make([]float64, 0, len(records))
	for i, rec := range records {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("read curve: row %d: %w", i+1, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, ErrNoCurve
	}
	return out, nil
}

// ReadCurveFile opens path and reads a curve with ReadCurve.
func ReadCurveFile(path, name string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open curve: %w", err)
	}
	defer f.Close()
	return ReadCurve(f, name)
}
