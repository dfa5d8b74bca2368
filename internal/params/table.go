package params

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidAgeTable is returned for malformed per-age parameter tables.
var ErrInvalidAgeTable = errors.New("invalid age table")

// AgeRow is one row of a per-age clinical table.
type AgeRow struct {
	Age      uint8
	CFR      float64
	IFR      float64
	Severe   float64
	Critical float64
}

// AgeTable holds up to one row per age bucket, in bucket order.
type AgeTable []AgeRow

var ageTableHeader = []string{"age", "cfr", "ifr", "severe", "critical"}

// LoadAgeTable reads a CSV table with the header
// age,cfr,ifr,severe,critical. Row i fills age bucket i.
func LoadAgeTable(r io.Reader) (AgeTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = len(ageTableHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidAgeTable, err)
	}
	for i, name := range ageTableHeader {
		if strings.ToLower(strings.TrimSpace(header[i])) != name {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrInvalidAgeTable, i, header[i], name)
		}
	}

	var table AgeTable
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidAgeTable, line, err)
		}
		if len(table) == NumAgeBuckets {
			return nil, fmt.Errorf("%w: more than %d rows", ErrInvalidAgeTable, NumAgeBuckets)
		}
		row, err := parseAgeRow(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidAgeTable, line, err)
		}
		table = append(table, row)
	}
	return table, nil
}

// LoadAgeTableFile opens path and reads it with LoadAgeTable.
func LoadAgeTableFile(path string) (AgeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open age table: %w", err)
	}
	defer f.Close()
	return LoadAgeTable(f)
}

func parseAgeRow(rec []string) (AgeRow, error) {
	var vals [5]float64
	for i, field := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return AgeRow{}, fmt.Errorf("%s: %w", ageTableHeader[i], err)
		}
		vals[i] = v
	}
	if vals[0] < 0 || vals[0] > 255 {
		return AgeRow{}, fmt.Errorf("age %v out of range", vals[0])
	}
	return AgeRow{
		Age:      uint8(vals[0]),
		CFR:      vals[1],
		IFR:      vals[2],
		Severe:   vals[3],
		Critical: vals[4],
	}, nil
}

// Apply converts the table into age distributions on p. Buckets without a
// row keep their previous values.
//
//	prob_asymptomatic = 1 - ifr/cfr
//	prob_severe       = severe
//	prob_critical     = critical/severe
//	cfr               = cfr
func (t AgeTable) Apply(p *Params) {
	asym := p.ProbAsymptomatic.Values()
	severe := p.ProbSevere.Values()
	critical := p.ProbCritical.Values()
	cfr := p.CaseFatalityRatio.Values()

	for i, row := range t {
		if i >= NumAgeBuckets {
			break
		}
		asym[i] = 1 - row.IFR/row.CFR
		severe[i] = row.Severe
		critical[i] = row.Critical / row.Severe
		cfr[i] = row.CFR
	}

	p.ProbAsymptomatic = Distribution(asym)
	p.ProbSevere = Distribution(severe)
	p.ProbCritical = Distribution(critical)
	p.CaseFatalityRatio = Distribution(cfr)
}
