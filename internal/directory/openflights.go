package directory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/saviobatista/flightwatch/internal/types"
)

// SourceOpenFlights tags records read from an airports.dat file
const SourceOpenFlights = "openflights"

// airports.dat columns
const (
	ofName    = 1
	ofCity    = 2
	ofCountry = 3
	ofIATA    = 4
	ofTZ      = 11
	ofColumns = 12
)

// OpenFlights is an in-memory index over the OpenFlights airports.dat file
type OpenFlights struct {
	airports map[string]types.AirportInfo
}

// LoadOpenFlights reads an airports.dat file from disk
func LoadOpenFlights(path string) (*OpenFlights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open airports file: %w", err)
	}
	defer f.Close()
	return ParseOpenFlights(f)
}

// ParseOpenFlights indexes airports.dat rows by IATA code. Rows without an
// IATA code are skipped; "\N" marks a null field.
func ParseOpenFlights(r io.Reader) (*OpenFlights, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	idx := &OpenFlights{airports: make(map[string]types.AirportInfo)}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse airports file: %w", err)
		}
		if len(rec) < ofColumns {
			continue
		}

		code := normalizeCode(field(rec[ofIATA]))
		if len(code) != 3 {
			continue
		}
		idx.airports[code] = types.AirportInfo{
			IATA:    code,
			Name:    field(rec[ofName]),
			City:    field(rec[ofCity]),
			Country: field(rec[ofCountry]),
			TZ:      field(rec[ofTZ]),
			Source:  SourceOpenFlights,
		}
	}
	return idx, nil
}

func field(v string) string {
	v = strings.TrimSpace(v)
	if v == `\N` {
		return ""
	}
	return v
}

// Name implements AirportSource
func (o *OpenFlights) Name() string { return SourceOpenFlights }

// LookupAirport implements AirportSource
func (o *OpenFlights) LookupAirport(ctx context.Context, iata string) (*types.AirportInfo, error) {
	info, ok := o.airports[normalizeCode(iata)]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// Len returns the number of indexed airports
func (o *OpenFlights) Len() int {
	return len(o.airports)
}
