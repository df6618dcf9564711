package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/metrics"
)

// Column spellings across feed versions. The first name is canonical.
var (
	colCountry    = []string{"Country/Region", "Country_Region"}
	colProvince   = []string{"Province/State", "Province_State"}
	colLastUpdate = []string{"Last Update", "Last_Update"}
	colLatitude   = []string{"Latitude", "Lat"}
	colLongitude  = []string{"Longitude", "Long_", "Long"}
	colConfirmed  = []string{"Confirmed"}
	colDeaths     = []string{"Deaths"}
	colRecovered  = []string{"Recovered"}
)

func require(t *model.Table, names []string) (int, error) {
	if i := t.IndexAny(names...); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("%w: %s: missing column %q", ErrSchemaMismatch, t.Source, names[0])
}

// DecodeDailyReport maps a daily report table to raw records in table order.
// Rows with an empty, non-numeric, negative, fractional or non-finite
// Confirmed, or a non-finite coordinate, are skipped and counted;
// Deaths and Recovered default to zero.
func DecodeDailyReport(t *model.Table) ([]model.RawRecord, error) {
	country, err := require(t, colCountry)
	if err != nil {
		return nil, err
	}
	lat, err := require(t, colLatitude)
	if err != nil {
		return nil, err
	}
	long, err := require(t, colLongitude)
	if err != nil {
		return nil, err
	}
	confirmed, err := require(t, colConfirmed)
	if err != nil {
		return nil, err
	}
	province := t.IndexAny(colProvince...)
	updated := t.IndexAny(colLastUpdate...)
	deaths := t.IndexAny(colDeaths...)
	recovered := t.IndexAny(colRecovered...)

	out := make([]model.RawRecord, 0, t.Len())
	skipped := 0
	defer func() { metrics.RecordRowsSkipped("malformed_value", skipped) }()
	for _, row := range t.Rows {
		c, ok := parseCount(row[confirmed])
		if !ok {
			skipped++
			continue
		}
		la, okLat := parseFloat(row[lat])
		lo, okLong := parseFloat(row[long])
		if !okLat || !okLong {
			skipped++
			continue
		}
		out = append(out, model.RawRecord{
			Country:    strings.TrimSpace(row[country]),
			Province:   cell(row, province),
			LastUpdate: cell(row, updated),
			Latitude:   la,
			Longitude:  lo,
			Confirmed:  c,
			Deaths:     optionalCount(row, deaths),
			Recovered:  optionalCount(row, recovered),
		})
	}
	return out, nil
}

// DecodeTimeSeries maps a wide time-series table. Every column after the
// longitude column is a date. Rows with unparsable or non-finite
// coordinates or counts are skipped and counted.
func DecodeTimeSeries(t *model.Table) (*model.WideTimeSeries, error) {
	country, err := require(t, colCountry)
	if err != nil {
		return nil, err
	}
	lat, err := require(t, colLatitude)
	if err != nil {
		return nil, err
	}
	long, err := require(t, colLongitude)
	if err != nil {
		return nil, err
	}
	first := long + 1
	if first >= len(t.Header) {
		return nil, fmt.Errorf("%w: %s: no date columns", ErrSchemaMismatch, t.Source)
	}
	province := t.IndexAny(colProvince...)

	ts := &model.WideTimeSeries{
		Dates: append([]string(nil), t.Header[first:]...),
		Rows:  make([]model.SeriesRow, 0, t.Len()),
	}
	skipped := 0
	defer func() { metrics.RecordRowsSkipped("malformed_value", skipped) }()
rows:
	for _, row := range t.Rows {
		la, okLat := parseFloat(row[lat])
		lo, okLong := parseFloat(row[long])
		if !okLat || !okLong {
			skipped++
			continue
		}
		values := make([]float64, 0, len(ts.Dates))
		for _, v := range row[first:] {
			f, ok := parseFloat(v)
			if !ok {
				skipped++
				continue rows
			}
			values = append(values, f)
		}
		ts.Rows = append(ts.Rows, model.SeriesRow{
			Province: cell(row, province),
			Country:  strings.TrimSpace(row[country]),
			Lat:      la,
			Long:     lo,
			Values:   values,
		})
	}
	return ts, nil
}

func cell(row []string, i int) string {
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseFloat rejects NaN and infinities; they cannot be encoded as JSON.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseCount accepts non-negative integers and integral floats such as
// "12.0" that fit in an int64.
func parseCount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n >= 0
	}
	f, ok := parseFloat(s)
	if !ok || f < 0 || f >= math.MaxInt64 || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func optionalCount(row []string, i int) int64 {
	if i < 0 {
		return 0
	}
	n, _ := parseCount(row[i])
	return n
}
