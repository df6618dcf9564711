// Package aggregate computes per-region summaries of a daily report.
package aggregate

import (
	"sort"
	"strings"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/types"
)

// renames maps feed region names onto the names used by the country
// boundaries dataset.
var renames = map[string]string{ //nolint:gochecknoglobals // fixed lookup table
	"US": "United States of America",
}

// NormalizeRegion trims name and applies the explicit renames.
func NormalizeRegion(name string) string {
	name = strings.TrimSpace(name)
	if to, ok := renames[name]; ok {
		return to
	}
	return name
}

// Aggregate groups records by normalized region name and returns, per region,
// the sum of Confirmed and the median latitude and longitude.
func Aggregate(records []model.RawRecord) map[string]model.AggregatedRegion {
	type group struct {
		confirmed int64
		lats      []float64
		longs     []float64
	}
	groups := make(map[string]*group)
	for _, r := range records {
		name := NormalizeRegion(r.Country)
		g, ok := groups[name]
		if !ok {
			g = &group{}
			groups[name] = g
		}
		g.confirmed += r.Confirmed
		g.lats = append(g.lats, r.Latitude)
		g.longs = append(g.longs, r.Longitude)
	}

	out := make(map[string]model.AggregatedRegion, len(groups))
	for name, g := range groups {
		out[name] = model.AggregatedRegion{
			Region:    name,
			Confirmed: g.confirmed,
			Latitude:  Median(g.lats),
			Longitude: Median(g.longs),
		}
	}
	return out
}

// Median returns the median of values, averaging the two middle elements
// for even-sized input. It returns 0 for empty input and does not modify
// values.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Sorted returns the aggregates ordered by region name.
func Sorted(regions map[string]model.AggregatedRegion) []model.AggregatedRegion {
	out := make([]model.AggregatedRegion, 0, len(regions))
	for _, r := range regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

// Midpoint is the arithmetic mean of the record coordinates.
func Midpoint(records []model.RawRecord) types.Midpoint {
	if len(records) == 0 {
		return types.Midpoint{}
	}
	var lat, long float64
	for _, r := range records {
		lat += r.Latitude
		long += r.Longitude
	}
	n := float64(len(records))
	return types.Midpoint{Latitude: lat / n, Longitude: long / n}
}

// FilterCountry returns the records whose normalized country equals the
// normalized country argument, in input order.
func FilterCountry(records []model.RawRecord, country string) []model.RawRecord {
	want := NormalizeRegion(country)
	out := make([]model.RawRecord, 0)
	for _, r := range records {
		if NormalizeRegion(r.Country) == want {
			out = append(out, r)
		}
	}
	return out
}
