package geojoin

import (
	"encoding/json"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/okian/epidash/internal/domain/model"
)

// DropPredicate reports whether a geometry is excluded before joining.
type DropPredicate func(model.RegionGeometry) bool

// DropCodes drops geometries whose country code is one of codes
// (case-insensitive).
func DropCodes(codes ...string) DropPredicate {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			set[c] = struct{}{}
		}
	}
	return func(g model.RegionGeometry) bool {
		_, ok := set[strings.ToUpper(g.CountryCode)]
		return ok
	}
}

// DropMissingGeometry drops features without a geometry.
func DropMissingGeometry(g model.RegionGeometry) bool {
	return len(g.Geometry) == 0
}

// AnyOf drops a geometry when any of preds does. Nil predicates are ignored.
func AnyOf(preds ...DropPredicate) DropPredicate {
	return func(g model.RegionGeometry) bool {
		for _, p := range preds {
			if p != nil && p(g) {
				return true
			}
		}
		return false
	}
}

// Join left-joins geometries with the aggregates by country name. Every
// geometry not dropped appears exactly once, in input order; those without
// case data carry a nil Cases. A nil drop keeps everything.
func Join(geoms []model.RegionGeometry, aggregated map[string]model.AggregatedRegion, drop DropPredicate) []model.JoinedRegion {
	out := make([]model.JoinedRegion, 0, len(geoms))
	for _, g := range geoms {
		if drop != nil && drop(g) {
			continue
		}
		j := model.JoinedRegion{RegionGeometry: g}
		if a, ok := aggregated[g.Country]; ok {
			a := a
			j.Cases = &a
		}
		out = append(out, j)
	}
	return out
}

// Range returns the smallest and largest Confirmed among joined regions that
// have case data. ok is false when none do.
func Range(joined []model.JoinedRegion) (low, high int64, ok bool) {
	for _, j := range joined {
		if j.Cases == nil {
			continue
		}
		c := j.Cases.Confirmed
		if !ok || c < low {
			low = c
		}
		if !ok || c > high {
			high = c
		}
		ok = true
	}
	return low, high, ok
}

type outFeature struct {
	Type       string          `json:"type"`
	Properties outProperties   `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type outProperties struct {
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code"`
	Confirmed   *int64   `json:"Confirmed"`
	Latitude    *float64 `json:"Latitude"`
	Longitude   *float64 `json:"Longitude"`
}

type outCollection struct {
	Type     string       `json:"type"`
	Features []outFeature `json:"features"`
}

// FeatureCollection encodes joined regions as GeoJSON. Regions without case
// data get null metric properties.
func FeatureCollection(joined []model.JoinedRegion) ([]byte, error) {
	fc := outCollection{Type: "FeatureCollection", Features: make([]outFeature, 0, len(joined))}
	for _, j := range joined {
		f := outFeature{
			Type: "Feature",
			Properties: outProperties{
				Country:     j.Country,
				CountryCode: j.CountryCode,
			},
			Geometry: j.Geometry,
		}
		if len(f.Geometry) == 0 {
			f.Geometry = json.RawMessage("null")
		}
		if j.Cases != nil {
			c, lat, long := j.Cases.Confirmed, j.Cases.Latitude, j.Cases.Longitude
			f.Properties.Confirmed = &c
			f.Properties.Latitude = &lat
			f.Properties.Longitude = &long
		}
		fc.Features = append(fc.Features, f)
	}
	return gojson.Marshal(fc)
}
