package model

import "encoding/json"

// RegionGeometry is a country polygon from an external boundaries dataset.
// Geometry is kept as raw GeoJSON since it is only passed through.
type RegionGeometry struct {
	Country     string          `json:"country"`
	CountryCode string          `json:"country_code"`
	Geometry    json.RawMessage `json:"geometry"`
}

// JoinedRegion is a geometry with its matched aggregate, or nil when the
// country has no case data.
type JoinedRegion struct {
	RegionGeometry
	Cases *AggregatedRegion `json:"cases"`
}
