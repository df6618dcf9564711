// Package types contains common types used across the application
package types

// RegionEntry is one row of the region ranking.
type RegionEntry struct {
	Rank      int     `json:"rank"`
	Region    string  `json:"region"`
	Confirmed int64   `json:"confirmed"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Midpoint is the initial map view centre.
type Midpoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
