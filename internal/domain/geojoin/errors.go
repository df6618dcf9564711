package geojoin

import "errors"

// ErrInvalidGeometry is returned when the boundaries document is not a
// readable GeoJSON FeatureCollection.
var ErrInvalidGeometry = errors.New("invalid geometry document")
