// Package geojoin attaches aggregated case counts to country polygons and
// encodes the result as GeoJSON.
package geojoin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/okian/epidash/internal/domain/model"
)

// Natural Earth admin-0 property names.
const (
	DefaultNameProp = "ADMIN"
	DefaultCodeProp = "ADM0_A3"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// LoadGeometries reads a GeoJSON FeatureCollection and returns one
// RegionGeometry per feature in document order. Empty property names fall
// back to the Natural Earth defaults. Features with a null geometry are kept
// with a nil Geometry so a drop predicate can decide about them.
func LoadGeometries(r io.Reader, nameProp, codeProp string) ([]model.RegionGeometry, error) {
	if nameProp == "" {
		nameProp = DefaultNameProp
	}
	if codeProp == "" {
		codeProp = DefaultCodeProp
	}

	var fc featureCollection
	if err := gojson.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidGeometry, fc.Type)
	}

	out := make([]model.RegionGeometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		g := model.RegionGeometry{
			Country:     stringProp(f.Properties, nameProp),
			CountryCode: stringProp(f.Properties, codeProp),
		}
		if geom := bytes.TrimSpace(f.Geometry); len(geom) > 0 && !bytes.Equal(geom, []byte("null")) {
			g.Geometry = append(json.RawMessage(nil), geom...)
		}
		out = append(out, g)
	}
	return out, nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
