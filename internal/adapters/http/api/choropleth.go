package api

import (
	"net/http"

	service "github.com/okian/epidash/internal/app"
)

// ChoroplethDependencies defines the interface for the country join.
type ChoroplethDependencies interface {
	Choropleth() ([]byte, error)
	ChoroplethRange() (service.ChoroplethRange, error)
}

// ChoroplethHandler handles choropleth requests.
type ChoroplethHandler struct {
	deps ChoroplethDependencies
}

// NewChoroplethHandler creates a new choropleth handler.
func NewChoroplethHandler(deps ChoroplethDependencies) *ChoroplethHandler {
	return &ChoroplethHandler{deps: deps}
}

// HandleGetChoropleth handles GET /api/choropleth requests with the
// precomputed GeoJSON FeatureCollection.
func (h *ChoroplethHandler) HandleGetChoropleth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	body, err := h.deps.Choropleth()
	if err != nil {
		fail(w, Wrap("api.get_choropleth", err))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleGetRange handles GET /api/choropleth/range requests.
func (h *ChoroplethHandler) HandleGetRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rng, err := h.deps.ChoroplethRange()
	if err != nil {
		fail(w, Wrap("api.get_choropleth_range", err))
		return
	}
	writeJSON(w, http.StatusOK, rng)
}
