package api

import (
	"net/http"

	"github.com/okian/epidash/internal/domain/model"
)

// RegionsDependencies defines the interface for the aggregated regions.
type RegionsDependencies interface {
	Regions() ([]model.AggregatedRegion, error)
}

// RegionsHandler handles region aggregate requests.
type RegionsHandler struct {
	deps RegionsDependencies
}

// NewRegionsHandler creates a new regions handler.
func NewRegionsHandler(deps RegionsDependencies) *RegionsHandler {
	return &RegionsHandler{deps: deps}
}

// HandleGetRegions handles GET /api/regions requests.
func (h *RegionsHandler) HandleGetRegions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	regions, err := h.deps.Regions()
	if err != nil {
		fail(w, Wrap("api.get_regions", err))
		return
	}
	writeJSON(w, http.StatusOK, regions)
}
