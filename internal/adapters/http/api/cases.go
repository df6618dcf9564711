// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"

	service "github.com/okian/epidash/internal/app"
)

// CasesDependencies defines the interface for the raw case tables.
type CasesDependencies interface {
	Cases(country string) (service.CasesView, error)
	FocusCountry() string
}

// CasesHandler handles case table requests.
type CasesHandler struct {
	deps CasesDependencies
}

// NewCasesHandler creates a new cases handler.
func NewCasesHandler(deps CasesDependencies) *CasesHandler {
	return &CasesHandler{deps: deps}
}

// HandleGetCases handles GET /api/cases[?country=NAME] requests. The value
// "focus" selects the configured focus country.
func (h *CasesHandler) HandleGetCases(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_cases"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if strings.EqualFold(country, "focus") {
		country = h.deps.FocusCountry()
	}
	view, err := h.deps.Cases(country)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
