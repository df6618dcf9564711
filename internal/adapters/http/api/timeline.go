package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/types"
)

// TimelineDependencies defines the interface for the aligned time series.
type TimelineDependencies interface {
	Dates() ([]string, error)
	TimelineMidpoint() (types.Midpoint, error)
	Frame(i int) (model.AnimationFrame, error)
}

// TimelineHandler handles date and frame requests.
type TimelineHandler struct {
	deps TimelineDependencies
}

// NewTimelineHandler creates a new timeline handler.
func NewTimelineHandler(deps TimelineDependencies) *TimelineHandler {
	return &TimelineHandler{deps: deps}
}

type datesResponse struct {
	Dates    []string       `json:"dates"`
	Midpoint types.Midpoint `json:"midpoint"`
}

// HandleGetDates handles GET /api/dates requests.
func (h *TimelineHandler) HandleGetDates(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_dates"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	dates, err := h.deps.Dates()
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	mid, err := h.deps.TimelineMidpoint()
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, datesResponse{Dates: dates, Midpoint: mid})
}

// HandleGetFrame handles GET /api/frames/{index} requests.
func (h *TimelineHandler) HandleGetFrame(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_frame"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/api/frames/")
	i, err := strconv.Atoi(raw)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	frame, err := h.deps.Frame(i)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, frame)
}
