package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	service "github.com/okian/epidash/internal/app"
)

// AnimationDependencies defines the interface for controlling the animation.
type AnimationDependencies interface {
	StartAnimation(ctx context.Context, interval time.Duration) (string, error)
	StopAnimation() bool
	AnimationStatus() service.AnimationStatus
	AnimationInterval() time.Duration
}

// AnimationHandler handles animation control requests.
type AnimationHandler struct {
	deps AnimationDependencies
}

// NewAnimationHandler creates a new animation handler.
func NewAnimationHandler(deps AnimationDependencies) *AnimationHandler {
	return &AnimationHandler{deps: deps}
}

// startRequest is the optional body of POST /api/animation.
type startRequest struct {
	IntervalMs *int64 `json:"interval_ms"`
}

type startResponse struct {
	RunID      string `json:"runId"`
	IntervalMs int64  `json:"intervalMs"`
}

type stopResponse struct {
	Stopped bool                    `json:"stopped"`
	Status  service.AnimationStatus `json:"status"`
}

// HandleAnimation handles GET (status), POST (start) and DELETE (stop) on
// /api/animation.
func (h *AnimationHandler) HandleAnimation(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.AnimationStatus())
	case http.MethodPost:
		h.start(w, r)
	case http.MethodDelete:
		stopped := h.deps.StopAnimation()
		writeJSON(w, http.StatusOK, stopResponse{Stopped: stopped, Status: h.deps.AnimationStatus()})
	default:
		http.NotFound(w, r)
	}
}

func (h *AnimationHandler) start(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_animation"

	interval, err := h.interval(r)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	runID, err := h.deps.StartAnimation(r.Context(), interval)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{RunID: runID, IntervalMs: interval.Milliseconds()})
}

// interval reads interval_ms from the query or the JSON body. Without
// either, the service default applies.
func (h *AnimationHandler) interval(r *http.Request) (time.Duration, error) {
	if q := r.URL.Query().Get("interval_ms"); q != "" {
		ms, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			return 0, err
		}
		return msToInterval(ms)
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if req.IntervalMs == nil {
		return h.deps.AnimationInterval(), nil
	}
	return msToInterval(*req.IntervalMs)
}

func msToInterval(ms int64) (time.Duration, error) {
	if ms < 0 {
		return 0, errors.New("interval_ms must not be negative")
	}
	return time.Duration(ms) * time.Millisecond, nil
}
