package api

import (
	"errors"
	"net/http"

	"github.com/okian/epidash/internal/adapters/repository"
	"github.com/okian/epidash/internal/adapters/source"
	service "github.com/okian/epidash/internal/app"
	"github.com/okian/epidash/internal/domain/geojoin"
	"github.com/okian/epidash/internal/domain/timeseries"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// Error records the handler operation, the error kind used for the status
// code, and the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Kind != nil:
		return e.Op + ": " + e.Kind.Error()
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of the given kind.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind returns err tagged with kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap prefixes err with op; the status is derived from err itself.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, timeseries.ErrDateIndexOutOfRange),
		errors.Is(err, service.ErrChoroplethDisabled):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrAnimationRunning):
		return http.StatusConflict, "animation_running"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_started"
	case errors.Is(err, source.ErrSourceUnavailable),
		errors.Is(err, source.ErrSchemaMismatch),
		errors.Is(err, timeseries.ErrDateColumnMismatch),
		errors.Is(err, geojoin.ErrInvalidGeometry):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
