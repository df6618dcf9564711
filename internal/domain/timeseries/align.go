// Package timeseries aligns the confirmed, recovered and deaths wide time
// series and projects them one date at a time.
package timeseries

import (
	"fmt"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/types"
)

// Longitude offsets applied so the three column layers drawn at the same
// coordinates do not overlap. Rendering only; not a geographic correction.
const (
	RecoveredJitter = 0.2
	DeathsJitter    = -0.2
)

// AlignedSet is the immutable result of Align. It is safe for concurrent
// reads.
type AlignedSet struct {
	dates     []string
	confirmed *model.WideTimeSeries
	recovered *model.WideTimeSeries
	deaths    *model.WideTimeSeries
}

// Align validates that the three series share the same ordered date columns
// and returns copies with recovered and deaths longitudes jittered once.
// The inputs are not modified.
func Align(confirmed, recovered, deaths *model.WideTimeSeries) (*AlignedSet, error) {
	if confirmed == nil || recovered == nil || deaths == nil {
		return nil, ErrNilSeries
	}
	if err := sameDates(confirmed.Dates, recovered.Dates); err != nil {
		return nil, fmt.Errorf("recovered: %w", err)
	}
	if err := sameDates(confirmed.Dates, deaths.Dates); err != nil {
		return nil, fmt.Errorf("deaths: %w", err)
	}

	return &AlignedSet{
		dates:     append([]string(nil), confirmed.Dates...),
		confirmed: confirmed.Clone(),
		recovered: jitter(recovered, RecoveredJitter),
		deaths:    jitter(deaths, DeathsJitter),
	}, nil
}

func sameDates(want, got []string) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: %d columns, expected %d", ErrDateColumnMismatch, len(got), len(want))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("%w: column %d is %q, expected %q", ErrDateColumnMismatch, i, got[i], want[i])
		}
	}
	return nil
}

func jitter(ts *model.WideTimeSeries, offset float64) *model.WideTimeSeries {
	out := ts.Clone()
	for i := range out.Rows {
		out.Rows[i].Long = ts.Rows[i].Long + offset
	}
	return out
}

// Dates returns a copy of the ordered date labels.
func (a *AlignedSet) Dates() []string {
	return append([]string(nil), a.dates...)
}

// DateCount returns the number of date columns.
func (a *AlignedSet) DateCount() int { return len(a.dates) }

// Confirmed returns a copy of the unjittered confirmed series.
func (a *AlignedSet) Confirmed() *model.WideTimeSeries { return a.confirmed.Clone() }

// Recovered returns a copy of the jittered recovered series.
func (a *AlignedSet) Recovered() *model.WideTimeSeries { return a.recovered.Clone() }

// Deaths returns a copy of the jittered deaths series.
func (a *AlignedSet) Deaths() *model.WideTimeSeries { return a.deaths.Clone() }

// Project returns the frame for date index i. Repeated calls with the same
// index return equal frames.
func (a *AlignedSet) Project(i int) (model.AnimationFrame, error) {
	if i < 0 || i >= len(a.dates) {
		return model.AnimationFrame{}, fmt.Errorf("%w: %d not in [0,%d)", ErrDateIndexOutOfRange, i, len(a.dates))
	}
	return model.AnimationFrame{
		Index:     i,
		Date:      a.dates[i],
		Confirmed: project(a.confirmed, i, model.MetricConfirmed),
		Recovered: project(a.recovered, i, model.MetricRecovered),
		Deaths:    project(a.deaths, i, model.MetricDeaths),
	}, nil
}

func project(ts *model.WideTimeSeries, i int, metric string) model.Projection {
	points := make([]model.ProjectionPoint, len(ts.Rows))
	for r, row := range ts.Rows {
		points[r] = model.ProjectionPoint{Lat: row.Lat, Long: row.Long, Value: row.Values[i]}
	}
	return model.Projection{Metric: metric, Points: points}
}

// Midpoint is the mean confirmed coordinate, the centre of the animated map.
func (a *AlignedSet) Midpoint() types.Midpoint {
	rows := a.confirmed.Rows
	if len(rows) == 0 {
		return types.Midpoint{}
	}
	var lat, long float64
	for _, r := range rows {
		lat += r.Lat
		long += r.Long
	}
	n := float64(len(rows))
	return types.Midpoint{Latitude: lat / n, Longitude: long / n}
}
