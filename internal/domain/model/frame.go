package model

// Logical metric names used when a date column is projected.
const (
	MetricConfirmed = "Confirmed"
	MetricRecovered = "Recovered"
	MetricDeaths    = "Deaths"
)

// ProjectionPoint is one {Lat, Long, metric} row of a projection.
type ProjectionPoint struct {
	Lat   float64 `json:"lat"`
	Long  float64 `json:"long"`
	Value float64 `json:"value"`
}

// Projection is a single date column of one time series renamed to Metric.
type Projection struct {
	Metric string            `json:"metric"`
	Points []ProjectionPoint `json:"points"`
}

// AnimationFrame is the three projections for one date index.
type AnimationFrame struct {
	Index     int        `json:"index"`
	Date      string     `json:"date"`
	Confirmed Projection `json:"confirmed"`
	Recovered Projection `json:"recovered"`
	Deaths    Projection `json:"deaths"`
}

// FrameJob carries a frame to a render worker. The worker sends exactly one
// value on Ack once the frame was rendered (nil), failed, or was dropped.
// Done is closed when the producing run ends; a job whose run ended is
// not rendered.
type FrameJob struct {
	RunID string
	Frame AnimationFrame
	Ack   chan error
	Done  <-chan struct{}
}
