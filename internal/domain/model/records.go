package model

// RawRecord is one daily-report row.
type RawRecord struct {
	Country    string  `json:"country"`
	Province   string  `json:"province,omitempty"`
	LastUpdate string  `json:"last_update,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Confirmed  int64   `json:"confirmed"`
	Deaths     int64   `json:"deaths"`
	Recovered  int64   `json:"recovered"`
}

// AggregatedRegion summarizes every raw row of one region.
type AggregatedRegion struct {
	Region    string  `json:"region"`
	Confirmed int64   `json:"confirmed"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SeriesRow is one row of a wide time series; Values[i] belongs to the i-th date.
type SeriesRow struct {
	Province string    `json:"province,omitempty"`
	Country  string    `json:"country"`
	Lat      float64   `json:"lat"`
	Long     float64   `json:"long"`
	Values   []float64 `json:"values"`
}

// WideTimeSeries holds one cumulative metric with a column per date.
type WideTimeSeries struct {
	Dates []string    `json:"dates"`
	Rows  []SeriesRow `json:"rows"`
}

// Clone returns a deep copy.
func (w *WideTimeSeries) Clone() *WideTimeSeries {
	out := &WideTimeSeries{
		Dates: append([]string(nil), w.Dates...),
		Rows:  make([]SeriesRow, len(w.Rows)),
	}
	for i, r := range w.Rows {
		r.Values = append([]float64(nil), r.Values...)
		out.Rows[i] = r
	}
	return out
}
