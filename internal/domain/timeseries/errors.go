package timeseries

import "errors"

// Sentinel kinds for alignment errors.
var (
	ErrDateColumnMismatch  = errors.New("date columns differ between time series")
	ErrDateIndexOutOfRange = errors.New("date index out of range")
	ErrNilSeries           = errors.New("time series is nil")
)
