package source

import "errors"

// Sentinel errors for the data source.
var (
	// ErrSourceUnavailable covers transport failures, non-2xx responses, an
	// open circuit and feeds without data rows.
	ErrSourceUnavailable = errors.New("data source unavailable")

	// ErrSchemaMismatch is returned when a required column is missing.
	ErrSchemaMismatch = errors.New("schema mismatch")
)
