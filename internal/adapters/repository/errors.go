package repository

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound     = errors.New("region not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
)
