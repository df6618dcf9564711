package service

import "errors"

// Sentinel errors returned by Service.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrAnimationRunning   = errors.New("animation already running")
	ErrChoroplethDisabled = errors.New("choropleth disabled: no geometry configured")
)
