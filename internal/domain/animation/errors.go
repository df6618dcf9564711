package animation

import "errors"

// ErrRenderSinkFailure is returned when the frame callback reports a
// failure. The callback's error is wrapped alongside it.
var ErrRenderSinkFailure = errors.New("render sink failure")
