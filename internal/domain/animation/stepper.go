// Package animation drives a cancellable, acknowledged walk over the date
// frames of an aligned time series.
package animation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/epidash/internal/domain/model"
)

// FrameSource projects a date index to a frame.
type FrameSource interface {
	Project(i int) (model.AnimationFrame, error)
}

// FrameFunc renders a frame. It must block until the frame was rendered; its
// return value is the render acknowledgment.
type FrameFunc func(ctx context.Context, frame model.AnimationFrame) error

// Observer receives per-frame callbacks, mainly for metrics.
type Observer interface {
	FrameRendered(index int, latency time.Duration)
}

// Option configures a Stepper.
type Option func(*Stepper)

// WithObserver registers an observer notified after every acknowledged frame.
func WithObserver(o Observer) Option {
	return func(s *Stepper) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock replaces the timer used for the inter-frame pause.
func WithClock(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Stepper) {
		if after != nil {
			s.after = after
		}
	}
}

// Stepper advances frames sequentially. A Stepper holds no per-run state and
// may be reused for several runs.
type Stepper struct {
	observer Observer
	after    func(time.Duration) <-chan time.Time
}

// NewStepper creates a Stepper.
func NewStepper(opts ...Option) *Stepper {
	s := &Stepper{after: time.After}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run renders frames 0..dateCount-1 in order. Before each frame it waits for
// interval unless interval is not positive. It returns nil after the last
// frame was acknowledged, a wrapped ctx error when cancelled, an error
// matching ErrRenderSinkFailure when onFrame fails, or the projection error
// unchanged.
func (s *Stepper) Run(ctx context.Context, src FrameSource, dateCount int, interval time.Duration, onFrame FrameFunc) error {
	for i := 0; i < dateCount; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("animation cancelled before frame %d: %w", i, err)
		}

		if interval > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("animation cancelled before frame %d: %w", i, ctx.Err())
			case <-s.after(interval):
			}
		}

		frame, err := src.Project(i)
		if err != nil {
			return err
		}

		start := time.Now()
		if err := onFrame(ctx, frame); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return fmt.Errorf("animation cancelled at frame %d: %w", i, err)
			}
			return fmt.Errorf("%w: frame %d: %w", ErrRenderSinkFailure, i, err)
		}
		if s.observer != nil {
			s.observer.FrameRendered(i, time.Since(start))
		}
	}
	return nil
}
