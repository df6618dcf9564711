package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	framequeue "github.com/okian/epidash/internal/adapters/mq/queue"
	"github.com/okian/epidash/internal/domain/animation"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/logger"
	"github.com/okian/epidash/pkg/metrics"
)

// renderDrainTimeout bounds how long a cancelled run waits for its frame in
// flight to be rendered or dropped.
const renderDrainTimeout = 5 * time.Second

// Animation run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// AnimationStatus describes the current or the last animation run.
type AnimationStatus struct {
	RunID        string    `json:"runId,omitempty"`
	Running      bool      `json:"running"`
	IntervalMs   int64     `json:"intervalMs"`
	CurrentIndex int       `json:"currentIndex"`
	Date         string    `json:"date,omitempty"`
	DateCount    int       `json:"dateCount"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
	FinishedAt   time.Time `json:"finishedAt,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	Error        string    `json:"error,omitempty"`
}

type animationRun struct {
	id       string
	interval time.Duration
	started  time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// animationTracker allows one run at a time and remembers the last one.
type animationTracker struct {
	mu   sync.Mutex
	run  *animationRun
	last AnimationStatus
}

func (t *animationTracker) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run != nil
}

// StartAnimation starts a background run over every date and returns its id.
// The run is not bound to ctx beyond its values; StopAnimation cancels it.
// A negative interval uses the configured default.
func (s *Service) StartAnimation(ctx context.Context, interval time.Duration) (string, error) {
	run, runCtx, err := s.beginRun(context.WithoutCancel(ctx), interval)
	if err != nil {
		return "", err
	}
	go func() {
		_ = s.execute(runCtx, run)
	}()
	return run.id, nil
}

// RunAnimation runs every frame on the calling goroutine and returns when
// the last frame was rendered, ctx is cancelled, or rendering fails.
func (s *Service) RunAnimation(ctx context.Context, interval time.Duration) error {
	run, runCtx, err := s.beginRun(ctx, interval)
	if err != nil {
		return err
	}
	return s.execute(runCtx, run)
}

// StopAnimation cancels the current run and waits for it to finish. It
// reports whether a run was stopped.
func (s *Service) StopAnimation() bool {
	s.anim.mu.Lock()
	run := s.anim.run
	s.anim.mu.Unlock()

	if run == nil {
		return false
	}
	run.cancel()
	<-run.done
	return true
}

// AnimationStatus reports the running animation, or the last finished one.
func (s *Service) AnimationStatus() AnimationStatus {
	s.anim.mu.Lock()
	run := s.anim.run
	status := s.anim.last
	s.anim.mu.Unlock()

	if run != nil {
		status = AnimationStatus{
			RunID:      run.id,
			Running:    true,
			IntervalMs: run.interval.Milliseconds(),
			StartedAt:  run.started,
		}
	}

	snap := s.state.Snapshot()
	status.CurrentIndex = snap.CurrentIndex
	status.DateCount = len(snap.Dates)
	if snap.CurrentIndex >= 0 && snap.CurrentIndex < len(snap.Dates) {
		status.Date = snap.Dates[snap.CurrentIndex]
	}
	return status
}

// beginRun registers a run under the service lock so it cannot start while
// Refresh swaps the datasets.
func (s *Service) beginRun(ctx context.Context, interval time.Duration) (*animationRun, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return nil, nil, ErrNotStarted
	}
	if interval < 0 {
		interval = s.animationInterval
	}

	s.anim.mu.Lock()
	defer s.anim.mu.Unlock()

	if s.anim.run != nil {
		return nil, nil, ErrAnimationRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &animationRun{
		id:       uuid.NewString(),
		interval: interval,
		started:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.anim.run = run
	metrics.UpdateAnimationActive(true)

	s.logger.Info(ctx, "animation started",
		logger.String("runID", run.id),
		logger.Duration("interval", interval),
	)
	return run, runCtx, nil
}

func (s *Service) execute(ctx context.Context, run *animationRun) error {
	defer close(run.done)
	defer run.cancel()

	ds := s.data.Load()
	err := s.stepper.Run(ctx, ds.aligned, ds.aligned.DateCount(), run.interval, s.deliver(run.id))

	outcome := OutcomeCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = OutcomeCancelled
	default:
		outcome = OutcomeFailed
		metrics.RecordErrorByComponent("animation", "render_sink")
	}
	metrics.RecordAnimationRun(outcome)
	metrics.UpdateAnimationActive(false)

	last := AnimationStatus{
		RunID:      run.id,
		IntervalMs: run.interval.Milliseconds(),
		StartedAt:  run.started,
		FinishedAt: time.Now(),
		Outcome:    outcome,
	}
	if err != nil {
		last.Error = err.Error()
	}

	s.anim.mu.Lock()
	s.anim.run = nil
	s.anim.last = last
	s.anim.mu.Unlock()

	logCtx := context.WithoutCancel(ctx)
	if outcome == OutcomeFailed {
		s.logger.Error(logCtx, "animation aborted",
			logger.String("runID", run.id),
			logger.Error(err),
		)
	} else {
		s.logger.Info(logCtx, "animation finished",
			logger.String("runID", run.id),
			logger.String("outcome", outcome),
			logger.Duration("elapsed", last.FinishedAt.Sub(run.started)),
		)
	}
	return err
}

// deliver hands a frame to the render workers and blocks until it was
// acknowledged. A full or closed queue fails the frame. When ctx ends first
// the job is dropped by the worker, and deliver waits for that so no frame
// of the run is published after the run returns.
func (s *Service) deliver(runID string) animation.FrameFunc {
	return func(ctx context.Context, frame model.AnimationFrame) error {
		job := framequeue.Job{
			RunID: runID,
			Frame: frame,
			Ack:   make(chan error, 1),
			Done:  ctx.Done(),
		}
		if err := s.queue.TryEnqueue(ctx, job); err != nil {
			return err
		}
		select {
		case err := <-job.Ack:
			return err
		case <-ctx.Done():
			drain := time.NewTimer(renderDrainTimeout)
			defer drain.Stop()
			select {
			case <-job.Ack:
			case <-drain.C:
				s.logger.Warn(context.WithoutCancel(ctx), "frame still rendering after cancel",
					logger.String("runID", runID),
					logger.Int("frame", frame.Index),
				)
			}
			return ctx.Err()
		}
	}
}

// render runs on a worker: it publishes the frame to every state observer.
func (s *Service) render(ctx context.Context, frame model.AnimationFrame) error {
	metrics.UpdateAnimationIndex(frame.Index)
	return s.state.Publish(ctx, frame)
}
