package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/epidash/internal/app"
	"github.com/okian/epidash/internal/domain/animation"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/state"
	. "github.com/smartystreets/goconvey/convey"
)

type frameRecorder struct {
	mu      sync.Mutex
	indices []int
	dates   []string
}

func (r *frameRecorder) OnFrame(_ context.Context, frame model.AnimationFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indices = append(r.indices, frame.Index)
	r.dates = append(r.dates, frame.Date)
	return nil
}

func (r *frameRecorder) seen() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.indices...)
}

func TestService_RunAnimation(t *testing.T) {
	Convey("Given a started service with a subscribed observer", t, func() {
		feeds := newFeedServer()
		defer feeds.Close()
		ctx := context.Background()

		svc := service.New(feeds.feeds(), service.WithAnimationInterval(0))
		defer svc.Stop()
		So(svc.Start(ctx), ShouldBeNil)

		rec := &frameRecorder{}
		unsubscribe := svc.State().Subscribe(rec)
		defer unsubscribe()

		Convey("When running an animation without a pause", func() {
			err := svc.RunAnimation(ctx, 0)

			Convey("Then every frame should be delivered once and in order", func() {
				So(err, ShouldBeNil)
				So(rec.seen(), ShouldResemble, []int{0, 1, 2})
				So(rec.dates, ShouldResemble, []string{"1/22/20", "1/23/20", "1/24/20"})
			})

			Convey("Then the status should describe the finished run", func() {
				status := svc.AnimationStatus()
				So(status.Running, ShouldBeFalse)
				So(status.Outcome, ShouldEqual, service.OutcomeCompleted)
				So(status.RunID, ShouldNotBeEmpty)
				So(status.CurrentIndex, ShouldEqual, 2)
				So(status.Date, ShouldEqual, "1/24/20")
				So(status.DateCount, ShouldEqual, 3)
			})
		})

		Convey("When an observer fails mid-run", func() {
			failing := state.ObserverFunc(func(_ context.Context, frame model.AnimationFrame) error {
				if frame.Index == 1 {
					return errors.New("canvas gone")
				}
				return nil
			})
			unsubscribeFailing := svc.State().Subscribe(failing)
			defer unsubscribeFailing()

			err := svc.RunAnimation(ctx, 0)

			Convey("Then the run should abort with a render sink failure", func() {
				So(errors.Is(err, animation.ErrRenderSinkFailure), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "canvas gone")
				So(rec.seen(), ShouldResemble, []int{0, 1})
				status := svc.AnimationStatus()
				So(status.Outcome, ShouldEqual, service.OutcomeFailed)
				So(status.Error, ShouldContainSubstring, "canvas gone")
			})
		})

		Convey("When the caller cancels a synchronous run", func() {
			runCtx, cancel := context.WithCancel(ctx)
			cancel()
			err := svc.RunAnimation(runCtx, 0)

			Convey("Then no frame should be delivered", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(errors.Is(err, animation.ErrRenderSinkFailure), ShouldBeFalse)
				So(rec.seen(), ShouldBeEmpty)
				So(svc.AnimationStatus().Outcome, ShouldEqual, service.OutcomeCancelled)
			})
		})
	})
}

func TestService_BackgroundAnimation(t *testing.T) {
	Convey("Given a started service", t, func() {
		feeds := newFeedServer()
		defer feeds.Close()
		ctx := context.Background()

		svc := service.New(feeds.feeds())
		defer svc.Stop()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When an animation with a long pause is started", func() {
			runID, err := svc.StartAnimation(ctx, time.Hour)
			So(err, ShouldBeNil)
			So(runID, ShouldNotBeEmpty)

			Convey("Then it should be reported as running", func() {
				status := svc.AnimationStatus()
				So(status.Running, ShouldBeTrue)
				So(status.RunID, ShouldEqual, runID)
				So(status.IntervalMs, ShouldEqual, int64(time.Hour/time.Millisecond))
			})

			Convey("Then a second start should be refused", func() {
				_, err := svc.StartAnimation(ctx, 0)
				So(errors.Is(err, service.ErrAnimationRunning), ShouldBeTrue)
				So(errors.Is(svc.Refresh(ctx), service.ErrAnimationRunning), ShouldBeTrue)
			})

			Convey("Then stopping should cancel it", func() {
				So(svc.StopAnimation(), ShouldBeTrue)
				status := svc.AnimationStatus()
				So(status.Running, ShouldBeFalse)
				So(status.Outcome, ShouldEqual, service.OutcomeCancelled)
				So(svc.StopAnimation(), ShouldBeFalse)
			})
		})

		Convey("When a run is stopped while a frame is rendering", func() {
			rec := &frameRecorder{}
			entered := make(chan struct{})
			release := make(chan struct{})
			var once sync.Once
			blocking := state.ObserverFunc(func(ctx context.Context, frame model.AnimationFrame) error {
				once.Do(func() {
					close(entered)
					<-release
				})
				return rec.OnFrame(ctx, frame)
			})
			unsubscribe := svc.State().Subscribe(blocking)
			defer unsubscribe()

			_, err := svc.StartAnimation(ctx, 0)
			So(err, ShouldBeNil)
			<-entered

			stopped := make(chan bool, 1)
			go func() { stopped <- svc.StopAnimation() }()
			time.Sleep(30 * time.Millisecond)
			waiting := len(stopped) == 0
			close(release)
			wasRunning := <-stopped
			seen := rec.seen()
			time.Sleep(30 * time.Millisecond)

			Convey("Then stop waits for that frame and nothing is published after it", func() {
				So(waiting, ShouldBeTrue)
				So(wasRunning, ShouldBeTrue)
				So(seen, ShouldResemble, []int{0})
				So(rec.seen(), ShouldResemble, seen)
				So(svc.AnimationStatus().Outcome, ShouldEqual, service.OutcomeCancelled)
			})
		})

		Convey("When a background run completes", func() {
			rec := &frameRecorder{}
			unsubscribe := svc.State().Subscribe(rec)
			defer unsubscribe()

			_, err := svc.StartAnimation(ctx, 0)
			So(err, ShouldBeNil)

			deadline := time.Now().Add(5 * time.Second)
			for svc.AnimationStatus().Running && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}

			Convey("Then every frame should have been published", func() {
				So(svc.AnimationStatus().Outcome, ShouldEqual, service.OutcomeCompleted)
				So(rec.seen(), ShouldResemble, []int{0, 1, 2})
				So(svc.GetStats()["framesRendered"], ShouldEqual, int64(3))
				So(svc.GetStats()["queueCapacity"], ShouldEqual, 16)
				So(svc.GetStats()["workerCount"], ShouldEqual, 1)
			})
		})
	})
}
