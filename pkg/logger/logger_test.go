package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given a fresh logger", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)

		Convey("When logging at info level", func() {
			Get().Info(context.Background(), "tables loaded", String("url", "x.csv"), Int("rows", 3))

			Convey("Then the message and fields are written", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "tables loaded")
				So(out, ShouldContainSubstring, "url=x.csv")
				So(out, ShouldContainSubstring, "rows=3")
				So(out, ShouldContainSubstring, "source=")
			})
		})

		Convey("When logging below the active level", func() {
			Get().Debug(context.Background(), "hidden")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})

		Convey("When a named logger is used", func() {
			Named("fetcher").Warn(context.Background(), "slow", Duration("took", 2*time.Second))

			Convey("Then the component is attached", func() {
				So(buf.String(), ShouldContainSubstring, "component=fetcher")
				So(buf.String(), ShouldContainSubstring, "took=2s")
			})
		})
	})
}

func TestLoggerJSONFormat(t *testing.T) {
	Convey("Given a JSON logger", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf), WithFormat(FormatJSON)), ShouldBeNil)

		Get().Error(context.Background(), "fetch failed", Error(errors.New("boom")))

		So(strings.HasPrefix(strings.TrimSpace(buf.String()), "{"), ShouldBeTrue)
		So(buf.String(), ShouldContainSubstring, `"msg":"fetch failed"`)
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given the level parser", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)

		So(SetLevelString("debug"), ShouldBeNil)
		Get().Debug(context.Background(), "visible")
		So(buf.String(), ShouldContainSubstring, "visible")

		So(SetLevelString("WARNING"), ShouldBeNil)
		So(SetLevelString(""), ShouldBeNil)
		So(SetLevelString("loud"), ShouldNotBeNil)
	})
}

func TestNop(t *testing.T) {
	Convey("Nop never panics", t, func() {
		So(func() { Nop().Error(context.Background(), "x") }, ShouldNotPanic)
	})
}
