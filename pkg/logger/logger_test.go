package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialised with defaults", func() {
			err := Init()

			Convey("Then it should be available", func() {
				So(err, ShouldBeNil)
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialised with an unknown format", func() {
			err := Init(WithFormat("xml"))

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown log format")
			})
		})
	})
}

func TestLoggerJSON(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat("json"), WithOutput(&buf)), ShouldBeNil)
		defer func() { _ = Init() }()

		Convey("When logging through a named logger", func() {
			Named("collector").Info(context.Background(), "submission stored",
				String("rater", "alice"), Int("records", 5), Bool("paged", true))

			Convey("Then every field should be present", func() {
				var line map[string]any
				So(json.Unmarshal(buf.Bytes(), &line), ShouldBeNil)
				So(line["msg"], ShouldEqual, "submission stored")
				So(line["component"], ShouldEqual, "collector")
				So(line["rater"], ShouldEqual, "alice")
				So(line["records"], ShouldEqual, float64(5))
				So(line["paged"], ShouldEqual, true)
				So(line["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the current level", func() {
			Get().Debug(context.Background(), "hidden")

			Convey("Then nothing should be written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(Init(), ShouldBeNil)

		Convey("Then known levels should be accepted", func() {
			for _, lvl := range []string{"debug", "INFO", "warn", "warning", "error", ""} {
				So(SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("Then unknown levels should be rejected", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		l := Nop()

		Convey("Then logging should not panic", func() {
			So(func() { l.Named("x").Error(context.Background(), "boom", Error(nil)) }, ShouldNotPanic)
		})
	})
}
