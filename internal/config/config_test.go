package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/listeval/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.ResultsDir, convey.ShouldEqual, "results")
			convey.So(cfg.ResultsFormat, convey.ShouldEqual, "xlsx")
			convey.So(cfg.Alpha, convey.ShouldEqual, 0.05)
			convey.So(cfg.SessionTTL, convey.ShouldEqual, 12*time.Hour)
			convey.So(cfg.ABX.Metric, convey.ShouldEqual, "preference")
			convey.So(cfg.MOS.ScoreMin, convey.ShouldEqual, 1)
			convey.So(cfg.MOS.ScoreMax, convey.ShouldEqual, 5)
			convey.So(cfg.MOS.Shuffle, convey.ShouldBeTrue)
			convey.So(cfg.MOS.Seed, convey.ShouldBeNil)
		})

		convey.Convey("Then it should not validate without an enabled survey", func() {
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config with MOS enabled", t, func() {
		cfg := config.New(context.Background())
		cfg.MOS.Enabled = true
		cfg.MOS.ReferenceDir = "ref"
		cfg.MOS.Systems = []string{"sys1"}
		cfg.MOS.Metrics = []string{"quality"}

		convey.Convey("Then it should be valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the score range is empty", func() {
			cfg.MOS.ScoreMin = 5

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the results format is unknown", func() {
			cfg.ResultsFormat = "parquet"

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When alpha is out of range", func() {
			cfg.Alpha = 1.5

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the manifest source has no manifest", func() {
			cfg.MOS.Source = config.SourceManifest

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When ABX is enabled with a single system", func() {
			cfg.ABX.Enabled = true
			cfg.ABX.ReferenceDir = "ref"
			cfg.ABX.Systems = []string{"only"}

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
