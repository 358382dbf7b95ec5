package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefault(t *testing.T) {
	Convey("Given the default config", t, func() {
		c := Default()

		Convey("It matches the spec's reference constants", func() {
			So(c.TickPeriodMs, ShouldEqual, 50)
			So(c.GridWidth, ShouldEqual, 28)
			So(c.GridHeight, ShouldEqual, 35)
			So(c.FrightenedDurationMs, ShouldEqual, 10000)
			So(c.RespawnDelayMs, ShouldEqual, 5000)
			So(c.MatchDurationMs, ShouldEqual, 180000)
			So(c.CapturesToWin, ShouldEqual, 3)
			So(c.BaseCaptureScore, ShouldEqual, 200)
			So(c.CaptureMultiplier, ShouldEqual, 1.5)
			So(c.DefaultSearchDepth, ShouldEqual, 12)
		})

		Convey("Duration helpers convert the millisecond fields", func() {
			So(c.TickPeriod().Milliseconds(), ShouldEqual, int64(50))
			So(c.FrightenedDuration().Seconds(), ShouldEqual, 10)
		})
	})

	Convey("Given a config with hyperparameter overrides", t, func() {
		c := Default()
		c.HyperParams = []HyperParameter{{Key: "wDanger", Val: -9999}}

		Convey("GetHyperParamOrDefault returns the override when present", func() {
			So(c.GetHyperParamOrDefault("wDanger", -2500), ShouldEqual, -9999)
		})

		Convey("GetHyperParamOrDefault falls back when absent", func() {
			So(c.GetHyperParamOrDefault("wProgress", 200), ShouldEqual, 200)
		})
	})
}
